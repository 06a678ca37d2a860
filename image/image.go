// Package image ties the region scanner and the volume parser together to turn
// a whole flash image into a tree.
package image

import (
	"fmt"
	"io"
	"os"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/ffs"
	"github.com/dargueta/fvkit/regions"
	"github.com/dargueta/fvkit/utilities/compression"
	"github.com/sirupsen/logrus"
)

// Options controls how an image is scanned and parsed. The zero value scans
// the whole image with default settings.
type Options struct {
	// Start, Length, and Stride are passed to the region scanner.
	Start  int64
	Length int64
	Stride int
	// MaxDepth limits nesting, see [ffs.Parser].
	MaxDepth int
	// Compression expands compressed sections. If nil, a registry from
	// [compression.NewRegistry] is used.
	Compression *compression.Registry
	Log         *logrus.Entry
}

// Entry is one region of the image. Volume is set for volume regions.
type Entry struct {
	Region regions.Region
	Volume *ffs.Volume
}

// Image is a parsed flash image.
type Image struct {
	// Size is the size of the entire input, not just the scanned part.
	Size    int64
	Entries []Entry
	// Coverage shows which parts of the scanned range hold a descriptor or a
	// volume.
	Coverage *regions.CoverageMap

	parser *ffs.Parser
}

// Diagnostics returns every problem found while parsing the image's volumes.
func (img *Image) Diagnostics() []ffs.Diagnostic {
	return img.parser.Diagnostics()
}

// Warnings combines every diagnostic into one error, or returns nil.
func (img *Image) Warnings() error {
	return img.parser.Warnings()
}

// Volumes returns every top-level volume that was parsed, in offset order.
func (img *Image) Volumes() []*ffs.Volume {
	var volumes []*ffs.Volume
	for _, entry := range img.Entries {
		if entry.Volume != nil {
			volumes = append(volumes, entry.Volume)
		}
	}
	return volumes
}

// RegionPath is the diagnostic path of the region at `index`.
func RegionPath(index int) string {
	return fmt.Sprintf("region[%d]", index)
}

// Parse scans `buf` and parses every volume found in it. An error is only
// returned for bad options; problems in the image are diagnostics.
func Parse(buf []byte, options Options) (*Image, error) {
	log := options.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	registry := options.Compression
	if registry == nil {
		registry = compression.NewRegistry("")
	}
	if options.Start < 0 || options.Start > int64(len(buf)) {
		return nil, fvkit.Errorf(
			fvkit.ErrInvalidArgument,
			"start offset %#x is outside the %#x-byte image",
			options.Start,
			len(buf),
		)
	}

	scanner := regions.Scanner{
		Start:  options.Start,
		Length: options.Length,
		Stride: options.Stride,
		Log:    log,
	}
	parser := ffs.NewParser(registry)
	parser.MaxDepth = options.MaxDepth
	parser.Log = log

	found := scanner.Scan(buf)
	start, end := scanner.Bounds(buf)
	stride := options.Stride
	if stride <= 0 {
		stride = regions.DefaultStride
	}
	coverage, err := regions.CoverageOf(found, start, end, stride)
	if err != nil {
		return nil, err
	}

	img := &Image{
		Size:     int64(len(buf)),
		Entries:  make([]Entry, 0, len(found)),
		Coverage: coverage,
		parser:   parser,
	}

	for i, region := range found {
		entry := Entry{Region: region}
		if region.Kind == regions.KindVolume {
			volume, err := parser.ParseVolumeAt(region.Data, region.Offset, RegionPath(i))
			if err != nil {
				// The scanner already checked the volume's extent, so this means
				// the two disagree about what a volume looks like.
				log.WithField("offset", fmt.Sprintf("%#x", region.Offset)).Errorf("volume rejected: %s", err)
			}
			entry.Volume = volume
		}
		img.Entries = append(img.Entries, entry)
	}

	log.Debugf(
		"%d regions, %#x of %#x scanned bytes identified",
		len(img.Entries),
		coverage.ClaimedBytes(),
		end-start,
	)
	return img, nil
}

// Read reads the entire stream and parses it, see [Parse].
func Read(stream io.ReadSeeker, options Options) (*Image, error) {
	size, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err = stream.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	if _, err = io.ReadFull(stream, buf); err != nil {
		return nil, fvkit.ErrTruncatedInput.Wrap(err)
	}
	return Parse(buf, options)
}

// ReadFile parses the image stored at `path`.
func ReadFile(path string, options Options) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file, options)
}
