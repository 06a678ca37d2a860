// Package extract writes a parsed firmware image out as a directory tree, one
// artifact per region, file, and section.
package extract

import (
	"fmt"
	"path"
	"strings"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/ffs"
	"github.com/dargueta/fvkit/image"
	"github.com/dargueta/fvkit/regions"
	"github.com/dargueta/fvkit/utilities/padding"
	"github.com/sirupsen/logrus"
)

// OpaqueVolumeName is the name of the artifact holding the raw bytes of a
// volume whose files couldn't be parsed.
const OpaqueVolumeName = "volume.bin"

// Stats counts what an Extractor has done.
type Stats struct {
	Emitted    int
	Suppressed int
	Bytes      int64
}

// Extractor walks a parsed tree depth-first in offset order and hands each
// artifact to an emitter. Artifacts whose bytes are all the same are skipped.
type Extractor struct {
	Emitter fvkit.Emitter
	Log     *logrus.Entry
	Stats   Stats
}

// New creates an extractor writing to `emitter`.
func New(emitter fvkit.Emitter) *Extractor {
	return &Extractor{Emitter: emitter}
}

func (x *Extractor) log() *logrus.Entry {
	if x.Log == nil {
		x.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return x.Log
}

func (x *Extractor) emit(artifactPath string, data []byte) error {
	if padding.IsUniform(data) {
		x.Stats.Suppressed++
		x.log().WithField("path", artifactPath).Debugf("skipping %d bytes of padding", len(data))
		return nil
	}

	x.log().WithField("path", artifactPath).Debugf("writing %d bytes", len(data))
	if err := x.Emitter.Emit(artifactPath, data); err != nil {
		return err
	}
	x.Stats.Emitted++
	x.Stats.Bytes += int64(len(data))
	return nil
}

// sanitize makes a display name safe to use in a file name.
func sanitize(name string) string {
	return strings.Map(
		func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			case r == '-' || r == '_' || r == '.':
				return r
			default:
				return '_'
			}
		},
		name,
	)
}

// RegionName gives the artifact name for a top-level region. Volume regions
// get a directory, everything else a single file.
func RegionName(index int, region regions.Region, volume *ffs.Volume) string {
	switch region.Kind {
	case regions.KindVolume:
		if volume != nil {
			return fmt.Sprintf("region-%02d-volume-%s", index, volume.GUID)
		}
		return fmt.Sprintf("region-%02d-volume.bin", index)
	default:
		return fmt.Sprintf("region-%02d-%s.bin", index, region.Kind)
	}
}

// FileName gives the artifact name for a file, without an extension.
func FileName(index int, file *ffs.File) string {
	name := fmt.Sprintf("file-%02d-%s", index, file.GUID)
	if file.Name != "" {
		name += "-" + sanitize(file.Name)
	}
	return name
}

// SectionName gives the artifact name for a section, without an extension.
func SectionName(index int, section *ffs.Section) string {
	return fmt.Sprintf("section-%02d-%s", index, section.Type)
}

// ExtractImage writes every region of `img`.
func (x *Extractor) ExtractImage(img *image.Image) error {
	for i, entry := range img.Entries {
		name := RegionName(i, entry.Region, entry.Volume)
		if entry.Region.Kind == regions.KindVolume && entry.Volume != nil {
			if err := x.ExtractVolume(name, entry.Volume); err != nil {
				return err
			}
			continue
		}
		if err := x.emit(name, entry.Region.Data); err != nil {
			return err
		}
	}

	x.log().Infof(
		"wrote %d artifacts (%d bytes), skipped %d padding-only",
		x.Stats.Emitted,
		x.Stats.Bytes,
		x.Stats.Suppressed,
	)
	return nil
}

// ExtractVolume writes the files of `volume` into directory `dir`. An opaque
// volume is written whole as a single artifact instead.
func (x *Extractor) ExtractVolume(dir string, volume *ffs.Volume) error {
	if volume.Opaque {
		return x.emit(path.Join(dir, OpaqueVolumeName), volume.Raw)
	}

	for i, file := range volume.Files {
		if err := x.ExtractFile(dir, i, file); err != nil {
			return err
		}
	}
	return nil
}

// ExtractFile writes one file. Files without sections, and files whose sections
// didn't parse into anything, are written as a single `.raw` artifact.
// Otherwise the file becomes a directory of sections.
func (x *Extractor) ExtractFile(dir string, index int, file *ffs.File) error {
	name := path.Join(dir, FileName(index, file))
	if len(file.Sections) == 0 {
		return x.emit(name+".raw", file.Content)
	}
	return x.extractSections(name, file.Sections)
}

func (x *Extractor) extractSections(dir string, sections []*ffs.Section) error {
	for i, section := range sections {
		name := path.Join(dir, SectionName(i, section))

		var err error
		switch {
		case section.Volume != nil:
			err = x.ExtractVolume(name, section.Volume)
		case section.GUIDDefined != nil && section.GUIDDefined.Expanded:
			err = x.extractSections(name, section.Children)
		default:
			err = x.emit(name+".bin", section.Payload)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
