// Package regions splits a raw flash image into flash descriptor, firmware
// volume, and unrecognized regions.
package regions

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/fvkit/ffs"
	"github.com/dargueta/fvkit/utilities/padding"
	"github.com/sirupsen/logrus"
)

const (
	// DescriptorSignature is the Intel flash descriptor magic, found 0x10 bytes
	// into the descriptor.
	DescriptorSignature uint32 = 0x0ff0a55a
	DescriptorSignatureOffset  = 0x10
	// DescriptorSize is the fixed size of a flash descriptor region.
	DescriptorSize = 0x10000

	// DefaultStride is the distance between candidate offsets when scanning.
	// It matches the alignment of files within a volume, the finest alignment a
	// volume can have.
	DefaultStride = ffs.FileAlignment
)

// Kind says what a region holds.
type Kind int

const (
	KindUnknown Kind = iota
	KindDescriptor
	KindVolume
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindDescriptor:
		return "descriptor"
	case KindVolume:
		return "volume"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Region is a contiguous range of the input.
type Region struct {
	Kind Kind
	// Offset is the position of the region's first byte in the input.
	Offset int64
	// Data is the region's bytes, a subslice of the input.
	Data []byte
}

// End returns the offset one past the region's last byte.
func (r Region) End() int64 {
	return r.Offset + int64(len(r.Data))
}

// Scanner finds regions in an image.
type Scanner struct {
	// Start is where scanning begins.
	Start int64
	// Length limits how many bytes after Start are scanned. Zero or negative
	// means to the end of the input.
	Length int64
	// Stride is the distance between candidate offsets. Zero means
	// DefaultStride. A descriptor or volume resets the stride grid to its end.
	Stride int
	// Log gets a debug message for every region found. Defaults to the logrus
	// standard logger.
	Log *logrus.Entry
}

func (s *Scanner) log() *logrus.Entry {
	if s.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return s.Log
}

// Bounds returns the range of `buf` that Scan looks at, after clamping Start
// and Length to the input.
func (s *Scanner) Bounds(buf []byte) (int64, int64) {
	size := int64(len(buf))
	start := s.Start
	if start < 0 {
		start = 0
	} else if start > size {
		start = size
	}

	end := size
	if s.Length > 0 && start+s.Length < size {
		end = start + s.Length
	}
	return start, end
}

// Scan walks `buf` and returns its regions in offset order.
//
// Bytes that aren't part of a descriptor or volume are collected into unknown
// regions, which are dropped if every byte in them is the same. Volume regions
// are only located here; use the ffs package to parse them.
func (s *Scanner) Scan(buf []byte) []Region {
	start, end := s.Bounds(buf)
	stride := int64(s.Stride)
	if stride <= 0 {
		stride = DefaultStride
	}

	var regions []Region
	pending := int64(-1)

	// flush closes the pending unknown region, if any, at `upTo`.
	flush := func(upTo int64) {
		if pending < 0 {
			return
		}
		data := buf[pending:upTo]
		if padding.IsUniform(data) {
			s.log().Debugf("dropping %#x bytes of padding at %#x", len(data), pending)
		} else {
			regions = append(regions, Region{Kind: KindUnknown, Offset: pending, Data: data})
		}
		pending = -1
	}

	for offset := start; offset < end; {
		window := buf[offset:end]

		if isDescriptor(window) {
			flush(offset)
			s.log().Debugf("flash descriptor at %#x", offset)
			regions = append(regions, Region{
				Kind:   KindDescriptor,
				Offset: offset,
				Data:   window[:DescriptorSize],
			})
			offset += DescriptorSize
			continue
		}

		if length, ok := volumeLength(window); ok {
			flush(offset)
			s.log().Debugf("volume at %#x, %#x bytes", offset, length)
			regions = append(regions, Region{
				Kind:   KindVolume,
				Offset: offset,
				Data:   window[:length],
			})
			offset += length
			continue
		}

		if pending < 0 {
			pending = offset
		}
		offset += stride
	}

	flush(end)
	return regions
}

// isDescriptor returns true if a complete flash descriptor starts at the
// beginning of `window`.
func isDescriptor(window []byte) bool {
	if len(window) < DescriptorSize {
		return false
	}
	return binary.LittleEndian.Uint32(window[DescriptorSignatureOffset:]) == DescriptorSignature
}

// volumeLength returns the declared length of the volume starting at the
// beginning of `window`, and true if there is one that fits in the window.
func volumeLength(window []byte) (int64, bool) {
	if len(window) < ffs.VolumeFixedHeaderSize {
		return 0, false
	}
	if [4]byte(window[ffs.VolumeSignatureOffset:ffs.VolumeSignatureOffset+4]) != ffs.VolumeSignature {
		return 0, false
	}

	length := binary.LittleEndian.Uint64(window[ffs.VolumeLengthOffset:])
	if length < ffs.VolumeFixedHeaderSize || length > uint64(len(window)) {
		return 0, false
	}
	return int64(length), true
}
