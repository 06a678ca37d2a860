package ffs

import (
	"encoding/binary"

	"github.com/dargueta/fvkit"
)

// lengthField describes how a header stores its total size: a 24-bit field
// which, if it holds [LengthSentinel], is followed by a wider field with the
// real size. Files and sections both use this scheme with different widths.
type lengthField struct {
	// name is used in error messages.
	name string
	// legacyOffset is where the 24-bit field lives within the header.
	legacyOffset int
	// headerSize is the size of the header when the 24-bit field is used.
	headerSize int
	// extendedOffset is where the wide field lives within the header.
	extendedOffset int
	// extendedWidth is the size of the wide field in bytes, 4 or 8.
	extendedWidth int
	// extendedHeaderSize is the size of the header when the wide field is used.
	extendedHeaderSize int
}

var fileLength = lengthField{
	name:               "file",
	legacyOffset:       FileSizeOffset,
	headerSize:         FileHeaderSize,
	extendedOffset:     FileExtendedSizeOffset,
	extendedWidth:      8,
	extendedHeaderSize: FileExtendedHeaderSize,
}

var sectionLength = lengthField{
	name:               "section",
	legacyOffset:       SectionSizeOffset,
	headerSize:         SectionHeaderSize,
	extendedOffset:     SectionExtendedSizeOffset,
	extendedWidth:      4,
	extendedHeaderSize: SectionExtendedHeaderSize,
}

// headerLength is the result of reading a length field.
type headerLength struct {
	// Total is the declared size of the whole structure, header included.
	Total uint64
	// HeaderSize is the size of the header implied by the length encoding.
	HeaderSize int
	// Extended is true if the sentinel was present and the wide field used.
	Extended bool
}

func readUint24(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16
}

func putUint24(buf []byte, value uint32) {
	buf[0] = byte(value)
	buf[1] = byte(value >> 8)
	buf[2] = byte(value >> 16)
}

// extendedAllOnes is the value of a wide field that has never been written.
func (f lengthField) extendedAllOnes() uint64 {
	return (uint64(1) << (8 * f.extendedWidth)) - 1
}

// read decodes the length of the structure starting at `buf[offset]`. It only
// checks that the header itself is present; use check to validate the length
// against the container.
func (f lengthField) read(buf []byte, offset int) (headerLength, error) {
	available := len(buf) - offset
	if available < f.headerSize {
		return headerLength{}, fvkit.Errorf(
			fvkit.ErrTruncatedInput,
			"%s header at %#x needs %d bytes, %d available",
			f.name,
			offset,
			f.headerSize,
			available,
		)
	}

	legacy := readUint24(buf[offset+f.legacyOffset:])
	if legacy != LengthSentinel {
		return headerLength{Total: uint64(legacy), HeaderSize: f.headerSize}, nil
	}

	if available < f.extendedHeaderSize {
		return headerLength{}, fvkit.Errorf(
			fvkit.ErrTruncatedInput,
			"extended %s header at %#x needs %d bytes, %d available",
			f.name,
			offset,
			f.extendedHeaderSize,
			available,
		)
	}

	wide := buf[offset+f.extendedOffset:]
	var total uint64
	if f.extendedWidth == 8 {
		total = binary.LittleEndian.Uint64(wide)
	} else {
		total = uint64(binary.LittleEndian.Uint32(wide))
	}
	return headerLength{Total: total, HeaderSize: f.extendedHeaderSize, Extended: true}, nil
}

// check validates a decoded length: it must cover at least its own header and
// must not run past the end of the container, which has `available` bytes left
// starting at the structure.
func (f lengthField) check(length headerLength, offset, available int) error {
	if length.Total < uint64(length.HeaderSize) {
		return fvkit.Errorf(
			fvkit.ErrInvalidLength,
			"%s at %#x declares %#x bytes, smaller than its %#x-byte header",
			f.name,
			offset,
			length.Total,
			length.HeaderSize,
		)
	}
	if length.Total > uint64(available) {
		return fvkit.Errorf(
			fvkit.ErrOverflow,
			"%s at %#x declares %#x bytes but only %#x remain",
			f.name,
			offset,
			length.Total,
			available,
		)
	}
	return nil
}

// headerSizeFor gives the header size needed to describe a structure with a
// payload of `payloadSize` bytes, and whether the extended form is needed.
func (f lengthField) headerSizeFor(payloadSize int) (int, bool, error) {
	if uint64(payloadSize)+uint64(f.headerSize) < LengthSentinel {
		return f.headerSize, false, nil
	}

	total := uint64(payloadSize) + uint64(f.extendedHeaderSize)
	if total >= f.extendedAllOnes() {
		return 0, false, fvkit.Errorf(
			fvkit.ErrInvalidLength,
			"%s payload of %#x bytes is too large to encode",
			f.name,
			payloadSize,
		)
	}
	return f.extendedHeaderSize, true, nil
}

// write stores `total` into `header`, using the extended form if `extended`
// is set. `header` must be at least as large as the header size chosen by
// headerSizeFor.
func (f lengthField) write(header []byte, total uint64, extended bool) {
	if !extended {
		putUint24(header[f.legacyOffset:], uint32(total))
		return
	}

	putUint24(header[f.legacyOffset:], LengthSentinel)
	if f.extendedWidth == 8 {
		binary.LittleEndian.PutUint64(header[f.extendedOffset:], total)
	} else {
		binary.LittleEndian.PutUint32(header[f.extendedOffset:], uint32(total))
	}
}

// alignUp rounds `value` up to the next multiple of `alignment`, which must be
// a power of two.
func alignUp(value, alignment int) int {
	return (value + alignment - 1) &^ (alignment - 1)
}
