package ffs

import "github.com/dargueta/fvkit/guid"

// Volume header layout. All offsets are from the start of the volume.
const (
	VolumeGUIDOffset         = 0x10
	VolumeLengthOffset       = 0x20
	VolumeSignatureOffset    = 0x28
	VolumeAttributesOffset   = 0x2c
	VolumeHeaderLengthOffset = 0x30
	VolumeChecksumOffset     = 0x32
	VolumeExtHeaderOffset    = 0x34
	VolumeRevisionOffset     = 0x37
	VolumeBlockMapOffset     = 0x38

	// VolumeFixedHeaderSize is the size of the header up to the block map.
	VolumeFixedHeaderSize = VolumeBlockMapOffset

	// VolumeHeaderLength is the header length BuildVolume writes: the fixed
	// part plus a block map of one run and the (0, 0) terminator.
	VolumeHeaderLength = VolumeBlockMapOffset + 2*8

	// VolumeMinTrailer is the fewest bytes that must remain in a volume for
	// the file walk to try reading another file header.
	VolumeMinTrailer = 0x20

	VolumeRevision = 2

	// VolumeAttributes is what BuildVolume writes: read/write enabled and
	// status bits set, erase polarity 1, 8-byte alignment capable.
	VolumeAttributes uint32 = 0x0004feff
)

// VolumeSignature is the magic at VolumeSignatureOffset.
var VolumeSignature = [4]byte{'_', 'F', 'V', 'H'}

// The two volume format GUIDs whose contents are a standard list of firmware
// files. Volumes of any other format are kept as opaque blobs.
var (
	FFS1GUID = guid.MustParse("7a9354d9-0468-444a-81ce-0bf617d890df")
	FFS2GUID = guid.MustParse("8c8ce578-8a3d-4f1c-9935-896185c32dd3")
)

// ErasePolarityByte is what an erased flash cell reads as. It fills free space
// in volumes and the gaps between files.
const ErasePolarityByte = 0xff

// File header layout.
const (
	FileGUIDOffset           = 0x00
	FileHeaderChecksumOffset = 0x10
	FileDataChecksumOffset   = 0x11
	FileTypeOffset           = 0x12
	FileAttributesOffset     = 0x13
	FileSizeOffset           = 0x14
	FileStateOffset          = 0x17
	FileExtendedSizeOffset   = 0x18

	FileHeaderSize         = 0x18
	FileExtendedHeaderSize = 0x20

	// FileAlignment is the alignment of every file relative to the start of the
	// volume's data area.
	FileAlignment = 8
)

// File attribute bits.
const (
	FileAttributeLargeFile     = 0x01
	FileAttributeFixed         = 0x04
	FileAttributeDataAlignment = 0x38
	FileAttributeChecksum      = 0x40
)

// File state bits. With an erase polarity of 1 these are stored inverted, so a
// valid file's state byte reads 0xf8.
const (
	FileStateHeaderConstruction = 1 << iota
	FileStateHeaderValid
	FileStateDataValid
	FileStateMarkedForUpdate
	FileStateDeleted
	FileStateHeaderInvalid
)

// FileStateValid is the on-disk state byte of a complete, valid file.
const FileStateValid = ^uint8(FileStateHeaderConstruction|FileStateHeaderValid|FileStateDataValid) & 0xff

// FileDataChecksumUnused is stored in place of the data checksum when the file
// doesn't have FileAttributeChecksum set.
const FileDataChecksumUnused = 0xaa

// Section header layout.
const (
	SectionSizeOffset         = 0x00
	SectionTypeOffset         = 0x03
	SectionExtendedSizeOffset = 0x04

	SectionHeaderSize         = 4
	SectionExtendedHeaderSize = 8

	// SectionAlignment is the alignment of every section relative to the start
	// of the containing file's content.
	SectionAlignment = 4

	// SectionMinRemaining is the fewest bytes that must remain in a section
	// list to try reading another section.
	SectionMinRemaining = 8
)

// GUID-defined section layout, relative to the end of the common section
// header.
const (
	GUIDDefinedAlgorithmOffset  = 0x00
	GUIDDefinedDataOffsetOffset = 0x10
	GUIDDefinedAttributesOffset = 0x12
	GUIDDefinedHeaderSize       = 0x14
)

// GUID-defined section attribute bits.
const (
	GUIDedSectionProcessingRequired = 0x01
	GUIDedSectionAuthStatusValid    = 0x02
)

// LengthSentinel is the value of a 24-bit length field that means "the real
// length is in the extended field that follows".
const LengthSentinel = 0xffffff
