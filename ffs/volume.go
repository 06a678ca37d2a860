package ffs

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/guid"
	"github.com/dargueta/fvkit/utilities/compression"
	"github.com/dargueta/fvkit/utilities/padding"
	"github.com/noxer/bytewriter"
)

// BlockMapEntry is one run of equally-sized blocks in a volume's block map.
type BlockMapEntry struct {
	NumBlocks uint32
	Length    uint32
}

// Volume is a parsed firmware volume.
type Volume struct {
	// GUID identifies the format of the volume, not the volume itself.
	GUID         guid.GUID
	Length       uint64
	Signature    [4]byte
	Attributes   uint32
	HeaderLength uint16
	// Checksum is reported as found; it isn't verified.
	Checksum        uint16
	ExtHeaderOffset uint16
	Revision        uint8
	BlockMap        []BlockMapEntry
	// Name is the volume's own GUID from the extended header, or the zero
	// GUID if there's no extended header.
	Name guid.GUID
	// DataOffset is where the first file starts, relative to the start of the
	// volume.
	DataOffset int
	Files      []*File
	// FreeSpaceOffset is where the free space at the end of the volume starts,
	// or -1 if the file walk ended some other way.
	FreeSpaceOffset int

	// Opaque is true if the volume's files weren't parsed, either because its
	// format isn't known or because its header is broken. OpaqueReason says
	// which.
	Opaque       bool
	OpaqueReason string

	// Raw is the entire volume, header included.
	Raw []byte
}

// IsStandardFormat returns true if `format` is one of the volume format GUIDs
// whose contents are a plain list of firmware files.
func IsStandardFormat(format guid.GUID) bool {
	return format == FFS1GUID || format == FFS2GUID
}

// defaultRegistry looks for xz once, on first use.
var defaultRegistry = sync.OnceValue(func() *compression.Registry {
	return compression.NewRegistry("")
})

func defaultParser() *Parser {
	return NewParser(defaultRegistry())
}

// ParseVolume parses a volume with a default parser, see [Parser.ParseVolume].
func ParseVolume(buf []byte) (*Volume, error) {
	return defaultParser().ParseVolume(buf)
}

// ParseVolume parses the volume at the start of `buf`. `buf` may run past the
// end of the volume; the volume's declared length decides how much is used.
//
// An error is returned only if the volume's extent can't be determined: the
// header is truncated, or the declared length is zero or runs past the end of
// `buf`. Every other problem is recorded as a diagnostic. A volume with a bad
// header length or an unknown format is returned with Opaque set.
func (p *Parser) ParseVolume(buf []byte) (*Volume, error) {
	return p.parseVolume(buf, cursor{path: "volume"})
}

// ParseVolumeAt is like ParseVolume, but diagnostics report `path` and offsets
// relative to `baseOffset`, the location of `buf` within a larger image.
func (p *Parser) ParseVolumeAt(buf []byte, baseOffset int64, path string) (*Volume, error) {
	return p.parseVolume(buf, cursor{path: path, base: baseOffset})
}

func (p *Parser) parseVolume(buf []byte, at cursor) (*Volume, error) {
	if len(buf) < VolumeFixedHeaderSize {
		return nil, fvkit.Errorf(
			fvkit.ErrTruncatedInput,
			"volume header needs %#x bytes, %#x available",
			VolumeFixedHeaderSize,
			len(buf),
		)
	}

	volume := &Volume{
		GUID:            guid.GUID(buf[VolumeGUIDOffset : VolumeGUIDOffset+guid.Size]),
		Length:          binary.LittleEndian.Uint64(buf[VolumeLengthOffset:]),
		Attributes:      binary.LittleEndian.Uint32(buf[VolumeAttributesOffset:]),
		HeaderLength:    binary.LittleEndian.Uint16(buf[VolumeHeaderLengthOffset:]),
		Checksum:        binary.LittleEndian.Uint16(buf[VolumeChecksumOffset:]),
		ExtHeaderOffset: binary.LittleEndian.Uint16(buf[VolumeExtHeaderOffset:]),
		Revision:        buf[VolumeRevisionOffset],
		FreeSpaceOffset: -1,
	}
	copy(volume.Signature[:], buf[VolumeSignatureOffset:])

	if volume.Length == 0 {
		return nil, fvkit.Errorf(fvkit.ErrInvalidLength, "volume declares a length of zero")
	}
	if volume.Length > uint64(len(buf)) {
		return nil, fvkit.Errorf(
			fvkit.ErrOverflow,
			"volume declares %#x bytes but only %#x remain",
			volume.Length,
			len(buf),
		)
	}
	volume.Raw = buf[:volume.Length]

	if volume.Signature != VolumeSignature {
		p.makeOpaque(volume, at, fvkit.Errorf(
			fvkit.ErrUnknownVolumeFormat, "bad signature %q", volume.Signature[:]))
		return volume, nil
	}
	if uint64(volume.HeaderLength) >= volume.Length || volume.HeaderLength < VolumeFixedHeaderSize {
		p.makeOpaque(volume, at, fvkit.Errorf(
			fvkit.ErrInvalidLength,
			"header length %#x not in [%#x, %#x)",
			volume.HeaderLength,
			VolumeFixedHeaderSize,
			volume.Length,
		))
		return volume, nil
	}

	volume.BlockMap = readBlockMap(volume.Raw[VolumeBlockMapOffset:volume.HeaderLength])
	volume.DataOffset = int(volume.HeaderLength)

	if !IsStandardFormat(volume.GUID) {
		p.makeOpaque(volume, at, fvkit.Errorf(fvkit.ErrUnknownVolumeFormat, "format %s", volume.GUID))
		return volume, nil
	}

	p.readExtendedHeader(volume, at)
	p.debug(at, 0, "volume %s, %#x bytes, files start at %#x", volume.GUID, volume.Length, volume.DataOffset)
	p.walkFiles(volume, at)
	return volume, nil
}

func (p *Parser) makeOpaque(volume *Volume, at cursor, reason error) {
	volume.Opaque = true
	volume.OpaqueReason = reason.Error()
	p.warn(at, 0, reason)
}

func readBlockMap(data []byte) []BlockMapEntry {
	var entries []BlockMapEntry
	for offset := 0; offset+8 <= len(data); offset += 8 {
		entry := BlockMapEntry{
			NumBlocks: binary.LittleEndian.Uint32(data[offset:]),
			Length:    binary.LittleEndian.Uint32(data[offset+4:]),
		}
		if entry.NumBlocks == 0 && entry.Length == 0 {
			break
		}
		entries = append(entries, entry)
	}
	return entries
}

// readExtendedHeader moves the volume's data offset past the extended header,
// if there is one. A broken extended header is ignored with a diagnostic.
func (p *Parser) readExtendedHeader(volume *Volume, at cursor) {
	if volume.ExtHeaderOffset == 0 {
		return
	}

	start := int(volume.ExtHeaderOffset)
	if start < int(volume.HeaderLength) || start+guid.Size+4 > len(volume.Raw) {
		p.warn(at, start, fvkit.Errorf(
			fvkit.ErrOverflow, "extended header at %#x is outside the volume", start))
		return
	}

	name, _ := guid.Decode(volume.Raw, start)
	size := int(binary.LittleEndian.Uint32(volume.Raw[start+guid.Size:]))
	end := start + size
	if size < guid.Size+4 || end > len(volume.Raw) {
		p.warn(at, start, fvkit.Errorf(
			fvkit.ErrInvalidLength, "extended header declares %#x bytes", size))
		return
	}

	volume.Name = name
	volume.DataOffset = alignUp(end, FileAlignment)
}

func (p *Parser) walkFiles(volume *Volume, at cursor) {
	raw := volume.Raw
	index := 0

	for offset := volume.DataOffset; len(raw)-offset >= VolumeMinTrailer; {
		fileAt := at.child(fmt.Sprintf("file[%d]", index), offset)
		file, outcome, size, err := p.parseFile(raw, offset, fileAt)
		if err != nil {
			// Without a trustworthy length there's no way to find the next file.
			p.warn(fileAt, 0, err)
			return
		}

		switch outcome {
		case fileFreeSpace:
			volume.FreeSpaceOffset = offset
			if !padding.IsUniformOf(raw[offset:], ErasePolarityByte) {
				p.debug(fileAt, 0, "free space contains data")
			}
			return
		case fileParsed:
			volume.Files = append(volume.Files, file)
			index++
		}

		// Files are aligned relative to the start of the data area, not the
		// volume.
		next := uint64(offset-volume.DataOffset) + size
		if next > uint64(len(raw)) {
			return
		}
		offset = volume.DataOffset + alignUp(int(next), FileAlignment)
	}
}

// FindFile returns the first file in the volume with the given GUID, or nil.
// Nested volumes aren't searched.
func (v *Volume) FindFile(fileGUID guid.GUID) *File {
	for _, file := range v.Files {
		if file.GUID == fileGUID {
			return file
		}
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Building

// checksum16 gives the value that makes `data` sum to zero as a sequence of
// little-endian 16-bit words. `data` must have an even length.
func checksum16(data []byte) uint16 {
	sum := uint16(0)
	for i := 0; i+1 < len(data); i += 2 {
		sum += binary.LittleEndian.Uint16(data[i:])
	}
	return -sum
}

// blockSizeFor picks the largest conventional block size that evenly divides
// `totalSize`.
func blockSizeFor(totalSize uint64) uint32 {
	for _, size := range []uint32{0x1000, 0x200, FileAlignment} {
		if totalSize%uint64(size) == 0 {
			return size
		}
	}
	return 1
}

// PackFiles joins built files into the data area of a volume, padding with the
// erase byte so that each file starts on an 8-byte boundary.
func PackFiles(files ...[]byte) []byte {
	var packed []byte
	for _, file := range files {
		if pad := alignUp(len(packed), FileAlignment) - len(packed); pad > 0 {
			packed = append(packed, padding.Fill(pad, ErasePolarityByte)...)
		}
		packed = append(packed, file...)
	}
	return packed
}

// MaxBuildVolumeSize is the largest volume [BuildVolume] will create. The whole
// volume is built in memory, and no flash part comes close to this size.
const MaxBuildVolumeSize = 1 << 30

// BuildVolume creates a standard volume of exactly `totalSize` bytes holding
// `files`, each of which is a file created with [BuildFile]. The space after
// the last file is filled with the erase byte (0xff).
//
// It fails with [fvkit.ErrVolumeTooSmall] if the header and files don't fit,
// and with [fvkit.ErrInvalidArgument] if `totalSize` exceeds
// [MaxBuildVolumeSize].
func BuildVolume(format guid.GUID, totalSize uint64, files [][]byte) ([]byte, error) {
	if totalSize > MaxBuildVolumeSize {
		return nil, fvkit.Errorf(
			fvkit.ErrInvalidArgument,
			"volume size %#x is larger than the %#x-byte limit",
			totalSize,
			MaxBuildVolumeSize,
		)
	}

	packed := PackFiles(files...)
	needed := uint64(VolumeHeaderLength) + uint64(len(packed))
	if needed > totalSize {
		return nil, fvkit.Errorf(
			fvkit.ErrVolumeTooSmall,
			"need %#x bytes for header and files, volume size is %#x",
			needed,
			totalSize,
		)
	}

	blockSize := blockSizeFor(totalSize)
	numBlocks := totalSize / uint64(blockSize)

	header := make([]byte, VolumeHeaderLength)
	copy(header[VolumeGUIDOffset:], format.Encode())
	binary.LittleEndian.PutUint64(header[VolumeLengthOffset:], totalSize)
	copy(header[VolumeSignatureOffset:], VolumeSignature[:])
	binary.LittleEndian.PutUint32(header[VolumeAttributesOffset:], VolumeAttributes)
	binary.LittleEndian.PutUint16(header[VolumeHeaderLengthOffset:], VolumeHeaderLength)
	header[VolumeRevisionOffset] = VolumeRevision
	binary.LittleEndian.PutUint32(header[VolumeBlockMapOffset:], uint32(numBlocks))
	binary.LittleEndian.PutUint32(header[VolumeBlockMapOffset+4:], blockSize)
	// The (0, 0) terminator is already there.
	binary.LittleEndian.PutUint16(header[VolumeChecksumOffset:], checksum16(header))

	volume := padding.Fill(int(totalSize), ErasePolarityByte)
	writer := bytewriter.New(volume)
	if _, err := writer.Write(header); err != nil {
		return nil, fvkit.ErrVolumeTooSmall.Wrap(err)
	}
	if _, err := writer.Write(packed); err != nil {
		return nil, fvkit.ErrVolumeTooSmall.Wrap(err)
	}
	return volume, nil
}
