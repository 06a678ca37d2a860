package ffs

import (
	"fmt"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/guid"
	"github.com/dargueta/fvkit/tables"
)

// File is one firmware file within a volume.
type File struct {
	GUID           guid.GUID
	Type           FileType
	Attributes     uint8
	State          uint8
	HeaderChecksum uint8
	DataChecksum   uint8
	// Offset is where the file starts, relative to the start of the volume.
	Offset int
	// Size is the declared size of the file, header included.
	Size       uint64
	HeaderSize int
	// Extended is true if the size was stored in the extended header field.
	Extended bool
	// Content is everything after the header, for every file type.
	Content []byte
	// Sections is the parsed content of file types that hold sections. It's
	// nil for RAW and FFS_PAD files.
	Sections []*Section
	// Name comes from the file's USER_INTERFACE section, if it has one.
	Name string
}

// fileOutcome says what parseFile found.
type fileOutcome int

const (
	fileParsed fileOutcome = iota
	// fileSkipped means a padding file was found and should be stepped over.
	fileSkipped
	// fileFreeSpace means the walk has reached the volume's free space.
	fileFreeSpace
)

// parseFile reads the file starting at `volume[offset]`. The returned length is
// the file's declared size and is valid unless there's an error or the outcome
// is fileFreeSpace.
//
// Errors are only returned for problems that make the file's extent unknown,
// i.e. that make it unsafe to continue the walk. Problems inside the file's
// content are recorded as diagnostics.
func (p *Parser) parseFile(volume []byte, offset int, at cursor) (*File, fileOutcome, uint64, error) {
	length, err := fileLength.read(volume, offset)
	if err != nil {
		return nil, 0, 0, err
	}

	header := volume[offset:]
	if length.Extended && length.Total == fileLength.extendedAllOnes() {
		return nil, fileFreeSpace, 0, nil
	}
	if err = fileLength.check(length, offset, len(volume)-offset); err != nil {
		return nil, 0, 0, err
	}

	fileGUID, err := guid.Decode(header, FileGUIDOffset)
	if err != nil {
		return nil, 0, 0, err
	}
	if fileGUID == guid.Ones {
		p.debug(at, 0, "skipping %#x-byte padding file", length.Total)
		return nil, fileSkipped, length.Total, nil
	}

	file := &File{
		GUID:           fileGUID,
		Type:           FileType(header[FileTypeOffset]),
		Attributes:     header[FileAttributesOffset],
		State:          header[FileStateOffset],
		HeaderChecksum: header[FileHeaderChecksumOffset],
		DataChecksum:   header[FileDataChecksumOffset],
		Offset:         offset,
		Size:           length.Total,
		HeaderSize:     length.HeaderSize,
		Extended:       length.Extended,
		Content:        volume[offset+length.HeaderSize : offset+int(length.Total)],
	}

	if _, known := tables.LookupFileType(uint8(file.Type)); !known {
		p.warn(at, 0, fmt.Errorf("unrecognized file type 0x%02x", uint8(file.Type)))
	}

	if file.Type.HasSections() {
		sections, err := p.parseSections(file.Content, at.child("content", length.HeaderSize))
		if err != nil {
			p.warn(at, length.HeaderSize, err)
		}
		file.Sections = sections
		file.Name, _ = UserInterfaceName(sections)
	}

	p.debug(at, 0, "%s file %s, %#x bytes", file.Type, file.GUID, file.Size)
	return file, fileParsed, length.Total, nil
}

// FindSections returns every section of type `sectionType` in the file,
// including those inside expanded encapsulation sections, in depth-first
// order.
func (f *File) FindSections(sectionType SectionType) []*Section {
	return findSections(f.Sections, sectionType, nil)
}

func findSections(sections []*Section, sectionType SectionType, found []*Section) []*Section {
	for _, section := range sections {
		if section.Type == sectionType {
			found = append(found, section)
		}
		found = findSections(section.Children, sectionType, found)
	}
	return found
}

////////////////////////////////////////////////////////////////////////////////
// Building

// checksum8 gives the value that makes `data` sum to zero as a sequence of
// bytes.
func checksum8(data []byte) uint8 {
	sum := uint8(0)
	for _, b := range data {
		sum += b
	}
	return -sum
}

// BuildFile creates a firmware file holding `content`, which is either a
// section list (see [ConcatSections]) or raw bytes for RAW and FFS_PAD files.
//
// The result isn't padded; the volume is responsible for aligning files.
func BuildFile(fileGUID guid.GUID, fileType FileType, content []byte) ([]byte, error) {
	if fileGUID == guid.Ones {
		return nil, fvkit.Errorf(fvkit.ErrInvalidArgument, "the all-ones GUID is reserved for padding")
	}

	headerSize, extended, err := fileLength.headerSizeFor(len(content))
	if err != nil {
		return nil, err
	}

	total := headerSize + len(content)
	file := make([]byte, total)
	copy(file[FileGUIDOffset:], fileGUID.Encode())
	file[FileTypeOffset] = byte(fileType)
	if extended {
		file[FileAttributesOffset] = FileAttributeLargeFile
	}
	fileLength.write(file, uint64(total), extended)

	// The header checksum is computed with both checksum bytes and the state
	// treated as zero, which they still are at this point.
	file[FileHeaderChecksumOffset] = checksum8(file[:headerSize])
	file[FileDataChecksumOffset] = FileDataChecksumUnused
	file[FileStateOffset] = FileStateValid

	copy(file[headerSize:], content)
	return file, nil
}
