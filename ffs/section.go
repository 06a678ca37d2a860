package ffs

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/guid"
	"github.com/dargueta/fvkit/tables"
	"github.com/dargueta/fvkit/utilities/padding"
	"golang.org/x/text/encoding/unicode"
)

// Section is one typed chunk of a firmware file's content.
type Section struct {
	Type SectionType
	// Offset is where the section starts, relative to the start of the section
	// list it was read from.
	Offset int
	// Size is the declared size of the section, header included.
	Size       uint64
	HeaderSize int
	// Extended is true if the size was stored in the extended header field.
	Extended bool
	// Payload is everything after the common header.
	Payload []byte

	// Name is set for USER_INTERFACE sections.
	Name string

	// BuildNumber and Version are set for VERSION sections.
	BuildNumber uint16
	Version     string

	// SubtypeGUID is set for FREEFORM_SUBTYPE_GUID sections.
	SubtypeGUID guid.GUID

	// GUIDDefined is set for GUID_DEFINED sections.
	GUIDDefined *GUIDDefinedHeader

	// Volume is set for FIRMWARE_VOLUME_IMAGE sections that parsed.
	Volume *Volume

	// Children holds the sections of an expanded encapsulation section, i.e.
	// the decompressed contents of a GUID-defined section.
	Children []*Section
}

// GUIDDefinedHeader is the extra header of a GUID_DEFINED section.
type GUIDDefinedHeader struct {
	// Algorithm says how to interpret the data, usually a compression GUID.
	Algorithm guid.GUID
	// DataOffset is where the data starts, relative to the start of the section.
	DataOffset uint16
	Attributes uint16
	// Data is the encapsulated (usually compressed) data.
	Data []byte
	// Expanded is true if Data was decoded and parsed into the section's
	// Children.
	Expanded bool
}

var ucs2 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeUCS2 decodes a NUL-terminated UTF-16LE string. Anything after the first
// NUL is ignored.
func decodeUCS2(data []byte) (string, error) {
	end := len(data) &^ 1
	for i := 0; i+1 < end; i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			end = i
			break
		}
	}

	decoded, err := ucs2.NewDecoder().Bytes(data[:end])
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func encodeUCS2(text string) ([]byte, error) {
	encoded, err := ucs2.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, err
	}
	return append(encoded, 0, 0), nil
}

// ParseSections parses a section list with a default parser, see
// [Parser.ParseSections].
func ParseSections(buf []byte) ([]*Section, error) {
	return defaultParser().ParseSections(buf)
}

// ParseSections parses the section list in `buf`, typically the content of a
// firmware file.
//
// Parsing stops at the first structural problem (a length that's too small or
// that runs past the end of `buf`). The sections before it are returned along
// with the error, a [Diagnostic] locating the bad section. Problems confined to one section, such as an unsupported
// compression algorithm, are recorded as diagnostics instead.
func (p *Parser) ParseSections(buf []byte) ([]*Section, error) {
	return p.parseSections(buf, cursor{})
}

func (p *Parser) parseSections(buf []byte, at cursor) ([]*Section, error) {
	var sections []*Section
	index := 0

	for offset := 0; len(buf)-offset >= SectionMinRemaining; index++ {
		if padding.IsUniform(buf[offset:]) {
			// Free space at the end of the file.
			break
		}

		sectionAt := at.child(fmt.Sprintf("section[%d]", index), offset)
		length, err := sectionLength.read(buf, offset)
		if err == nil {
			err = sectionLength.check(length, offset, len(buf)-offset)
		}
		if err != nil {
			return sections, sectionAt.diagnostic(0, err)
		}

		end := offset + int(length.Total)
		section := &Section{
			Type:       SectionType(buf[offset+SectionTypeOffset]),
			Offset:     offset,
			Size:       length.Total,
			HeaderSize: length.HeaderSize,
			Extended:   length.Extended,
			Payload:    buf[offset+length.HeaderSize : end],
		}

		p.interpretSection(section, buf[offset:end], sectionAt)

		if section.Type == SectionTypeRaw && padding.IsUniform(section.Payload) {
			p.debug(sectionAt, 0, "dropping RAW section of %#x filler bytes", len(section.Payload))
		} else {
			sections = append(sections, section)
		}

		offset = alignUp(end, SectionAlignment)
	}
	return sections, nil
}

// interpretSection fills in the type-specific fields of `section`. `raw` is the
// entire section, header included.
func (p *Parser) interpretSection(section *Section, raw []byte, at cursor) {
	var err error

	switch section.Type {
	case SectionTypeGUIDDefined:
		err = p.interpretGUIDDefined(section, raw, at)
	case SectionTypeFirmwareVolumeImage:
		err = p.interpretVolumeImage(section, at)
	case SectionTypeUserInterface:
		section.Name, err = decodeUCS2(section.Payload)
	case SectionTypeVersion:
		if len(section.Payload) < 2 {
			err = fvkit.Errorf(fvkit.ErrTruncatedInput, "VERSION section has no build number")
			break
		}
		section.BuildNumber = binary.LittleEndian.Uint16(section.Payload)
		section.Version, err = decodeUCS2(section.Payload[2:])
	case SectionTypeFreeformSubtypeGUID:
		section.SubtypeGUID, err = guid.Decode(section.Payload, 0)
	case SectionTypeCompression:
		err = fvkit.Errorf(fvkit.ErrUnsupportedCompression, "EFI compression section left compressed")
	default:
		if _, known := tables.LookupSectionType(uint8(section.Type)); !known {
			err = fmt.Errorf("unrecognized section type 0x%02x", uint8(section.Type))
		}
	}

	if err != nil {
		p.warn(at, 0, err)
	}
}

func (p *Parser) interpretGUIDDefined(section *Section, raw []byte, at cursor) error {
	algorithm, err := guid.Decode(section.Payload, GUIDDefinedAlgorithmOffset)
	if err != nil {
		return err
	}
	header := &GUIDDefinedHeader{Algorithm: algorithm}
	section.GUIDDefined = header

	if len(section.Payload) < GUIDDefinedHeaderSize {
		// Without the data offset there's nothing to expand, but the algorithm
		// is still worth reporting.
		p.warn(at, 0, fvkit.Errorf(
			fvkit.ErrTruncatedInput,
			"GUID-defined header needs %d bytes, section payload is %d",
			GUIDDefinedHeaderSize,
			len(section.Payload),
		))
		_, err = p.Compression.Lookup(algorithm)
		return err
	}

	header.DataOffset = binary.LittleEndian.Uint16(section.Payload[GUIDDefinedDataOffsetOffset:])
	header.Attributes = binary.LittleEndian.Uint16(section.Payload[GUIDDefinedAttributesOffset:])

	minDataOffset := section.HeaderSize + GUIDDefinedHeaderSize
	dataOffset := int(header.DataOffset)
	if dataOffset < minDataOffset || dataOffset > len(raw) {
		p.warn(at, 0, fvkit.Errorf(
			fvkit.ErrInvalidLength,
			"GUID-defined data offset %#x outside [%#x, %#x], assuming %#x",
			dataOffset,
			minDataOffset,
			len(raw),
			minDataOffset,
		))
		dataOffset = minDataOffset
	}
	header.Data = raw[dataOffset:]

	codec, err := p.Compression.Lookup(algorithm)
	if err != nil {
		return err
	}
	if at.depth >= p.maxDepth() {
		return fvkit.Errorf(fvkit.ErrRecursionLimit, "not expanding %s data", codec.Name())
	}

	decoded, err := codec.Decode(header.Data)
	if err != nil {
		return fvkit.ErrCorruptedData.WithMessage(codec.Name()).Wrap(err)
	}
	p.debug(at, 0, "%s: %#x bytes expanded to %#x", codec.Name(), len(header.Data), len(decoded))

	children, err := p.parseSections(decoded, at.rebased("decompressed"))
	section.Children = children
	header.Expanded = true
	return err
}

func (p *Parser) interpretVolumeImage(section *Section, at cursor) error {
	if at.depth >= p.maxDepth() {
		return fvkit.Errorf(fvkit.ErrRecursionLimit, "not parsing nested volume")
	}

	volume, err := p.parseVolume(section.Payload, at.nested("volume", section.HeaderSize))
	if err != nil {
		return err
	}
	section.Volume = volume
	return nil
}

// UserInterfaceName returns the display name from the first USER_INTERFACE
// section found in `sections`, searching inside expanded encapsulation
// sections too. The boolean is false if there isn't one.
func UserInterfaceName(sections []*Section) (string, bool) {
	for _, section := range sections {
		if section.Type == SectionTypeUserInterface {
			return section.Name, true
		}
		if name, ok := UserInterfaceName(section.Children); ok {
			return name, true
		}
	}
	return "", false
}

////////////////////////////////////////////////////////////////////////////////
// Building

// BuildSection creates a section of type `sectionType` holding `payload`. The
// extended header is used only if the total size doesn't fit in 24 bits.
//
// The result isn't padded; [ConcatSections] takes care of alignment between
// sections.
func BuildSection(sectionType SectionType, payload []byte) ([]byte, error) {
	headerSize, extended, err := sectionLength.headerSizeFor(len(payload))
	if err != nil {
		return nil, err
	}

	total := headerSize + len(payload)
	section := make([]byte, total)
	sectionLength.write(section, uint64(total), extended)
	section[SectionTypeOffset] = byte(sectionType)
	copy(section[headerSize:], payload)
	return section, nil
}

// BuildUserInterfaceSection creates a USER_INTERFACE section naming a file.
func BuildUserInterfaceSection(name string) ([]byte, error) {
	encoded, err := encodeUCS2(name)
	if err != nil {
		return nil, fvkit.ErrInvalidArgument.Wrap(err)
	}
	return BuildSection(SectionTypeUserInterface, encoded)
}

// BuildVersionSection creates a VERSION section.
func BuildVersionSection(buildNumber uint16, version string) ([]byte, error) {
	encoded, err := encodeUCS2(version)
	if err != nil {
		return nil, fvkit.ErrInvalidArgument.Wrap(err)
	}

	payload := make([]byte, 2, 2+len(encoded))
	binary.LittleEndian.PutUint16(payload, buildNumber)
	return BuildSection(SectionTypeVersion, append(payload, encoded...))
}

// BuildFreeformSubtypeSection creates a FREEFORM_SUBTYPE_GUID section.
func BuildFreeformSubtypeSection(subtype guid.GUID, data []byte) ([]byte, error) {
	return BuildSection(SectionTypeFreeformSubtypeGUID, append(subtype.Encode(), data...))
}

// BuildGUIDDefinedSection creates a GUID_DEFINED section whose data is
// interpreted according to `algorithm`.
func BuildGUIDDefinedSection(algorithm guid.GUID, attributes uint16, data []byte) ([]byte, error) {
	headerSize, _, err := sectionLength.headerSizeFor(GUIDDefinedHeaderSize + len(data))
	if err != nil {
		return nil, err
	}

	payload := make([]byte, GUIDDefinedHeaderSize, GUIDDefinedHeaderSize+len(data))
	copy(payload[GUIDDefinedAlgorithmOffset:], algorithm.Encode())
	binary.LittleEndian.PutUint16(
		payload[GUIDDefinedDataOffsetOffset:], uint16(headerSize+GUIDDefinedHeaderSize))
	binary.LittleEndian.PutUint16(payload[GUIDDefinedAttributesOffset:], attributes)
	return BuildSection(SectionTypeGUIDDefined, append(payload, data...))
}

// Compressor is the part of [compression.Registry] used for building.
type Compressor interface {
	Compress(data []byte, algorithm guid.GUID) ([]byte, error)
}

// BuildCompressedSection compresses a section list with `algorithm` and wraps
// it in a GUID-defined section.
func BuildCompressedSection(codec Compressor, algorithm guid.GUID, sections []byte) ([]byte, error) {
	compressed, err := codec.Compress(sections, algorithm)
	if err != nil {
		return nil, err
	}
	return BuildGUIDDefinedSection(algorithm, GUIDedSectionProcessingRequired, compressed)
}

// BuildCompressedVolumeSection wraps a complete volume in a
// FIRMWARE_VOLUME_IMAGE section, then compresses that into a GUID-defined
// section. This is the shape EDK2 uses for a compressed main volume.
func BuildCompressedVolumeSection(codec Compressor, algorithm guid.GUID, volume []byte) ([]byte, error) {
	inner, err := BuildSection(SectionTypeFirmwareVolumeImage, volume)
	if err != nil {
		return nil, err
	}
	return BuildCompressedSection(codec, algorithm, inner)
}

// ConcatSections joins built sections into one section list, padding with
// zeroes so that each section starts on a 4-byte boundary.
func ConcatSections(sections ...[]byte) []byte {
	var result []byte
	for _, section := range sections {
		if pad := alignUp(len(result), SectionAlignment) - len(result); pad > 0 {
			result = append(result, make([]byte, pad)...)
		}
		result = append(result, section...)
	}
	return result
}
