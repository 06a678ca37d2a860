package ffs

import "github.com/dargueta/fvkit/tables"

// FileType is the type code of a firmware file.
type FileType uint8

const (
	FileTypeRaw                 FileType = 0x01
	FileTypeFreeform            FileType = 0x02
	FileTypeSecurityCore        FileType = 0x03
	FileTypePEICore             FileType = 0x04
	FileTypeDXECore             FileType = 0x05
	FileTypePEIM                FileType = 0x06
	FileTypeDriver              FileType = 0x07
	FileTypeCombinedPEIMDriver  FileType = 0x08
	FileTypeApplication         FileType = 0x09
	FileTypeMM                  FileType = 0x0a
	FileTypeFirmwareVolumeImage FileType = 0x0b
	FileTypePad                 FileType = 0xf0
)

func (t FileType) String() string {
	return tables.FileTypeName(uint8(t))
}

// HasSections is false for the file types whose content is never a section
// list.
func (t FileType) HasSections() bool {
	return t != FileTypeRaw && t != FileTypePad
}

// SectionType is the type code of a file section.
type SectionType uint8

const (
	SectionTypeCompression         SectionType = 0x01
	SectionTypeGUIDDefined         SectionType = 0x02
	SectionTypeDisposable          SectionType = 0x03
	SectionTypePE32                SectionType = 0x10
	SectionTypePIC                 SectionType = 0x11
	SectionTypeTE                  SectionType = 0x12
	SectionTypeDXEDepex            SectionType = 0x13
	SectionTypeVersion             SectionType = 0x14
	SectionTypeUserInterface       SectionType = 0x15
	SectionTypeCompatibility16     SectionType = 0x16
	SectionTypeFirmwareVolumeImage SectionType = 0x17
	SectionTypeFreeformSubtypeGUID SectionType = 0x18
	SectionTypeRaw                 SectionType = 0x19
	SectionTypePEIDepex            SectionType = 0x1b
	SectionTypeMMDepex             SectionType = 0x1c
)

func (t SectionType) String() string {
	return tables.SectionTypeName(uint8(t))
}

// IsEncapsulation is true for section types whose payload contains further
// sections.
func (t SectionType) IsEncapsulation() bool {
	return t == SectionTypeCompression || t == SectionTypeGUIDDefined || t == SectionTypeDisposable
}
