package ffs_test

import (
	"testing"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/ffs"
	"github.com/dargueta/fvkit/guid"
	fvtest "github.com/dargueta/fvkit/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFile__Header(t *testing.T) {
	fileGUID := guid.MustParse("11111111-2222-3333-4444-555555555555")
	file, err := ffs.BuildFile(fileGUID, ffs.FileTypeDriver, []byte{1, 2, 3})
	require.NoError(t, err)

	require.Len(t, file, ffs.FileHeaderSize+3)
	assert.Equal(t, fileGUID.Encode(), file[:16])
	assert.EqualValues(t, ffs.FileTypeDriver, file[ffs.FileTypeOffset])
	assert.EqualValues(t, 0, file[ffs.FileAttributesOffset])
	assert.Equal(t, []byte{0x1b, 0x00, 0x00}, file[ffs.FileSizeOffset:ffs.FileSizeOffset+3])
	assert.EqualValues(t, 0xf8, file[ffs.FileStateOffset])
	assert.EqualValues(t, 0xaa, file[ffs.FileDataChecksumOffset])
	assert.Equal(t, []byte{1, 2, 3}, file[ffs.FileHeaderSize:])

	// The header checksum covers the header with the data checksum and state
	// zeroed out.
	sum := uint8(0)
	for i, b := range file[:ffs.FileHeaderSize] {
		if i != ffs.FileDataChecksumOffset && i != ffs.FileStateOffset {
			sum += b
		}
	}
	assert.Zero(t, sum)
}

func TestBuildFile__RejectsPaddingGUID(t *testing.T) {
	_, err := ffs.BuildFile(guid.Ones, ffs.FileTypeRaw, []byte{1})
	assert.ErrorIs(t, err, fvkit.ErrInvalidArgument)
}

func TestParseVolume__FreeformScenario(t *testing.T) {
	fileGUID := guid.MustParse("aabbccdd-eeff-0011-2233-445566778899")
	file, err := ffs.BuildFile(fileGUID, ffs.FileTypeFreeform, []byte("ABC"))
	require.NoError(t, err)
	volumeBytes, err := ffs.BuildVolume(ffs.FFS2GUID, 0x1000, [][]byte{file})
	require.NoError(t, err)
	require.Len(t, volumeBytes, 0x1000)

	parser := ffs.NewParser(fvtest.NewRegistry())
	volume, err := parser.ParseVolume(volumeBytes)
	require.NoError(t, err)
	assert.Empty(t, parser.Diagnostics())

	require.Len(t, volume.Files, 1)
	parsed := volume.Files[0]
	assert.Equal(t, fileGUID, parsed.GUID)
	assert.Equal(t, ffs.FileTypeFreeform, parsed.Type)
	assert.Equal(t, []byte("ABC"), parsed.Content)
	assert.Empty(t, parsed.Sections)
}

func TestParseVolume__RawFilesAreNotSectioned(t *testing.T) {
	content := fvtest.Section(t, ffs.SectionTypeUserInterface, []byte{'x', 0, 0, 0})
	volumeBytes := fvtest.Volume(
		t,
		0x1000,
		fvtest.RawFile(t, fvtest.RandomGUID(t), ffs.FileTypeRaw, content),
		fvtest.RawFile(t, fvtest.RandomGUID(t), ffs.FileTypePad, content),
	)

	volume, err := ffs.ParseVolume(volumeBytes)
	require.NoError(t, err)
	require.Len(t, volume.Files, 2)
	for _, file := range volume.Files {
		assert.Equal(t, content, file.Content)
		assert.Nil(t, file.Sections)
		assert.Empty(t, file.Name)
	}
}

func TestParseVolume__FileName(t *testing.T) {
	volumeBytes := fvtest.Volume(
		t,
		0x1000,
		fvtest.File(
			t,
			fvtest.RandomGUID(t),
			ffs.FileTypeApplication,
			fvtest.Section(t, ffs.SectionTypePE32, fvtest.RandomBytes(t, 64)),
			fvtest.NameSection(t, "Shell"),
		),
	)

	volume, err := ffs.ParseVolume(volumeBytes)
	require.NoError(t, err)
	require.Len(t, volume.Files, 1)
	assert.Equal(t, "Shell", volume.Files[0].Name)
	assert.Len(t, volume.Files[0].Sections, 2)
}

func TestParseVolume__ExtendedFileLength(t *testing.T) {
	fileGUID := fvtest.RandomGUID(t)
	content := fvtest.RandomBytes(t, 8)

	// BuildFile only uses the extended header above 16 MiB, so make a small
	// one by hand.
	file := make([]byte, ffs.FileExtendedHeaderSize, ffs.FileExtendedHeaderSize+len(content))
	copy(file, fileGUID.Encode())
	file[ffs.FileTypeOffset] = byte(ffs.FileTypeRaw)
	file[ffs.FileAttributesOffset] = ffs.FileAttributeLargeFile
	copy(file[ffs.FileSizeOffset:], []byte{0xff, 0xff, 0xff})
	file[ffs.FileStateOffset] = ffs.FileStateValid
	file[ffs.FileExtendedSizeOffset] = ffs.FileExtendedHeaderSize + 8
	file = append(file, content...)

	volume, err := ffs.ParseVolume(fvtest.Volume(t, 0x1000, file))
	require.NoError(t, err)
	require.Len(t, volume.Files, 1)

	parsed := volume.Files[0]
	assert.Equal(t, fileGUID, parsed.GUID)
	assert.True(t, parsed.Extended)
	assert.EqualValues(t, ffs.FileExtendedHeaderSize+8, parsed.Size)
	assert.Equal(t, ffs.FileExtendedHeaderSize, parsed.HeaderSize)
	assert.Equal(t, content, parsed.Content)
}

func TestParseVolume__SkipsPaddingFiles(t *testing.T) {
	padding := fvtest.RawFile(t, fvtest.RandomGUID(t), ffs.FileTypePad, make([]byte, 13))
	copy(padding, guid.Ones.Encode())
	realGUID := fvtest.RandomGUID(t)

	volume, err := ffs.ParseVolume(
		fvtest.Volume(t, 0x1000, padding, fvtest.RawFile(t, realGUID, ffs.FileTypeRaw, []byte{1, 2})))
	require.NoError(t, err)
	require.Len(t, volume.Files, 1)
	assert.Equal(t, realGUID, volume.Files[0].GUID)
	assert.Equal(t, ffs.VolumeHeaderLength+0x28, volume.Files[0].Offset)
}

func TestParseVolume__FileOverflowStopsWalk(t *testing.T) {
	first := fvtest.RawFile(t, fvtest.RandomGUID(t), ffs.FileTypeRaw, []byte{1, 2, 3})
	second := fvtest.RawFile(t, fvtest.RandomGUID(t), ffs.FileTypeRaw, []byte{4, 5, 6})
	third := fvtest.RawFile(t, fvtest.RandomGUID(t), ffs.FileTypeRaw, []byte{7, 8, 9})
	// Declares far more than the volume holds, but isn't the sentinel.
	copy(second[ffs.FileSizeOffset:], []byte{0x00, 0x00, 0x10})

	parser := ffs.NewParser(nil)
	volume, err := parser.ParseVolume(fvtest.Volume(t, 0x1000, first, second, third))
	require.NoError(t, err)

	require.Len(t, volume.Files, 1, "walk must stop at the bad file")
	require.Len(t, parser.Diagnostics(), 1)
	diagnostic := parser.Diagnostics()[0]
	assert.ErrorIs(t, diagnostic, fvkit.ErrOverflow)
	assert.Equal(t, "volume/file[1]", diagnostic.Path)
	assert.EqualValues(t, ffs.VolumeHeaderLength+0x20, diagnostic.Offset)
}

func TestParseVolume__FileTooShortStopsWalk(t *testing.T) {
	file := fvtest.RawFile(t, fvtest.RandomGUID(t), ffs.FileTypeRaw, []byte{1, 2, 3})
	copy(file[ffs.FileSizeOffset:], []byte{0x04, 0x00, 0x00})

	parser := ffs.NewParser(nil)
	volume, err := parser.ParseVolume(fvtest.Volume(t, 0x1000, file))
	require.NoError(t, err)
	assert.Empty(t, volume.Files)
	require.Len(t, parser.Diagnostics(), 1)
	assert.ErrorIs(t, parser.Diagnostics()[0], fvkit.ErrInvalidLength)
}

func TestParseVolume__BadSectionsKeepFile(t *testing.T) {
	brokenGUID := fvtest.RandomGUID(t)
	nextGUID := fvtest.RandomGUID(t)
	broken := fvtest.RawFile(
		t,
		brokenGUID,
		ffs.FileTypeDriver,
		[]byte{0x40, 0x00, 0x00, byte(ffs.SectionTypePE32), 1, 2, 3, 4},
	)

	parser := ffs.NewParser(nil)
	volume, err := parser.ParseVolume(
		fvtest.Volume(t, 0x1000, broken, fvtest.RawFile(t, nextGUID, ffs.FileTypeRaw, []byte{1})))
	require.NoError(t, err)

	require.Len(t, volume.Files, 2)
	assert.Equal(t, brokenGUID, volume.Files[0].GUID)
	assert.Empty(t, volume.Files[0].Sections)
	assert.Equal(t, nextGUID, volume.Files[1].GUID)

	require.Len(t, parser.Diagnostics(), 1)
	assert.ErrorIs(t, parser.Diagnostics()[0], fvkit.ErrOverflow)
}

func TestParseVolume__BadSectionLocated(t *testing.T) {
	good := fvtest.Section(t, ffs.SectionTypePE32, []byte("MZ\x90\x00"))
	bad := []byte{0x40, 0x00, 0x00, byte(ffs.SectionTypePE32), 1, 2, 3, 4}
	file := fvtest.RawFile(t, fvtest.RandomGUID(t), ffs.FileTypeDriver, ffs.ConcatSections(good, bad))

	parser := ffs.NewParser(nil)
	volume, err := parser.ParseVolumeAt(fvtest.Volume(t, 0x1000, file), 0x10000, "region[1]")
	require.NoError(t, err)
	require.Len(t, volume.Files, 1)
	require.Len(t, volume.Files[0].Sections, 1)

	require.Len(t, parser.Diagnostics(), 1)
	diagnostic := parser.Diagnostics()[0]
	assert.ErrorIs(t, diagnostic, fvkit.ErrOverflow)
	assert.Equal(t, "region[1]/file[0]/content/section[1]", diagnostic.Path)
	assert.EqualValues(
		t, 0x10000+ffs.VolumeHeaderLength+ffs.FileHeaderSize+len(good), diagnostic.Offset)
}

func TestParseVolume__UnknownFileTypeWarns(t *testing.T) {
	fileGUID := fvtest.RandomGUID(t)
	parser := ffs.NewParser(nil)
	volume, err := parser.ParseVolumeAt(
		fvtest.Volume(t, 0x1000, fvtest.File(t, fileGUID, ffs.FileType(0x33), fvtest.NameSection(t, "Odd"))),
		0x20000,
		"region[2]",
	)
	require.NoError(t, err)

	require.Len(t, volume.Files, 1)
	assert.Equal(t, "Odd", volume.Files[0].Name)

	require.Len(t, parser.Diagnostics(), 1)
	diagnostic := parser.Diagnostics()[0]
	assert.Equal(t, "region[2]/file[0]", diagnostic.Path)
	assert.EqualValues(t, 0x20000+ffs.VolumeHeaderLength, diagnostic.Offset)
}

func TestFile__FindSections(t *testing.T) {
	inner := fvtest.Volume(t, 0x1000)
	compressed := fvtest.CompressedVolumeFile(t, fvtest.RandomGUID(t), inner)

	volume, err := ffs.NewParser(fvtest.NewRegistry()).ParseVolume(fvtest.Volume(t, 0x2000, compressed))
	require.NoError(t, err)
	require.Len(t, volume.Files, 1)

	found := volume.Files[0].FindSections(ffs.SectionTypeFirmwareVolumeImage)
	require.Len(t, found, 1)
	require.NotNil(t, found[0].Volume)
	assert.Equal(t, inner, found[0].Volume.Raw)
	assert.Empty(t, volume.Files[0].FindSections(ffs.SectionTypePE32))
}
