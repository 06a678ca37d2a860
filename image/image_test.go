package image_test

import (
	"encoding/binary"
	"testing"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/ffs"
	"github.com/dargueta/fvkit/image"
	"github.com/dargueta/fvkit/regions"
	fvtest "github.com/dargueta/fvkit/testing"
	"github.com/dargueta/fvkit/utilities/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestImage(t *testing.T) []byte {
	inner := fvtest.Volume(
		t,
		0x1000,
		fvtest.File(t, fvtest.RandomGUID(t), ffs.FileTypeDriver, fvtest.NameSection(t, "Inner")),
	)
	mainVolume := fvtest.Volume(
		t,
		0x4000,
		fvtest.File(t, fvtest.RandomGUID(t), ffs.FileTypePEIM, fvtest.NameSection(t, "Peim")),
		fvtest.CompressedVolumeFile(t, fvtest.RandomGUID(t), inner),
	)

	return fvtest.BuildImage(
		t,
		0x20000,
		fvtest.Placement{Offset: 0, Data: fvtest.FlashDescriptor(t)},
		fvtest.Placement{Offset: 0x10000, Data: mainVolume},
		fvtest.Placement{Offset: 0x18000, Data: fvtest.RandomBytes(t, 0x100)},
	)
}

func TestParse__WholeImage(t *testing.T) {
	buf := buildTestImage(t)
	img, err := image.Parse(buf, image.Options{Compression: fvtest.NewRegistry()})
	require.NoError(t, err)
	assert.Empty(t, img.Diagnostics())
	assert.NoError(t, img.Warnings())

	assert.EqualValues(t, 0x20000, img.Size)
	require.Len(t, img.Entries, 3)
	assert.Equal(t, regions.KindDescriptor, img.Entries[0].Region.Kind)
	assert.Equal(t, regions.KindVolume, img.Entries[1].Region.Kind)
	assert.Equal(t, regions.KindUnknown, img.Entries[2].Region.Kind)
	assert.Nil(t, img.Entries[0].Volume)
	assert.Nil(t, img.Entries[2].Volume)

	volumes := img.Volumes()
	require.Len(t, volumes, 1)
	require.Len(t, volumes[0].Files, 2)
	assert.Equal(t, "Peim", volumes[0].Files[0].Name)

	nested := volumes[0].Files[1].FindSections(ffs.SectionTypeFirmwareVolumeImage)
	require.Len(t, nested, 1)
	require.NotNil(t, nested[0].Volume)
	assert.Equal(t, "Inner", nested[0].Volume.Files[0].Name)

	assert.EqualValues(t, 0x14000, img.Coverage.ClaimedBytes())
}

func TestParse__DiagnosticsUseImageOffsets(t *testing.T) {
	volume := fvtest.Volume(t, 0x1000, fvtest.File(t, fvtest.RandomGUID(t), ffs.FileType(0x3d)))
	buf := fvtest.BuildImage(t, 0x4000, fvtest.Placement{Offset: 0x2000, Data: volume})

	img, err := image.Parse(buf, image.Options{Compression: fvtest.NewRegistry()})
	require.NoError(t, err)
	require.Len(t, img.Entries, 1)

	diagnostics := img.Diagnostics()
	require.Len(t, diagnostics, 1)
	assert.Equal(t, "region[0]/file[0]", diagnostics[0].Path)
	assert.EqualValues(t, 0x2000+ffs.VolumeHeaderLength, diagnostics[0].Offset)
	assert.Error(t, img.Warnings())
}

func TestParse__BadVolumeKeepsSiblings(t *testing.T) {
	broken := fvtest.Volume(t, 0x1000)
	binary.LittleEndian.PutUint16(broken[ffs.VolumeHeaderLengthOffset:], 0x2000)
	good := fvtest.Volume(t, 0x1000, fvtest.RawFile(t, fvtest.RandomGUID(t), ffs.FileTypeRaw, []byte{1, 2}))
	buf := fvtest.BuildImage(
		t,
		0x2000,
		fvtest.Placement{Offset: 0, Data: broken},
		fvtest.Placement{Offset: 0x1000, Data: good},
	)

	img, err := image.Parse(buf, image.Options{Compression: fvtest.NewRegistry()})
	require.NoError(t, err)

	volumes := img.Volumes()
	require.Len(t, volumes, 2)
	assert.True(t, volumes[0].Opaque)
	assert.False(t, volumes[1].Opaque)
	assert.Len(t, volumes[1].Files, 1)
	require.Len(t, img.Diagnostics(), 1)
	assert.ErrorIs(t, img.Diagnostics()[0], fvkit.ErrInvalidLength)
}

func TestParse__BadStart(t *testing.T) {
	_, err := image.Parse(make([]byte, 0x100), image.Options{Start: 0x200})
	assert.ErrorIs(t, err, fvkit.ErrInvalidArgument)
}

func TestRead__Stream(t *testing.T) {
	buf := buildTestImage(t)
	stream := fvtest.LoadImage(t, buf)

	img, err := image.Read(stream, image.Options{Start: 0x10000, Compression: fvtest.NewRegistry()})
	require.NoError(t, err)
	require.Len(t, img.Entries, 2, "the descriptor is before the start offset")
	assert.Equal(t, regions.KindVolume, img.Entries[0].Region.Kind)
	assert.EqualValues(t, 0x10000, img.Entries[0].Region.Offset)
}

func TestRead__CompressedFixture(t *testing.T) {
	buf := buildTestImage(t)
	compressed, err := (&compression.LZMA{}).Encode(buf)
	require.NoError(t, err)

	stream := fvtest.LoadCompressedImage(t, compressed, uint(len(buf)))
	img, err := image.Read(stream, image.Options{Compression: fvtest.NewRegistry()})
	require.NoError(t, err)
	assert.Len(t, img.Volumes(), 1)
}
