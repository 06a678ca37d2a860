package regions_test

import (
	"encoding/binary"
	"testing"

	"github.com/dargueta/fvkit/ffs"
	"github.com/dargueta/fvkit/regions"
	fvtest "github.com/dargueta/fvkit/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expectedRegion struct {
	Kind   regions.Kind
	Offset int64
	Size   int
}

func assertRegions(t *testing.T, expected []expectedRegion, found []regions.Region) {
	require.Len(t, found, len(expected))
	for i, region := range found {
		assert.Equalf(t, expected[i].Kind, region.Kind, "region %d", i)
		assert.Equalf(t, expected[i].Offset, region.Offset, "region %d", i)
		assert.Lenf(t, region.Data, expected[i].Size, "region %d", i)
	}
}

func TestScan__DescriptorVolumesAndUnknown(t *testing.T) {
	descriptor := fvtest.FlashDescriptor(t)
	first := fvtest.Volume(t, 0x2000)
	junk := fvtest.RandomBytes(t, 0x1000)
	second := fvtest.Volume(t, 0x1000)

	image := fvtest.BuildImage(
		t,
		0x20000,
		fvtest.Placement{Offset: 0, Data: descriptor},
		fvtest.Placement{Offset: 0x10000, Data: first},
		fvtest.Placement{Offset: 0x14000, Data: junk},
		fvtest.Placement{Offset: 0x15000, Data: second},
	)

	found := (&regions.Scanner{}).Scan(image)
	assertRegions(
		t,
		[]expectedRegion{
			{regions.KindDescriptor, 0, 0x10000},
			{regions.KindVolume, 0x10000, 0x2000},
			// The erased flash before the junk is part of the same unknown run.
			{regions.KindUnknown, 0x12000, 0x3000},
			{regions.KindVolume, 0x15000, 0x1000},
			// The erased flash at the end is uniform, so it's dropped.
		},
		found,
	)

	assert.Equal(t, descriptor, found[0].Data)
	assert.Equal(t, first, found[1].Data)
	assert.Equal(t, image[0x12000:0x15000], found[2].Data)
	assert.Equal(t, second, found[3].Data)
}

func TestScan__UniformGapsSuppressed(t *testing.T) {
	image := fvtest.BuildImage(
		t,
		0x8000,
		fvtest.Placement{Offset: 0x1000, Data: fvtest.Volume(t, 0x1000)},
		fvtest.Placement{Offset: 0x4000, Data: fvtest.Volume(t, 0x2000)},
	)
	// Zeroes are just as uniform as erased flash.
	copy(image[0x2000:0x4000], make([]byte, 0x2000))

	assertRegions(
		t,
		[]expectedRegion{
			{regions.KindVolume, 0x1000, 0x1000},
			{regions.KindVolume, 0x4000, 0x2000},
		},
		(&regions.Scanner{}).Scan(image),
	)
}

func TestScan__UnalignedVolume(t *testing.T) {
	image := fvtest.BuildImage(
		t,
		0x3000,
		fvtest.Placement{Offset: 0x18, Data: fvtest.Volume(t, 0x1000)},
	)

	// Default stride finds it.
	assertRegions(
		t,
		[]expectedRegion{{regions.KindVolume, 0x18, 0x1000}},
		(&regions.Scanner{}).Scan(image),
	)

	// A stride of 0x10 skips right over it, so the whole image is unknown.
	assertRegions(
		t,
		[]expectedRegion{{regions.KindUnknown, 0, 0x3000}},
		(&regions.Scanner{Stride: 0x10}).Scan(image),
	)
}

func TestScan__VolumeTooLongIsUnknown(t *testing.T) {
	volume := fvtest.Volume(t, 0x1000)
	binary.LittleEndian.PutUint64(volume[ffs.VolumeLengthOffset:], 0x100000)
	image := fvtest.BuildImage(t, 0x2000, fvtest.Placement{Offset: 0, Data: volume})

	assertRegions(
		t,
		[]expectedRegion{{regions.KindUnknown, 0, 0x2000}},
		(&regions.Scanner{}).Scan(image),
	)
}

func TestScan__StartAndLength(t *testing.T) {
	image := fvtest.BuildImage(
		t,
		0x6000,
		fvtest.Placement{Offset: 0x0000, Data: fvtest.Volume(t, 0x1000)},
		fvtest.Placement{Offset: 0x2000, Data: fvtest.Volume(t, 0x1000)},
		fvtest.Placement{Offset: 0x4000, Data: fvtest.Volume(t, 0x1000)},
	)

	tests := []struct {
		Name     string
		Scanner  regions.Scanner
		Expected []expectedRegion
	}{
		{
			Name:     "start skips the first volume",
			Scanner:  regions.Scanner{Start: 0x1000},
			Expected: []expectedRegion{{regions.KindVolume, 0x2000, 0x1000}, {regions.KindVolume, 0x4000, 0x1000}},
		},
		{
			Name:    "length cuts off the last volume",
			Scanner: regions.Scanner{Length: 0x4800},
			Expected: []expectedRegion{
				{regions.KindVolume, 0, 0x1000},
				{regions.KindVolume, 0x2000, 0x1000},
				// The erased gap after the second volume joins the header that no
				// longer fits.
				{regions.KindUnknown, 0x3000, 0x1800},
			},
		},
		{
			Name:     "length past the end is clamped",
			Scanner:  regions.Scanner{Start: 0x3000, Length: 0x100000},
			Expected: []expectedRegion{{regions.KindVolume, 0x4000, 0x1000}},
		},
		{
			Name:     "start past the end",
			Scanner:  regions.Scanner{Start: 0x10000},
			Expected: []expectedRegion{},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assertRegions(t, test.Expected, test.Scanner.Scan(image))
		})
	}
}

func TestScan__TruncatedDescriptorIsUnknown(t *testing.T) {
	descriptor := fvtest.FlashDescriptor(t)
	found := (&regions.Scanner{}).Scan(descriptor[:0x8000])
	assertRegions(t, []expectedRegion{{regions.KindUnknown, 0, 0x8000}}, found)
}

func TestScan__Empty(t *testing.T) {
	assert.Empty(t, (&regions.Scanner{}).Scan(nil))
}

func TestKind__String(t *testing.T) {
	assert.Equal(t, "descriptor", regions.KindDescriptor.String())
	assert.Equal(t, "volume", regions.KindVolume.String())
	assert.Equal(t, "unknown", regions.KindUnknown.String())
	assert.Equal(t, "Kind(9)", regions.Kind(9).String())
}
