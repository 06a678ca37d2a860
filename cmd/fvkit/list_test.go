package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dargueta/fvkit/ffs"
	"github.com/dargueta/fvkit/image"
	fvtest "github.com/dargueta/fvkit/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintImage(t *testing.T) {
	inner := fvtest.Volume(
		t,
		0x1000,
		fvtest.File(t, fvtest.RandomGUID(t), ffs.FileTypeDriver, fvtest.NameSection(t, "Inner")),
	)
	volume := fvtest.Volume(
		t,
		0x4000,
		fvtest.File(t, fvtest.RandomGUID(t), ffs.FileTypePEIM, fvtest.NameSection(t, "Peim")),
		fvtest.CompressedVolumeFile(t, fvtest.RandomGUID(t), inner),
	)
	buf := fvtest.BuildImage(
		t,
		0x8000,
		fvtest.Placement{Offset: 0, Data: volume},
		fvtest.Placement{Offset: 0x6000, Data: fvtest.RandomBytes(t, 0x40)},
	)

	img, err := image.Parse(buf, image.Options{Compression: fvtest.NewRegistry()})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printImage(&out, img))
	text := out.String()

	assert.True(t, strings.HasPrefix(text, "region[0] volume @ 0x0 (16KiB)\n"), text)
	assert.Contains(t, text, "\n  volume "+ffs.FFS2GUID.String()+", 2 files\n")
	assert.Contains(t, text, `"Peim"`)
	assert.Contains(t, text, `"Inner"`)
	// The erased bytes after the volume join the junk at 0x6000.
	assert.Contains(t, text, "region[1] unknown @ 0x4000 (16KiB)\n")
	assert.Contains(t, text, "16KiB of 32KiB identified\n")
	assert.Contains(t, text, "unidentified: 0x4000-0x8000\n")
}

func TestPrintImage__Opaque(t *testing.T) {
	volume := fvtest.Volume(t, 0x1000)
	// Change the format GUID so the files aren't parsed.
	copy(volume[ffs.VolumeGUIDOffset:], fvtest.RandomGUID(t).Encode())

	img, err := image.Parse(volume, image.Options{})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printImage(&out, img))
	assert.Contains(t, out.String(), "  opaque volume ")
	assert.Contains(t, out.String(), "4KiB of 4KiB identified")
}
