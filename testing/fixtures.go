package fvtest

import (
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/dargueta/fvkit/ffs"
	"github.com/dargueta/fvkit/guid"
	"github.com/dargueta/fvkit/utilities/compression"
	"github.com/stretchr/testify/require"
)

// FlashDescriptorSignature and FlashDescriptorSize mirror the values the region
// scanner looks for.
const (
	FlashDescriptorSignature = 0x0ff0a55a
	FlashDescriptorSize      = 0x10000
)

// RandomBytes returns `size` random bytes. It is guaranteed to either return a
// valid slice or fail the test and abort.
func RandomBytes(t *testing.T, size int) []byte {
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoErrorf(t, err, "failed to generate %d random bytes", size)
	return data
}

// RandomGUID returns a random GUID that isn't all ones, so it's never taken for
// a padding file.
func RandomGUID(t *testing.T) guid.GUID {
	for {
		var g guid.GUID
		copy(g[:], RandomBytes(t, guid.Size))
		if g != guid.Ones && g != guid.Zero {
			return g
		}
	}
}

// NewRegistry returns a compression registry that only uses the pure-Go LZMA
// codec, so tests behave the same whether or not xz is installed.
func NewRegistry() *compression.Registry {
	registry := &compression.Registry{}
	registry.Register(compression.LZMAGUID, &compression.LZMA{})
	return registry
}

// Section builds one section or fails the test.
func Section(t *testing.T, sectionType ffs.SectionType, payload []byte) []byte {
	section, err := ffs.BuildSection(sectionType, payload)
	require.NoError(t, err)
	return section
}

// NameSection builds a USER_INTERFACE section or fails the test.
func NameSection(t *testing.T, name string) []byte {
	section, err := ffs.BuildUserInterfaceSection(name)
	require.NoError(t, err)
	return section
}

// File builds a firmware file whose content is `sections` joined together, or
// fails the test.
func File(t *testing.T, fileGUID guid.GUID, fileType ffs.FileType, sections ...[]byte) []byte {
	return RawFile(t, fileGUID, fileType, ffs.ConcatSections(sections...))
}

// RawFile builds a firmware file with `content` stored verbatim, or fails the
// test.
func RawFile(t *testing.T, fileGUID guid.GUID, fileType ffs.FileType, content []byte) []byte {
	file, err := ffs.BuildFile(fileGUID, fileType, content)
	require.NoError(t, err)
	return file
}

// Volume builds an FFS2 volume of `size` bytes or fails the test.
func Volume(t *testing.T, size uint64, files ...[]byte) []byte {
	volume, err := ffs.BuildVolume(ffs.FFS2GUID, size, files)
	require.NoError(t, err)
	return volume
}

// CompressedVolumeFile builds a FIRMWARE_VOLUME_IMAGE file holding `volume`
// compressed with the pure-Go LZMA codec.
func CompressedVolumeFile(t *testing.T, fileGUID guid.GUID, volume []byte) []byte {
	section, err := ffs.BuildCompressedVolumeSection(NewRegistry(), compression.LZMAGUID, volume)
	require.NoError(t, err)
	return File(t, fileGUID, ffs.FileTypeFirmwareVolumeImage, section)
}

// FlashDescriptor returns a flash descriptor region: the signature at +0x10 and
// random bytes everywhere else.
func FlashDescriptor(t *testing.T) []byte {
	descriptor := RandomBytes(t, FlashDescriptorSize)
	binary.LittleEndian.PutUint32(descriptor[0x10:], FlashDescriptorSignature)
	return descriptor
}
