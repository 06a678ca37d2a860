// Package create assembles firmware volumes from a manifest of files and
// sections.
package create

import (
	"os"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/ffs"
	"github.com/dargueta/fvkit/guid"
	"github.com/dargueta/fvkit/tables"
	"github.com/dargueta/fvkit/utilities/compression"
	"github.com/sirupsen/logrus"
)

// Options controls the shape of the built volume.
type Options struct {
	// Size is the exact size of the output volume. Required.
	Size uint64
	// CompressedSize, if non-zero, puts the files in an inner volume of this
	// size, which is compressed and stored as the only file of the outer volume.
	CompressedSize uint64
	// Compression provides the LZMA encoder. If nil, a registry from
	// [compression.NewRegistry] is used.
	Compression *compression.Registry
	Log         *logrus.Entry
}

// Build creates the volume described by `manifest`.
func Build(manifest *Manifest, options Options) ([]byte, error) {
	log := options.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if options.Size == 0 {
		return nil, fvkit.Errorf(fvkit.ErrInvalidArgument, "volume size is required")
	}

	volumeGUID, err := parseGUID(manifest.VolumeGUID, ffs.FFS2GUID)
	if err != nil {
		return nil, err
	}

	files := make([][]byte, 0, len(manifest.Files))
	for i := range manifest.Files {
		file, err := manifest.buildFile(&manifest.Files[i])
		if err != nil {
			return nil, err
		}
		log.Debugf("file %d: %s, %d bytes", i, manifest.Files[i].GUID, len(file))
		files = append(files, file)
	}

	if options.CompressedSize > 0 {
		wrapper, err := buildCompressedWrapper(manifest, volumeGUID, files, options)
		if err != nil {
			return nil, err
		}
		files = [][]byte{wrapper}
	}

	volume, err := ffs.BuildVolume(volumeGUID, options.Size, files)
	if err != nil {
		return nil, err
	}
	log.Infof("built %#x-byte volume %s with %d files", len(volume), volumeGUID, len(files))
	return volume, nil
}

// buildCompressedWrapper packs `files` into an inner volume, compresses it, and
// wraps it in a FIRMWARE_VOLUME_IMAGE file.
func buildCompressedWrapper(
	manifest *Manifest, volumeGUID guid.GUID, files [][]byte, options Options,
) ([]byte, error) {
	registry := options.Compression
	if registry == nil {
		registry = compression.NewRegistry("")
	}

	inner, err := ffs.BuildVolume(volumeGUID, options.CompressedSize, files)
	if err != nil {
		return nil, err
	}

	section, err := ffs.BuildCompressedVolumeSection(registry, compression.LZMAGUID, inner)
	if err != nil {
		return nil, err
	}

	wrapperGUID, err := parseGUID(manifest.CompressedFileGUID, guid.MustParse(DefaultCompressedFileGUID))
	if err != nil {
		return nil, err
	}
	return ffs.BuildFile(wrapperGUID, ffs.FileTypeFirmwareVolumeImage, section)
}

func parseGUID(text string, fallback guid.GUID) (guid.GUID, error) {
	if text == "" {
		return fallback, nil
	}
	return guid.Parse(text)
}

func (m *Manifest) buildFile(spec *FileSpec) ([]byte, error) {
	fileGUID, err := guid.Parse(spec.GUID)
	if err != nil {
		return nil, err
	}
	typeCode, err := tables.FileTypeCode(spec.Type)
	if err != nil {
		return nil, err
	}

	var content []byte
	if spec.Raw != "" {
		if len(spec.Sections) > 0 || spec.Name != "" || spec.Version != "" {
			return nil, fvkit.Errorf(
				fvkit.ErrInvalidArgument,
				"file %s: raw content can't be combined with sections",
				spec.GUID,
			)
		}
		content, err = os.ReadFile(m.resolve(spec.Raw))
	} else {
		content, err = m.buildSections(spec)
	}
	if err != nil {
		return nil, err
	}
	return ffs.BuildFile(fileGUID, ffs.FileType(typeCode), content)
}

func (m *Manifest) buildSections(spec *FileSpec) ([]byte, error) {
	var sections [][]byte

	for _, sectionSpec := range spec.Sections {
		typeCode, err := tables.SectionTypeCode(sectionSpec.Type)
		if err != nil {
			return nil, err
		}
		payload, err := os.ReadFile(m.resolve(sectionSpec.Path))
		if err != nil {
			return nil, err
		}
		section, err := ffs.BuildSection(ffs.SectionType(typeCode), payload)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}

	if spec.Name != "" {
		section, err := ffs.BuildUserInterfaceSection(spec.Name)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	if spec.Version != "" {
		section, err := ffs.BuildVersionSection(spec.BuildNumber, spec.Version)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	return ffs.ConcatSections(sections...), nil
}
