package create

import (
	"path/filepath"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/ffs"
	"github.com/spf13/viper"
)

// DefaultCompressedFileGUID names the file that wraps the compressed inner
// volume. It's the GUID EDK2 platforms conventionally give FVMAIN_COMPACT.
const DefaultCompressedFileGUID = "9e21fd93-9c72-4c15-8c4b-e77f1db2d792"

// SectionSpec is one section of a file, read from a file on disk.
type SectionSpec struct {
	// Type is a section type name such as "PE32", or a numeric code.
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

// FileSpec describes one firmware file.
type FileSpec struct {
	GUID string `mapstructure:"guid"`
	// Type is a file type name such as "DRIVER", or a numeric code.
	Type string `mapstructure:"type"`
	// Name and Version add USER_INTERFACE and VERSION sections after the ones
	// in Sections.
	Name        string        `mapstructure:"name"`
	Version     string        `mapstructure:"version"`
	BuildNumber uint16        `mapstructure:"build_number"`
	Sections    []SectionSpec `mapstructure:"sections"`
	// Raw is a file whose contents are used verbatim as the file's content. It
	// can't be combined with Sections, Name, or Version.
	Raw string `mapstructure:"raw"`
}

// Manifest lists everything that goes into a volume.
type Manifest struct {
	VolumeGUID         string     `mapstructure:"volume_guid"`
	CompressedFileGUID string     `mapstructure:"compressed_file_guid"`
	Files              []FileSpec `mapstructure:"files"`

	// BaseDir is where relative paths in the manifest are resolved from.
	BaseDir string `mapstructure:"-"`
}

// LoadManifest reads a manifest in any format viper understands (YAML, JSON,
// TOML, ...), chosen by the file's extension. Relative paths in it are
// resolved against the manifest's own directory.
func LoadManifest(manifestPath string) (*Manifest, error) {
	config := viper.New()
	config.SetConfigFile(manifestPath)
	config.SetDefault("volume_guid", ffs.FFS2GUID.String())
	config.SetDefault("compressed_file_guid", DefaultCompressedFileGUID)

	if err := config.ReadInConfig(); err != nil {
		return nil, fvkit.ErrInvalidArgument.Wrap(err)
	}

	manifest := &Manifest{}
	if err := config.Unmarshal(manifest); err != nil {
		return nil, fvkit.ErrInvalidArgument.Wrap(err)
	}
	manifest.BaseDir = filepath.Dir(manifestPath)
	return manifest, nil
}

func (m *Manifest) resolve(relativePath string) string {
	if filepath.IsAbs(relativePath) || m.BaseDir == "" {
		return relativePath
	}
	return filepath.Join(m.BaseDir, relativePath)
}
