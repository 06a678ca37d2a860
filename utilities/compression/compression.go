package compression

import (
	"os/exec"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/guid"
	"github.com/sirupsen/logrus"
)

// Compressor is a single compression scheme.
type Compressor interface {
	// Name is a short human-readable name for the algorithm, e.g. "LZMA".
	Name() string

	// Decode and Encode obey "x == Decode(Encode(x))".
	Decode(encodedData []byte) ([]byte, error)
	Encode(decodedData []byte) ([]byte, error)
}

// LZMAGUID identifies EDK2's LZMA custom decompressor (LZMA_CUSTOM_DECOMPRESS_GUID).
var LZMAGUID = guid.MustParse("ee4e5898-3914-4259-9d6e-dc7bd79403cf")

// DefaultXZPath is the command used by [NewRegistry] when no path is given.
const DefaultXZPath = "xz"

// Registry maps algorithm GUIDs to codecs. The zero value has no codecs; use
// [NewRegistry] to get one with LZMA registered.
type Registry struct {
	codecs map[guid.GUID]Compressor
}

// NewRegistry creates a registry that knows about LZMA. Encoding uses the xz
// executable at `xzPath` if it can be found, otherwise the pure-Go encoder.
// Pass an empty string to get [DefaultXZPath].
func NewRegistry(xzPath string) *Registry {
	if xzPath == "" {
		xzPath = DefaultXZPath
	}

	var lzmaCodec Compressor
	if resolved, err := exec.LookPath(xzPath); err == nil {
		lzmaCodec = &SystemLZMA{XZPath: resolved}
	} else {
		logrus.WithField("xz", xzPath).Debug("xz not found, using built-in LZMA encoder")
		lzmaCodec = &LZMA{}
	}

	registry := &Registry{}
	registry.Register(LZMAGUID, lzmaCodec)
	return registry
}

// Register adds or replaces the codec for an algorithm GUID.
func (r *Registry) Register(algorithm guid.GUID, codec Compressor) {
	if r.codecs == nil {
		r.codecs = make(map[guid.GUID]Compressor)
	}
	r.codecs[algorithm] = codec
}

// Lookup returns the codec for an algorithm GUID, or an error wrapping
// [fvkit.ErrUnsupportedCompression] if none is registered.
func (r *Registry) Lookup(algorithm guid.GUID) (Compressor, error) {
	if r != nil {
		if codec, ok := r.codecs[algorithm]; ok {
			return codec, nil
		}
	}
	return nil, fvkit.Errorf(fvkit.ErrUnsupportedCompression, "no codec for %s", algorithm)
}

// Compress encodes `data` with the algorithm identified by `algorithm`.
func (r *Registry) Compress(data []byte, algorithm guid.GUID) ([]byte, error) {
	codec, err := r.Lookup(algorithm)
	if err != nil {
		return nil, err
	}
	return codec.Encode(data)
}

// Decompress decodes `data` with the algorithm identified by `algorithm`.
func (r *Registry) Decompress(data []byte, algorithm guid.GUID) ([]byte, error) {
	codec, err := r.Lookup(algorithm)
	if err != nil {
		return nil, err
	}
	return codec.Decode(data)
}
