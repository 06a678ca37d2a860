package ffs

import (
	"testing"

	"github.com/dargueta/fvkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParser__SharesRegistry(t *testing.T) {
	first := defaultParser()
	second := defaultParser()

	require.NotNil(t, first.Compression)
	assert.Same(t, first.Compression, second.Compression)
	assert.NotSame(t, first, second, "diagnostics must not leak between calls")
}

func TestCursorDiagnostic(t *testing.T) {
	at := cursor{path: "region[0]", base: 0x1000}.child("file[2]", 0x48)
	diagnostic := at.diagnostic(0x18, fvkit.ErrOverflow)

	assert.Equal(t, "region[0]/file[2]", diagnostic.Path)
	assert.EqualValues(t, 0x1060, diagnostic.Offset)
	assert.ErrorIs(t, diagnostic, fvkit.ErrOverflow)
}

func TestWarn__KeepsLocatedDiagnostic(t *testing.T) {
	parser := NewParser(nil)
	fileAt := cursor{path: "volume"}.child("file[0]", 0x48)
	located := fileAt.child("content", 0x18).child("section[3]", 0x20).diagnostic(0, fvkit.ErrInvalidLength)

	parser.warn(fileAt, 0x18, located)
	parser.warn(fileAt, 0x18, fvkit.ErrOverflow)

	diagnostics := parser.Diagnostics()
	require.Len(t, diagnostics, 2)
	assert.Equal(t, "volume/file[0]/content/section[3]", diagnostics[0].Path)
	assert.EqualValues(t, 0x80, diagnostics[0].Offset)
	assert.Equal(t, "volume/file[0]", diagnostics[1].Path)
	assert.EqualValues(t, 0x60, diagnostics[1].Offset)
}
