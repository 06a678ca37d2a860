package extract

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dargueta/fvkit"
)

// DirEmitter writes artifacts into a directory tree rooted at Root.
type DirEmitter struct {
	Root          string
	FileMode      fs.FileMode
	DirectoryMode fs.FileMode
}

// NewDirEmitter creates an emitter writing under `root` with the default
// permissions.
func NewDirEmitter(root string) *DirEmitter {
	return &DirEmitter{
		Root:          root,
		FileMode:      fvkit.DefaultFileMode,
		DirectoryMode: fvkit.DefaultDirectoryMode,
	}
}

// Emit writes `data` to `artifactPath` relative to the root, creating parent
// directories as needed. Paths that would escape the root are rejected.
func (e *DirEmitter) Emit(artifactPath string, data []byte) error {
	if artifactPath == "" || slices.Contains(strings.Split(artifactPath, "/"), "..") {
		return fvkit.Errorf(fvkit.ErrInvalidArgument, "bad artifact path %q", artifactPath)
	}
	cleaned := path.Clean("/" + artifactPath)[1:]

	fullPath := filepath.Join(e.Root, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(fullPath), e.DirectoryMode); err != nil {
		return err
	}
	return os.WriteFile(fullPath, data, e.FileMode)
}
