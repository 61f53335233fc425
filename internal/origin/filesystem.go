package origin

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"pouch-go/internal/pouch"
)

// FileSystemOrigin serves assets from a local directory tree. Useful for
// tests and for deployments that ship the content set on disk.
type FileSystemOrigin struct {
	root string
}

// NewFileSystemOrigin creates an origin rooted at the given directory.
func NewFileSystemOrigin(root string) (*FileSystemOrigin, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("origin root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("origin root is not a directory: %s", root)
	}
	return &FileSystemOrigin{root: root}, nil
}

// Fetch opens the file at path relative to the origin root.
func (o *FileSystemOrigin) Fetch(ctx context.Context, p string) (io.ReadCloser, error) {
	// Clean to a rooted form first so ".." segments cannot escape the root.
	clean := path.Clean("/" + p)
	f, err := os.Open(filepath.Join(o.root, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", p, err)
	}
	return f, nil
}

// FetchFresh behaves like Fetch. Local files have no cache in front of them.
func (o *FileSystemOrigin) FetchFresh(ctx context.Context, p string) (io.ReadCloser, error) {
	return o.Fetch(ctx, p)
}

// Compile-time check that FileSystemOrigin implements pouch.Origin
var _ pouch.Origin = (*FileSystemOrigin)(nil)
