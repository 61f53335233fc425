package blobcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pouch-go/internal/pouch"
)

// FileSystemCache is a filesystem-based implementation of the AssetCache
// interface. It stores each entry as a file in a directory structure:
//
//	<root>/
//	  <namespace>/
//	    <aa>/
//	      <digest>     (entry files, named by SHA-256 of the source URL)
//
// where <aa> is the first two hex characters of the digest. Fanning entries
// out over subdirectories keeps directory listings small for large caches.
type FileSystemCache struct {
	root string
}

// NewFileSystemCache creates a new filesystem cache rooted at the given path.
func NewFileSystemCache(root string) (*FileSystemCache, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileSystemCache{root: root}, nil
}

// entryPath returns the file path for a (namespace, url) pair.
func (c *FileSystemCache) entryPath(namespace, url string) string {
	sum := sha256.Sum256([]byte(url))
	digest := hex.EncodeToString(sum[:])
	return filepath.Join(c.root, namespace, digest[:2], digest)
}

// Has reports whether url is present in namespace.
func (c *FileSystemCache) Has(namespace, url string) (bool, error) {
	_, err := os.Stat(c.entryPath(namespace, url))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking cache entry: %w", err)
	}
	return true, nil
}

// Put stores the bytes read from r, overwriting any existing entry.
func (c *FileSystemCache) Put(namespace, url string, r io.Reader) (int64, error) {
	destPath := c.entryPath(namespace, url)
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create entry directory: %w", err)
	}

	// Write to a temp file in the same directory so the final rename is
	// atomic; readers never observe a partially written entry.
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return written, nil
}

// Open returns the stored bytes for (namespace, url).
func (c *FileSystemCache) Open(namespace, url string) (io.ReadCloser, error) {
	f, err := os.Open(c.entryPath(namespace, url))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pouch.ErrNotCached
		}
		return nil, fmt.Errorf("failed to open cache entry: %w", err)
	}
	return f, nil
}

// Delete removes one entry. Deleting a missing entry is not an error.
func (c *FileSystemCache) Delete(namespace, url string) error {
	err := os.Remove(c.entryPath(namespace, url))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Namespaces lists every namespace directory under the cache root.
func (c *FileSystemCache) Namespaces() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache root: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// DeleteNamespace removes every namespace whose name contains match.
// Deletion continues past individual failures; collected errors are
// returned together.
func (c *FileSystemCache) DeleteNamespace(match string) error {
	names, err := c.Namespaces()
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range names {
		if !strings.Contains(name, match) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(c.root, name)); err != nil {
			errs = append(errs, fmt.Errorf("deleting namespace %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Compile-time check that FileSystemCache implements pouch.AssetCache
var _ pouch.AssetCache = (*FileSystemCache)(nil)
