package pouch

import (
	"errors"
	"io"
)

// ErrNotCached is returned by AssetCache.Open for entries that are absent.
var ErrNotCached = errors.New("asset not in cache")

// AssetCache stores fetched payload bytes keyed by namespace and source URL.
// It is distinct from the Store: the cache holds bytes, the Store holds
// bookkeeping. Implementations must be safe for concurrent use.
type AssetCache interface {
	// Has reports whether url is present in namespace, without fetching.
	Has(namespace, url string) (bool, error)

	// Put stores the bytes read from r under (namespace, url), silently
	// overwriting an existing entry. Returns the number of bytes stored.
	Put(namespace, url string, r io.Reader) (int64, error)

	// Open returns the stored bytes for (namespace, url), or ErrNotCached.
	Open(namespace, url string) (io.ReadCloser, error)

	// Delete removes one entry. Deleting a missing entry is not an error.
	Delete(namespace, url string) error

	// Namespaces lists every namespace currently holding entries.
	Namespaces() ([]string, error)

	// DeleteNamespace removes every namespace whose name contains match.
	// A failure deleting one namespace must not stop deletion of the rest;
	// collected errors are returned together.
	DeleteNamespace(match string) error
}
