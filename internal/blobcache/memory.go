package blobcache

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"pouch-go/internal/pouch"
)

// MemoryCache is an in-memory implementation of the AssetCache interface.
// It stores all entries in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryCache struct {
	entries map[string]map[string][]byte // namespace -> url -> bytes
	mu      sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]map[string][]byte),
	}
}

// Has reports whether url is present in namespace.
func (m *MemoryCache) Has(namespace, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[namespace][url]
	return ok, nil
}

// Put stores the bytes read from r, overwriting any existing entry.
func (m *MemoryCache) Put(namespace, url string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.entries[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.entries[namespace] = ns
	}
	ns[url] = data
	return int64(len(data)), nil
}

// Open returns the stored bytes for (namespace, url).
func (m *MemoryCache) Open(namespace, url string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.entries[namespace][url]
	if !ok {
		return nil, pouch.ErrNotCached
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes one entry. Deleting a missing entry is not an error.
func (m *MemoryCache) Delete(namespace, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries[namespace], url)
	return nil
}

// Namespaces lists every namespace currently holding entries.
func (m *MemoryCache) Namespaces() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.entries {
		names = append(names, name)
	}
	return names, nil
}

// DeleteNamespace removes every namespace whose name contains match.
func (m *MemoryCache) DeleteNamespace(match string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range m.entries {
		if strings.Contains(name, match) {
			delete(m.entries, name)
		}
	}
	return nil
}

// Compile-time check that MemoryCache implements pouch.AssetCache
var _ pouch.AssetCache = (*MemoryCache)(nil)
