package pouch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrManifestUnavailable reports that the manifest could not be fetched or
// decoded. Callers fall back to convention-derived asset paths; it is never
// fatal to a download.
var ErrManifestUnavailable = errors.New("manifest unavailable")

// Manifest maps content item IDs to their published asset paths and carries
// the global content version. It is immutable for the lifetime of a version.
type Manifest struct {
	Version string
	Assets  map[string]map[string]string // item ID -> role -> relative path
}

// UnmarshalJSON accepts both manifest layouts in the wild: the version as a
// JSON string or number, and per-item entries either flat (role -> path) or
// with the role map nested under "files" next to descriptive metadata.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version json.RawMessage            `json:"version"`
		Assets  map[string]json.RawMessage `json:"assets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	version, err := decodeVersion(raw.Version)
	if err != nil {
		return err
	}
	m.Version = version

	m.Assets = make(map[string]map[string]string, len(raw.Assets))
	for id, entry := range raw.Assets {
		paths, err := decodeAssetEntry(entry)
		if err != nil {
			return fmt.Errorf("decoding manifest entry %q: %w", id, err)
		}
		m.Assets[id] = paths
	}
	return nil
}

func decodeVersion(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("manifest has no version field")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("manifest version is neither string nor number: %s", raw)
}

func decodeAssetEntry(raw json.RawMessage) (map[string]string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	// Generator output nests the role map under "files"; the flat layout is
	// the role map itself.
	if files, ok := fields["files"]; ok {
		var paths map[string]string
		if err := json.Unmarshal(files, &paths); err == nil {
			return paths, nil
		}
	}

	paths := make(map[string]string)
	for role, v := range fields {
		var p string
		if err := json.Unmarshal(v, &p); err != nil {
			continue // non-string metadata field, not a path
		}
		paths[role] = p
	}
	return paths, nil
}

// ManifestLoader fetches and memoizes the manifest for the current session.
// The fetch bypasses intermediate caches. A successful result is held in
// memory until Reset; failures are not memoized, so a later call retries.
type ManifestLoader struct {
	origin Origin
	path   string
	logger Logger

	mu       sync.Mutex
	manifest *Manifest
}

// NewManifestLoader creates a loader reading the manifest at path, relative
// to the origin root.
func NewManifestLoader(origin Origin, path string, logger Logger) *ManifestLoader {
	return &ManifestLoader{origin: origin, path: path, logger: logger}
}

// Load returns the manifest, fetching it on first use. Concurrent callers
// share one fetch. Returns an error wrapping ErrManifestUnavailable when the
// fetch or decode fails.
func (l *ManifestLoader) Load(ctx context.Context) (*Manifest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.manifest != nil {
		return l.manifest, nil
	}

	body, err := l.origin.FetchFresh(ctx, l.path)
	if err != nil {
		l.logger.Warn("manifest fetch failed", "path", l.path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		l.logger.Warn("manifest read failed", "path", l.path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		l.logger.Warn("manifest decode failed", "path", l.path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}

	l.logger.Debug("manifest loaded", "version", m.Version, "items", len(m.Assets))
	l.manifest = &m
	return l.manifest, nil
}

// Reset discards the memoized manifest so the next Load fetches again.
func (l *ManifestLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.manifest = nil
}
