package pouch

import (
	"context"
	"io"
)

// Origin fetches asset bytes from the published content location. Paths are
// relative to the origin root (e.g. "images/toy_mode/cow.webp"); the origin
// is responsible for resolving them against its base URL, bucket or root
// directory.
type Origin interface {
	// Fetch retrieves the asset at path. The caller must close the reader.
	Fetch(ctx context.Context, path string) (io.ReadCloser, error)

	// FetchFresh retrieves path while bypassing any intermediate HTTP
	// caches. Used for the manifest, whose embedded version field is the
	// staleness authority and must never be served stale itself.
	FetchFresh(ctx context.Context, path string) (io.ReadCloser, error)
}
