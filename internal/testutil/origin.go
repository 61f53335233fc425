package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// FakeOrigin serves canned asset bytes by path and records every fetch.
// Paths listed in Fail return an error; an unknown path is also an error.
// Safe for concurrent use.
type FakeOrigin struct {
	mu      sync.Mutex
	assets  map[string][]byte
	fail    map[string]bool
	fetches map[string]int
	fresh   map[string]int
}

func NewFakeOrigin() *FakeOrigin {
	return &FakeOrigin{
		assets:  make(map[string][]byte),
		fail:    make(map[string]bool),
		fetches: make(map[string]int),
		fresh:   make(map[string]int),
	}
}

// Add registers content for path.
func (o *FakeOrigin) Add(path string, content []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.assets[path] = content
}

// Fail makes every fetch of path return an error.
func (o *FakeOrigin) Fail(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail[path] = true
}

// Unfail clears a failure set by Fail.
func (o *FakeOrigin) Unfail(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.fail, path)
}

// FetchCount returns how many times path was fetched (Fetch and FetchFresh
// combined), including failed attempts.
func (o *FakeOrigin) FetchCount(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fetches[path] + o.fresh[path]
}

// TotalFetches returns the number of fetch attempts across all paths.
func (o *FakeOrigin) TotalFetches() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.fetches {
		n += c
	}
	for _, c := range o.fresh {
		n += c
	}
	return n
}

// FreshCount returns how many times path was fetched via FetchFresh.
func (o *FakeOrigin) FreshCount(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fresh[path]
}

func (o *FakeOrigin) Fetch(_ context.Context, path string) (io.ReadCloser, error) {
	return o.fetch(path, false)
}

func (o *FakeOrigin) FetchFresh(_ context.Context, path string) (io.ReadCloser, error) {
	return o.fetch(path, true)
}

func (o *FakeOrigin) fetch(path string, fresh bool) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if fresh {
		o.fresh[path]++
	} else {
		o.fetches[path]++
	}

	if o.fail[path] {
		return nil, fmt.Errorf("fetch %s: simulated failure", path)
	}
	content, ok := o.assets[path]
	if !ok {
		return nil, fmt.Errorf("fetch %s: not found", path)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}
