package testutil

import (
	"testing"

	"pouch-go/internal/database"
	"pouch-go/internal/pouch"
)

// NewTestStore creates an in-memory SQLite store with migrations applied.
// The store is automatically closed when the test completes. clock and ids
// may be nil, selecting the real implementations.
func NewTestStore(t *testing.T, clock pouch.Clock, ids pouch.IDGenerator) pouch.Store {
	t.Helper()

	store, err := database.NewSQLiteStore(":memory:", clock, ids)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
