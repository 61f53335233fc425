package database

import (
	"fmt"
	"os"
	"path/filepath"

	"pouch-go/internal/config"
	"pouch-go/internal/pouch"
)

// NewStoreFromConfig creates a Store implementation based on the store config type.
func NewStoreFromConfig(cfg config.StoreConfig) (pouch.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, "pouch.db")
		return NewSQLiteStore(dbPath, nil, nil)
	case "memory":
		return NewSQLiteStore(":memory:", nil, nil)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
