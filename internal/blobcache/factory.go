package blobcache

import (
	"fmt"

	"pouch-go/internal/config"
	"pouch-go/internal/pouch"
)

// NewCacheFromConfig creates an AssetCache implementation based on the cache config type.
func NewCacheFromConfig(cfg config.CacheConfig) (pouch.AssetCache, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryCache(), nil
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem cache requires dir to be set")
		}
		return NewFileSystemCache(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
