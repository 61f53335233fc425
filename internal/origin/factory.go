package origin

import (
	"context"
	"fmt"
	"time"

	"pouch-go/internal/config"
	"pouch-go/internal/pouch"
)

// NewOriginFromConfig creates an Origin implementation based on the origin config type.
func NewOriginFromConfig(ctx context.Context, cfg config.OriginConfig) (pouch.Origin, error) {
	switch cfg.Type {
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http origin requires url to be set")
		}
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		return NewHTTPOrigin(cfg.URL, timeout, cfg.RequestsPerSecond)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 origin requires s3_bucket to be set")
		}
		return NewS3Origin(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem origin requires root to be set")
		}
		return NewFileSystemOrigin(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown origin type: %s", cfg.Type)
	}
}
