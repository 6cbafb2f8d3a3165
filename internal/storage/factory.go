package storage

import (
	"context"
	"fmt"
	"os"

	"myswing/internal/backend"
	"myswing/internal/config"
	"myswing/internal/swing"
)

// NewStorageFromConfig creates a swing.Storage based on the storage config
// type. client is required for type "backend".
func NewStorageFromConfig(ctx context.Context, cfg config.StorageConfig, client *backend.Client, clock swing.Clock) (swing.Storage, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStorage("memory", clock), nil
	case "backend":
		if client == nil {
			return nil, fmt.Errorf("backend storage requires a backend client")
		}
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("backend storage requires bucket to be set")
		}
		return backend.NewObjectStorage(client, cfg.Bucket), nil
	case "s3":
		s, err := NewS3Storage(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     os.Getenv("MYSWING_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("MYSWING_S3_SECRET_ACCESS_KEY"),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem storage requires fs_root to be set")
		}
		s, err := NewFileSystemStorage(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
