package kvstore

import (
	"fmt"
	"os"
	"path/filepath"

	"myswing/internal/config"
	"myswing/internal/swing"
)

// Store is the local persistence the app needs: cache entries and the run log.
type Store interface {
	swing.KVStore
	swing.RunLog
	Close() error
}

// NewStoreFromConfig creates a Store based on the kv store config type.
func NewStoreFromConfig(cfg config.KVStoreConfig, deviceID string, clock swing.Clock) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite kv store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		store, err := NewSQLiteStore(filepath.Join(cfg.DataDir, deviceID+".db"), clock)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown kv store type: %s", cfg.Type)
	}
}
