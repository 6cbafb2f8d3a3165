package credentials

import (
	"fmt"

	"myswing/internal/config"
	"myswing/internal/swing"
)

// NewSessionStoreFromConfig creates a SessionStore based on the configuration type.
func NewSessionStoreFromConfig(cfg config.CredentialsConfig) (swing.SessionStore, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.IdentityPath == "" || cfg.SessionPath == "" {
			return nil, fmt.Errorf("age credentials require identity_path and session_path")
		}
		return NewAgeSessionStore(cfg), nil
	case "none":
		return NoneStore{}, nil
	default:
		return nil, fmt.Errorf("unknown credentials type: %q", cfg.Type)
	}
}
