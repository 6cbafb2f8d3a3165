package credentials

import "myswing/internal/swing"

// NoneStore never persists a session, so every run starts signed out.
type NoneStore struct{}

var _ swing.SessionStore = NoneStore{}

func (NoneStore) Load() (*swing.Session, error) { return nil, nil }
func (NoneStore) Save(*swing.Session) error     { return nil }
func (NoneStore) Clear() error                  { return nil }
