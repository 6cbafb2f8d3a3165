package credentials

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"myswing/internal/config"
	"myswing/internal/swing"
)

// AgeSessionStore persists the remembered session encrypted with an X25519
// identity from filippo.io/age. The identity is generated on first save and
// kept next to the session, readable only by the owner.
type AgeSessionStore struct {
	identityPath string
	sessionPath  string
}

var _ swing.SessionStore = (*AgeSessionStore)(nil)

// NewAgeSessionStore creates an AgeSessionStore from configuration.
func NewAgeSessionStore(cfg config.CredentialsConfig) *AgeSessionStore {
	return &AgeSessionStore{
		identityPath: cfg.IdentityPath,
		sessionPath:  cfg.SessionPath,
	}
}

// Load returns the stored session, or nil if none has been saved.
func (s *AgeSessionStore) Load() (*swing.Session, error) {
	ciphertext, err := os.ReadFile(s.sessionPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	identity, err := s.readIdentity()
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, fmt.Errorf("session file exists but identity %s is missing", s.identityPath)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting session: %w", err)
	}
	var session swing.Session
	if err := json.NewDecoder(r).Decode(&session); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &session, nil
}

// Save encrypts and writes the session, replacing any previous one.
func (s *AgeSessionStore) Save(session *swing.Session) error {
	identity, err := s.loadOrCreateIdentity()
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return fmt.Errorf("encrypting session: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	return writeFileAtomic(s.sessionPath, buf.Bytes())
}

// Clear removes the stored session. The identity is kept.
func (s *AgeSessionStore) Clear() error {
	if err := os.Remove(s.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// readIdentity returns nil if the identity file does not exist.
func (s *AgeSessionStore) readIdentity() (*age.X25519Identity, error) {
	data, err := os.ReadFile(s.identityPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	return identity, nil
}

func (s *AgeSessionStore) loadOrCreateIdentity() (*age.X25519Identity, error) {
	identity, err := s.readIdentity()
	if err != nil || identity != nil {
		return identity, err
	}

	identity, err = age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	if err := writeFileAtomic(s.identityPath, []byte(identity.String()+"\n")); err != nil {
		return nil, fmt.Errorf("writing identity: %w", err)
	}
	return identity, nil
}

// writeFileAtomic writes data via a temp file in the same directory and
// renames it into place with mode 0600.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
