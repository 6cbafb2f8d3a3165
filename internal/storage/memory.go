package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"myswing/internal/swing"
)

// MemoryStorage is an in-memory implementation of swing.Storage.
// This implementation is safe for concurrent use.
type MemoryStorage struct {
	name    string
	clock   swing.Clock
	objects map[string][]byte
	types   map[string]string
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage(name string, clock swing.Clock) *MemoryStorage {
	if clock == nil {
		clock = swing.RealClock{}
	}
	return &MemoryStorage{
		name:    name,
		clock:   clock,
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Upload stores the object. A short read fails without storing anything.
func (m *MemoryStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*swing.StoredObject, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return &swing.StoredObject{Key: key, Size: size}, nil
}

// SignedURL returns a memory:// URL carrying its expiry.
func (m *MemoryStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object not found: %s", key)
	}
	u := url.URL{
		Scheme:   "memory",
		Host:     m.name,
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {fmt.Sprint(m.clock.Now().Add(expiry).Unix())}}.Encode(),
	}
	return u.String(), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.types, key)
	return nil
}

// ValidateSetup always succeeds for in-memory storage.
func (m *MemoryStorage) ValidateSetup(ctx context.Context) error {
	return nil
}

// Object returns the stored bytes of key.
func (m *MemoryStorage) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// Len returns the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ swing.Storage = (*MemoryStorage)(nil)
