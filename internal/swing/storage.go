package swing

import (
	"context"
	"io"
	"time"
)

// StoredObject references an uploaded object.
type StoredObject struct {
	Key  string
	Size int64
}

// Storage is the object storage collaborator holding uploaded swing videos.
// Uploads are atomic: an object either exists in full or not at all.
type Storage interface {
	// Upload stores size bytes read from r under key.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*StoredObject, error)

	// SignedURL returns a time-limited URL for playback of key.
	// URLs expire; callers must request a fresh one for every view.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Delete removes key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// ValidateSetup verifies that the storage is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
