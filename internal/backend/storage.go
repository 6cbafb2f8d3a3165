package backend

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"myswing/internal/swing"
)

// ObjectStorage stores videos in a bucket of the backend's object storage.
type ObjectStorage struct {
	client *Client
	bucket string
}

// NewObjectStorage creates an ObjectStorage over client for bucket.
func NewObjectStorage(client *Client, bucket string) *ObjectStorage {
	return &ObjectStorage{client: client, bucket: bucket}
}

func (s *ObjectStorage) objectPath(key string) string {
	return "/storage/v1/object/" + s.bucket + "/" + strings.TrimLeft(key, "/")
}

// Upload implements swing.Storage. Objects are never overwritten.
func (s *ObjectStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*swing.StoredObject, error) {
	resp, err := s.client.request(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetContentLength(true).
		SetBody(r).
		Post(s.objectPath(key))
	if err != nil {
		return nil, fmt.Errorf("storage upload request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("storage upload", resp)
	}
	s.client.logger.Debug("object uploaded", "bucket", s.bucket, "key", key, "size", size)
	return &swing.StoredObject{Key: key, Size: size}, nil
}

// SignedURL implements swing.Storage.
func (s *ObjectStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	resp, err := s.client.request(ctx).
		SetBody(map[string]int{"expiresIn": int(expiry / time.Second)}).
		SetResult(&out).
		Post("/storage/v1/object/sign/" + s.bucket + "/" + strings.TrimLeft(key, "/"))
	if err != nil {
		return "", fmt.Errorf("sign url request failed: %w", err)
	}
	if resp.IsError() {
		return "", apiError("sign url", resp)
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("sign url: empty response")
	}
	if strings.HasPrefix(out.SignedURL, "http") {
		return out.SignedURL, nil
	}
	return s.client.BaseURL() + "/storage/v1" + out.SignedURL, nil
}

// Delete implements swing.Storage.
func (s *ObjectStorage) Delete(ctx context.Context, key string) error {
	resp, err := s.client.request(ctx).
		SetBody(map[string][]string{"prefixes": {key}}).
		Delete("/storage/v1/object/" + s.bucket)
	if err != nil {
		return fmt.Errorf("storage delete request failed: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != 404 {
		return apiError("storage delete", resp)
	}
	return nil
}

// ValidateSetup checks that the bucket exists and is visible to the caller.
func (s *ObjectStorage) ValidateSetup(ctx context.Context) error {
	resp, err := s.client.request(ctx).Get("/storage/v1/bucket/" + s.bucket)
	if err != nil {
		return fmt.Errorf("bucket request failed: %w", err)
	}
	if resp.IsError() {
		return apiError("bucket "+s.bucket, resp)
	}
	return nil
}

var _ swing.Storage = (*ObjectStorage)(nil)
