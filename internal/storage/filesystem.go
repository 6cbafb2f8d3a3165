package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"myswing/internal/swing"
)

// FileSystemStorage keeps uploaded videos as files under root, one file per
// key:
//
//	<root>/
//	  objects/
//	    <key>
type FileSystemStorage struct {
	root       string
	objectsDir string
}

// NewFileSystemStorage creates a FileSystemStorage rooted at root.
func NewFileSystemStorage(root string) (*FileSystemStorage, error) {
	objectsDir := filepath.Join(root, "objects")
	if err := os.MkdirAll(objectsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create objects directory: %w", err)
	}
	return &FileSystemStorage{root: root, objectsDir: objectsDir}, nil
}

// objectPath maps key below objectsDir, refusing keys that escape it.
func (s *FileSystemStorage) objectPath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.objectsDir, clean), nil
}

// Upload writes the object atomically (temp file + rename).
func (s *FileSystemStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*swing.StoredObject, error) {
	dest, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := writeFile(dest, r, size); err != nil {
		return nil, err
	}
	return &swing.StoredObject{Key: key, Size: size}, nil
}

// SignedURL returns a file:// URL. Local files do not expire.
func (s *FileSystemStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	path, err := s.objectPath(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("object not found: %s", key)
		}
		return "", fmt.Errorf("stat object: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: path}).String(), nil
}

func (s *FileSystemStorage) Delete(ctx context.Context, key string) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the storage directories are accessible.
func (s *FileSystemStorage) ValidateSetup(ctx context.Context) error {
	for _, dir := range []string{s.root, s.objectsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("storage directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("storage path is not a directory: %s", dir)
		}
	}
	return nil
}

func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ swing.Storage = (*FileSystemStorage)(nil)
