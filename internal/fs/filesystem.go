package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"myswing/internal/swing"
)

// OSFileSystem is the real filesystem implementation of swing.FileSystem.
type OSFileSystem struct {
	tempDir string
}

// NewOSFileSystem creates a filesystem whose intermediate files live in
// tempDir, or the OS temp directory when empty.
func NewOSFileSystem(tempDir string) *OSFileSystem {
	return &OSFileSystem{tempDir: tempDir}
}

// Stat returns fresh file info for a path.
func (m *OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Open opens a regular file for reading.
func (m *OSFileSystem) Open(path string) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if err := checkRegular(path, info); err != nil {
		return nil, err
	}
	return os.Open(path)
}

func checkRegular(path string, info fs.FileInfo) error {
	mode := info.Mode()
	switch {
	case mode.IsDir():
		return fmt.Errorf("cannot open directory as file: %s", path)
	case mode&os.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", path)
	case mode&os.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", path)
	case mode&os.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", path)
	}
	return nil
}

// Remove deletes a file. A missing file is not an error.
func (m *OSFileSystem) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// TempPath returns a unique path in the temp directory ending in suffix.
func (m *OSFileSystem) TempPath(suffix string) (string, error) {
	dir := m.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating temp directory: %w", err)
	}
	return filepath.Join(dir, "myswing-"+uuid.NewString()+suffix), nil
}

// FindVideos lists files under dir whose extension is a supported video
// container. Hidden entries are skipped.
func (m *OSFileSystem) FindVideos(dir string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && slices.Contains(swing.DefaultExtensions, strings.ToLower(filepath.Ext(p))) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return paths, nil
}

// Compile-time check that OSFileSystem implements swing.FileSystem.
var _ swing.FileSystem = (*OSFileSystem)(nil)
