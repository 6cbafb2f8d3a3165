package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"myswing/internal/swing"
)

// MB is one megabyte in the units the planner uses.
const MB = 1024 * 1024

// MockFile represents a file in the mock filesystem. Files added by size
// only have no Content and read back as zero bytes.
type MockFile struct {
	Content []byte
	Size    int64
	ModTime time.Time
}

// MockFileSystem is an in-memory swing.FileSystem for testing.
// Safe for concurrent use.
type MockFileSystem struct {
	mu      sync.Mutex
	files   map[string]*MockFile
	removed []string
	temps   int
	opens   int
	// OpenErr, when set, is returned by every Open.
	OpenErr error
}

// NewMockFileSystem creates an empty mock filesystem.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{files: make(map[string]*MockFile)}
}

// AddFile adds a sparse file of size bytes.
func (m *MockFileSystem) AddFile(path string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{Size: size, ModTime: time.Now()}
}

// AddFileMB adds a sparse file of sizeMB megabytes.
func (m *MockFileSystem) AddFileMB(path string, sizeMB float64) {
	m.AddFile(path, int64(sizeMB*MB))
}

// AddFileContent adds a file holding content.
func (m *MockFileSystem) AddFileContent(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{Content: content, Size: int64(len(content)), ModTime: time.Now()}
}

// Exists reports whether path is present.
func (m *MockFileSystem) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

// Removed returns the paths passed to Remove, in order.
func (m *MockFileSystem) Removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

// Opens returns how many times Open succeeded.
func (m *MockFileSystem) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

func (m *MockFileSystem) Stat(path string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return &mockFileInfo{name: filepath.Base(path), size: file.Size, modTime: file.ModTime}, nil
}

func (m *MockFileSystem) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	file, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	m.opens++
	if file.Content != nil {
		return io.NopCloser(bytes.NewReader(file.Content)), nil
	}
	return io.NopCloser(io.LimitReader(zeros{}, file.Size)), nil
}

func (m *MockFileSystem) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, path)
	delete(m.files, path)
	return nil
}

func (m *MockFileSystem) TempPath(suffix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temps++
	return fmt.Sprintf("/tmp/myswing-%d%s", m.temps, suffix), nil
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return 0644 }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return false }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ swing.FileSystem = (*MockFileSystem)(nil)
