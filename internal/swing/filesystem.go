package swing

import (
	"io"
	"io/fs"
)

// FileSystem abstracts file access so the workflow can be tested without
// touching the real filesystem.
type FileSystem interface {
	// Stat returns fresh file info for path.
	Stat(path string) (fs.FileInfo, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Remove deletes a file. Removing a missing file is not an error.
	Remove(path string) error

	// TempPath returns a fresh path for an intermediate file whose name ends
	// in suffix. The file itself is not created.
	TempPath(suffix string) (string, error)
}

// bytesPerMB converts file sizes to the megabyte figures used by the planner.
const bytesPerMB = 1024 * 1024

// SizeMB converts a byte count to megabytes.
func SizeMB(size int64) float64 {
	return float64(size) / bytesPerMB
}
