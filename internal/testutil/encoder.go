package testutil

import (
	"context"
	"sync"

	"myswing/internal/swing"
)

// FakeEncoder writes an output of OutputSize bytes into FS instead of
// encoding anything.
type FakeEncoder struct {
	FS         *MockFileSystem
	OutputSize int64
	Err        error

	mu     sync.Mutex
	levels []swing.CompressionLevel
}

func NewFakeEncoder(fsys *MockFileSystem, outputSize int64) *FakeEncoder {
	return &FakeEncoder{FS: fsys, OutputSize: outputSize}
}

func (e *FakeEncoder) Name() string { return "fake" }

func (e *FakeEncoder) Encode(ctx context.Context, inPath, outPath string, level swing.CompressionLevel) error {
	e.mu.Lock()
	e.levels = append(e.levels, level)
	e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.FS.AddFile(outPath, e.OutputSize)
	return nil
}

// Calls returns the levels Encode was called with.
func (e *FakeEncoder) Calls() []swing.CompressionLevel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]swing.CompressionLevel(nil), e.levels...)
}

var _ swing.Encoder = (*FakeEncoder)(nil)
