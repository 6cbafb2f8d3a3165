package swing_test

import (
	"context"
	"errors"
	"testing"

	"myswing/internal/swing"
	"myswing/internal/testutil"
)

func TestCompressor_NoopSkipsEncoder(t *testing.T) {
	fsys := testutil.NewMockFileSystem()
	fsys.AddFileMB("/Movies/small.mp4", 6)
	enc := testutil.NewFakeEncoder(fsys, 0)
	c := swing.NewCompressor(fsys, enc, nil)

	got, err := c.Compress(context.Background(), "/Movies/small.mp4", swing.CompressOptions{})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if got.Method != swing.MethodNoCompression || got.CompressionRatio != 1.0 || got.OutputPath != "/Movies/small.mp4" {
		t.Errorf("Compress() = %+v", got)
	}
	if len(enc.Calls()) != 0 {
		t.Errorf("encoder called %d times for a no-op plan", len(enc.Calls()))
	}
}

func TestCompressor_MeasuresRealOutput(t *testing.T) {
	fsys := testutil.NewMockFileSystem()
	fsys.AddFileMB("/Movies/big.mov", 40)
	enc := testutil.NewFakeEncoder(fsys, 8*testutil.MB)
	c := swing.NewCompressor(fsys, enc, nil)

	got, err := c.Compress(context.Background(), "/Movies/big.mov", swing.CompressOptions{})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if got.Method != swing.MethodCompressed || !got.Success {
		t.Errorf("Compress() = %+v", got)
	}
	if got.CompressedSizeMB != 8 || got.CompressionRatio != 5 {
		t.Errorf("sizes = %v MB ratio %v, want 8 MB ratio 5", got.CompressedSizeMB, got.CompressionRatio)
	}
	if got.OutputPath == "/Movies/big.mov" || !fsys.Exists(got.OutputPath) {
		t.Errorf("OutputPath = %q", got.OutputPath)
	}
	calls := enc.Calls()
	if len(calls) != 1 || calls[0] != got.Level {
		t.Errorf("encoder calls = %+v, level %+v", calls, got.Level)
	}
}

func TestCompressor_Insufficient(t *testing.T) {
	fsys := testutil.NewMockFileSystem()
	fsys.AddFileMB("/Movies/big.mov", 60)
	enc := testutil.NewFakeEncoder(fsys, 12*testutil.MB)
	c := swing.NewCompressor(fsys, enc, nil)

	got, err := c.Compress(context.Background(), "/Movies/big.mov", swing.CompressOptions{TargetMB: 10})
	var se *swing.Error
	if !errors.As(err, &se) || se.Kind != swing.KindCompressionInsufficient {
		t.Fatalf("Compress() error = %v, want compression_insufficient", err)
	}
	if got == nil || got.Success || got.CompressedSizeMB != 12 {
		t.Errorf("Compress() = %+v, want measured failed result", got)
	}
	if !fsys.Exists(got.OutputPath) {
		t.Error("output removed; caller owns it")
	}
}

func TestCompressor_EncoderFailureRemovesOutput(t *testing.T) {
	fsys := testutil.NewMockFileSystem()
	fsys.AddFileMB("/Movies/big.mov", 30)
	enc := testutil.NewFakeEncoder(fsys, 0)
	enc.Err = errors.New("ffmpeg exited with status 1")
	c := swing.NewCompressor(fsys, enc, nil)

	got, err := c.Compress(context.Background(), "/Movies/big.mov", swing.CompressOptions{})
	var se *swing.Error
	if !errors.As(err, &se) || se.Kind != swing.KindCompressionFailed {
		t.Fatalf("Compress() error = %v, want compression_failed", err)
	}
	if got.Method != swing.MethodFailed {
		t.Errorf("Method = %s", got.Method)
	}
	if len(fsys.Removed()) != 1 {
		t.Errorf("Removed() = %v, want the temp output", fsys.Removed())
	}
}

func TestCompressor_ExplicitLevel(t *testing.T) {
	fsys := testutil.NewMockFileSystem()
	fsys.AddFileMB("/Movies/small.mp4", 6)
	enc := testutil.NewFakeEncoder(fsys, 2*testutil.MB)
	c := swing.NewCompressor(fsys, enc, nil)

	level := swing.CompressionLevel{Quality: 0.5, Resolution: swing.Resolution480p}
	got, err := c.Compress(context.Background(), "/Movies/small.mp4", swing.CompressOptions{Level: &level})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if got.Level != level || got.Method != swing.MethodCompressed {
		t.Errorf("Compress() = %+v", got)
	}
}

func TestCompressor_MissingInput(t *testing.T) {
	fsys := testutil.NewMockFileSystem()
	c := swing.NewCompressor(fsys, testutil.NewFakeEncoder(fsys, 0), nil)

	_, err := c.Compress(context.Background(), "/Movies/none.mp4", swing.CompressOptions{})
	var se *swing.Error
	if !errors.As(err, &se) || se.Kind != swing.KindFileNotFound {
		t.Errorf("Compress() error = %v, want file_not_found", err)
	}
}
