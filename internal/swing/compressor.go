package swing

import (
	"context"
	"fmt"
	"path/filepath"
)

// CompressionMethod records what the compressor actually did.
type CompressionMethod string

const (
	MethodNoCompression CompressionMethod = "no_compression"
	MethodCompressed    CompressionMethod = "compressed"
	MethodFailed        CompressionMethod = "failed"
)

// CompressionResult is the observed outcome of a compression attempt.
// CompressionRatio is original/compressed, so 1.0 means unchanged.
type CompressionResult struct {
	Success          bool              `json:"success"`
	Method           CompressionMethod `json:"method"`
	OriginalSizeMB   float64           `json:"original_size_mb"`
	CompressedSizeMB float64           `json:"compressed_size_mb"`
	CompressionRatio float64           `json:"compression_ratio"`
	OutputPath       string            `json:"output_path"`
	Level            CompressionLevel  `json:"level"`
}

// Encoder re-encodes a video according to a CompressionLevel.
type Encoder interface {
	// Encode reads inPath and writes the compressed video to outPath.
	Encode(ctx context.Context, inPath, outPath string, level CompressionLevel) error

	// Name identifies the encoder in logs.
	Name() string
}

// CompressOptions tunes a single Compress call.
// A zero TargetMB uses DefaultTargetSizeMB; a non-nil Level skips planning.
type CompressOptions struct {
	TargetMB float64
	Level    *CompressionLevel
}

// Compressor applies compression plans through an Encoder and measures the
// real result.
type Compressor struct {
	fs      FileSystem
	encoder Encoder
	logger  Logger
}

// NewCompressor creates a Compressor.
func NewCompressor(fsys FileSystem, encoder Encoder, logger Logger) *Compressor {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Compressor{fs: fsys, encoder: encoder, logger: logger}
}

// Compress plans and, when needed, performs compression of path.
// A no-op plan returns immediately without touching the encoder. An output
// that still exceeds the target is reported as KindCompressionInsufficient
// together with the measured result; the output file is left for the caller
// to inspect or remove.
func (c *Compressor) Compress(ctx context.Context, path string, opts CompressOptions) (*CompressionResult, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		return nil, Classify(fmt.Errorf("reading video metadata: %w", err))
	}
	meta := VideoMetadata{SizeMB: SizeMB(info.Size()), Source: ClassifySource(path), URI: path}
	target := EffectiveTargetMB(opts.TargetMB)

	level := PlanCompression(meta, target)
	if opts.Level != nil {
		level = *opts.Level
	}

	if level.IsNoop() {
		c.logger.Debug("compression skipped", "path", path, "size_mb", meta.SizeMB)
		return &CompressionResult{
			Success:          true,
			Method:           MethodNoCompression,
			OriginalSizeMB:   meta.SizeMB,
			CompressedSizeMB: meta.SizeMB,
			CompressionRatio: 1.0,
			OutputPath:       path,
			Level:            level,
		}, nil
	}

	outPath, err := c.fs.TempPath(filepath.Ext(path))
	if err != nil {
		return nil, &Error{Kind: KindProcessingFailed, Err: fmt.Errorf("allocating output path: %w", err)}
	}

	c.logger.Info("compressing video",
		"path", path,
		"encoder", c.encoder.Name(),
		"size_mb", meta.SizeMB,
		"quality", level.Quality,
		"resolution", string(level.Resolution),
		"aggressive", level.Aggressive,
	)

	if err := c.encoder.Encode(ctx, path, outPath, level); err != nil {
		c.fs.Remove(outPath)
		e := Classify(fmt.Errorf("compression failed: %w", err))
		return &CompressionResult{Method: MethodFailed, OriginalSizeMB: meta.SizeMB, Level: level}, e
	}

	outInfo, err := c.fs.Stat(outPath)
	if err != nil {
		c.fs.Remove(outPath)
		return nil, &Error{Kind: KindCompressionFailed, Err: fmt.Errorf("measuring compressed output: %w", err)}
	}

	compressedMB := SizeMB(outInfo.Size())
	result := &CompressionResult{
		Success:          true,
		Method:           MethodCompressed,
		OriginalSizeMB:   meta.SizeMB,
		CompressedSizeMB: compressedMB,
		CompressionRatio: ratio(meta.SizeMB, compressedMB),
		OutputPath:       outPath,
		Level:            level,
	}

	if compressedMB > target {
		result.Success = false
		result.Method = MethodFailed
		c.logger.Warn("compression insufficient", "path", path, "compressed_mb", compressedMB, "target_mb", target)
		return result, &Error{
			Kind: KindCompressionInsufficient,
			Err:  fmt.Errorf("compressed video is %.1fMB, target %.1fMB", compressedMB, target),
		}
	}

	c.logger.Info("video compressed", "path", path, "compressed_mb", compressedMB, "ratio", result.CompressionRatio)
	return result, nil
}

func ratio(originalMB, compressedMB float64) float64 {
	if compressedMB <= 0 {
		return 0
	}
	return originalMB / compressedMB
}
