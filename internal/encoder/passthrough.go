package encoder

import (
	"context"
	"fmt"
	"io"
	"os"

	"myswing/internal/swing"
)

// PassthroughEncoder copies the input unchanged. Used where no ffmpeg is
// installed; the compressor then reports any oversize result as
// insufficient.
type PassthroughEncoder struct{}

func NewPassthroughEncoder() *PassthroughEncoder { return &PassthroughEncoder{} }

func (*PassthroughEncoder) Name() string { return "passthrough" }

func (*PassthroughEncoder) Encode(ctx context.Context, inPath, outPath string, level swing.CompressionLevel) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("failed to read source video: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(outPath)
		return fmt.Errorf("copying video: %w", err)
	}
	return out.Close()
}

var _ swing.Encoder = (*PassthroughEncoder)(nil)
