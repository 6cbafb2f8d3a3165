package encoder

import (
	"fmt"

	"myswing/internal/config"
	"myswing/internal/swing"
)

// NewEncoderFromConfig creates a swing.Encoder based on the encoder type.
func NewEncoderFromConfig(cfg config.EncoderConfig, runner Runner) (swing.Encoder, error) {
	switch cfg.Type {
	case "ffmpeg":
		return NewFFmpegEncoder(cfg.FFmpegPath, runner), nil
	case "passthrough":
		return NewPassthroughEncoder(), nil
	default:
		return nil, fmt.Errorf("unknown encoder type: %s", cfg.Type)
	}
}

// NewProberFromConfig returns an ffprobe-backed prober, or nil when the
// encoder does not use ffmpeg or ffprobe is not installed.
func NewProberFromConfig(cfg config.EncoderConfig, runner Runner) swing.StreamProber {
	if cfg.Type != "ffmpeg" {
		return nil
	}
	path := cfg.FFprobePath
	if path == "" {
		path = "ffprobe"
	}
	if runner == nil && !Available(path) {
		return nil
	}
	return NewProber(path, runner)
}
