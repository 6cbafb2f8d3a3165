package encoder

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"myswing/internal/swing"
)

const (
	baseCRF       = 23
	crfSpan       = 12
	aggressiveCRF = 3
	maxCRF        = 40
	outputTailLen = 400
)

// FFmpegEncoder re-encodes videos to H.264/AAC with ffmpeg.
type FFmpegEncoder struct {
	path   string
	runner Runner
}

// NewFFmpegEncoder creates an FFmpegEncoder invoking the binary at path.
func NewFFmpegEncoder(path string, runner Runner) *FFmpegEncoder {
	if path == "" {
		path = "ffmpeg"
	}
	if runner == nil {
		runner = NewCommandRunner()
	}
	return &FFmpegEncoder{path: path, runner: runner}
}

func (e *FFmpegEncoder) Name() string { return "ffmpeg" }

// CRF maps a quality factor in (0, 1] to an x264 constant rate factor.
// Lower quality gives a higher CRF and a smaller file.
func CRF(level swing.CompressionLevel) int {
	q := math.Min(math.Max(level.Quality, 0), 1)
	crf := baseCRF + int(math.Round((1-q)*crfSpan))
	if level.Aggressive {
		crf += aggressiveCRF
	}
	return min(crf, maxCRF)
}

// Args builds the ffmpeg argument list for one encode.
func Args(inPath, outPath string, level swing.CompressionLevel) []string {
	preset := "medium"
	audio := "128k"
	if level.Aggressive {
		preset = "veryfast"
		audio = "96k"
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", inPath,
	}
	if h := level.Resolution.Height(); h > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", h))
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(CRF(level)),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", audio,
		"-movflags", "+faststart",
		outPath,
	)
	return args
}

// Encode implements swing.Encoder.
func (e *FFmpegEncoder) Encode(ctx context.Context, inPath, outPath string, level swing.CompressionLevel) error {
	out, err := e.runner.Run(ctx, e.path, Args(inPath, outPath, level)...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(out))
	}
	return nil
}

// tail keeps the end of tool output, where ffmpeg prints the actual error.
func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > outputTailLen {
		s = s[len(s)-outputTailLen:]
	}
	return s
}

var _ swing.Encoder = (*FFmpegEncoder)(nil)
