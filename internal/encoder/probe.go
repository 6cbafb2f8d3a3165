package encoder

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"myswing/internal/swing"
)

// Prober reads stream information with ffprobe.
type Prober struct {
	path   string
	runner Runner
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
		Duration  string `json:"duration,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func NewProber(path string, runner Runner) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	if runner == nil {
		runner = NewCommandRunner()
	}
	return &Prober{path: path, runner: runner}
}

// Probe implements swing.StreamProber. A container without a video stream
// is reported as not a video.
func (p *Prober) Probe(ctx context.Context, path string) (*swing.StreamInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	out, err := p.runner.Run(ctx, p.path, args...)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var data ffprobeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &swing.StreamInfo{}
	if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	found := false
	for _, s := range data.Streams {
		if s.CodecType != "video" {
			continue
		}
		found = true
		info.Codec = s.CodecName
		info.Width = s.Width
		info.Height = s.Height
		if info.Duration == 0 {
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				info.Duration = d
			}
		}
		break
	}
	if !found {
		return nil, fmt.Errorf("not a video: no video stream in %s", path)
	}
	return info, nil
}

var _ swing.StreamProber = (*Prober)(nil)
