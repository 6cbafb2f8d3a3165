package swing

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// IssueSeverity grades a validation issue.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
	SeverityInfo    IssueSeverity = "info"
)

// IssueType names the property a validation issue is about.
type IssueType string

const (
	IssueSize   IssueType = "size"
	IssueFormat IssueType = "format"
	IssueCodec  IssueType = "codec"
	IssueFile   IssueType = "file"
)

// ValidationIssue is one finding of a validation pass. Kind is the error
// kind the workflow reports when the issue blocks the run.
type ValidationIssue struct {
	Type     IssueType     `json:"type"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
	Kind     ErrorKind     `json:"kind,omitempty"`
}

// ValidationResult drives the workflow's branch after validation.
type ValidationResult struct {
	Success          bool              `json:"success"`
	NeedsCompression bool              `json:"needs_compression"`
	CanProceed       bool              `json:"can_proceed"`
	Issues           []ValidationIssue `json:"issues"`
	Metadata         *VideoMetadata    `json:"metadata,omitempty"`
	Plan             CompressionLevel  `json:"plan"`
}

// FirstError returns the first error-severity issue, or nil.
func (r *ValidationResult) FirstError() *ValidationIssue {
	for i := range r.Issues {
		if r.Issues[i].Severity == SeverityError {
			return &r.Issues[i]
		}
	}
	return nil
}

// ValidationPolicy holds the thresholds of one validation entry point.
type ValidationPolicy struct {
	TargetMB      float64
	HardCeilingMB float64
	MinSizeMB     float64
	Extensions    []string
}

// DefaultExtensions are the containers the analysis service accepts.
var DefaultExtensions = []string{".mp4", ".mov", ".m4v", ".3gp", ".webm", ".avi"}

// SupportedCodecs are the video codecs the analysis service can decode.
var SupportedCodecs = []string{"h264", "hevc", "mpeg4", "vp8", "vp9", "av1"}

// RecordedPolicy is lenient: camera captures come from a known pipeline.
func RecordedPolicy() ValidationPolicy {
	return ValidationPolicy{
		TargetMB:      DefaultTargetSizeMB,
		HardCeilingMB: 500,
		MinSizeMB:     0.01,
		Extensions:    DefaultExtensions,
	}
}

// GalleryPolicy is strict: picked files may be huge or malformed.
func GalleryPolicy() ValidationPolicy {
	return ValidationPolicy{
		TargetMB:      DefaultTargetSizeMB,
		HardCeilingMB: 100,
		MinSizeMB:     0.01,
		Extensions:    DefaultExtensions,
	}
}

// StreamInfo is what a StreamProber learns from the container.
type StreamInfo struct {
	Codec    string
	Width    int
	Height   int
	Duration float64
}

// StreamProber inspects a video's streams. Optional: without one the
// validator relies on size and extension alone.
type StreamProber interface {
	Probe(ctx context.Context, path string) (*StreamInfo, error)
}

// Validator decides whether a candidate video is usable as-is, needs
// compression, or must be rejected.
type Validator struct {
	fs     FileSystem
	prober StreamProber
	logger Logger
}

// NewValidator creates a Validator. prober may be nil.
func NewValidator(fsys FileSystem, prober StreamProber, logger Logger) *Validator {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Validator{fs: fsys, prober: prober, logger: logger}
}

// Metadata stats path and classifies its source.
func (v *Validator) Metadata(path string) (*VideoMetadata, error) {
	info, err := v.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading video metadata: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("not a video file: %s is a directory", path)
	}
	return &VideoMetadata{
		SizeMB:  SizeMB(info.Size()),
		Source:  ClassifySource(path),
		URI:     path,
		ModTime: info.ModTime(),
	}, nil
}

// ValidateRecorded validates a video captured by the camera.
func (v *Validator) ValidateRecorded(ctx context.Context, path string) *ValidationResult {
	return v.Validate(ctx, path, RecordedPolicy())
}

// ValidateGallery validates a video picked from the media library.
func (v *Validator) ValidateGallery(ctx context.Context, path string) *ValidationResult {
	return v.Validate(ctx, path, GalleryPolicy())
}

// Validate runs every check of policy against path. It never returns an
// error: failures are reported as error-severity issues.
func (v *Validator) Validate(ctx context.Context, path string, policy ValidationPolicy) *ValidationResult {
	result := &ValidationResult{}

	meta, err := v.Metadata(path)
	if err != nil {
		kind := Classify(err).Kind
		if kind == KindUnknown {
			kind = KindReadFailed
		}
		result.addIssue(ValidationIssue{Type: IssueFile, Severity: SeverityError, Message: err.Error(), Kind: kind})
		return result.finish()
	}
	result.Metadata = meta
	target := EffectiveTargetMB(policy.TargetMB)

	if meta.Source == SourceGallerySelected {
		v.logger.Debug("source defaulted to gallery", "path", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if len(policy.Extensions) > 0 && !slices.Contains(policy.Extensions, ext) {
		result.addIssue(ValidationIssue{
			Type:     IssueFormat,
			Severity: SeverityError,
			Message:  fmt.Sprintf("unsupported video container %q", ext),
			Kind:     KindInvalidFormat,
		})
	}

	switch {
	case meta.SizeMB < policy.MinSizeMB:
		result.addIssue(ValidationIssue{
			Type:     IssueSize,
			Severity: SeverityError,
			Message:  fmt.Sprintf("video is too small (%.2fMB)", meta.SizeMB),
			Kind:     KindTooSmall,
		})
	case meta.SizeMB > policy.HardCeilingMB:
		result.addIssue(ValidationIssue{
			Type:     IssueSize,
			Severity: SeverityError,
			Message:  fmt.Sprintf("video is too large (%.1fMB, limit %.0fMB)", meta.SizeMB, policy.HardCeilingMB),
			Kind:     KindTooLarge,
		})
	case meta.SizeMB > target:
		result.addIssue(ValidationIssue{
			Type:     IssueSize,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("video is %.1fMB and will be compressed to about %.0fMB", meta.SizeMB, target),
			Kind:     KindTooLarge,
		})
		result.NeedsCompression = true
	}

	if v.prober != nil && result.FirstError() == nil {
		v.checkStreams(ctx, path, result)
	}

	if result.FirstError() == nil {
		result.Plan = PlanCompression(*meta, target)
	}
	return result.finish()
}

// checkStreams adds a codec issue when the probed codec is unsupported.
// A failing probe is only a warning: size and container already passed.
func (v *Validator) checkStreams(ctx context.Context, path string, result *ValidationResult) {
	info, err := v.prober.Probe(ctx, path)
	if err != nil {
		v.logger.Warn("stream probe failed", "path", path, "error", err)
		result.addIssue(ValidationIssue{
			Type:     IssueCodec,
			Severity: SeverityWarning,
			Message:  "could not inspect video streams",
		})
		return
	}
	if info.Codec != "" && !slices.Contains(SupportedCodecs, strings.ToLower(info.Codec)) {
		result.addIssue(ValidationIssue{
			Type:     IssueCodec,
			Severity: SeverityError,
			Message:  fmt.Sprintf("unsupported codec %q", info.Codec),
			Kind:     KindUnsupportedCodec,
		})
	}
}

func (r *ValidationResult) addIssue(issue ValidationIssue) {
	r.Issues = append(r.Issues, issue)
}

func (r *ValidationResult) finish() *ValidationResult {
	if r.FirstError() != nil {
		r.Success = false
		r.CanProceed = false
		r.NeedsCompression = false
		return r
	}
	r.Success = true
	r.CanProceed = true
	return r
}
