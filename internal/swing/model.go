package swing

import (
	"encoding/json"
	"time"
)

// VideoSource is a coarse provenance tag for a captured or picked video.
type VideoSource string

const (
	SourceCameraRecorded  VideoSource = "camera_recorded"
	SourceGallerySelected VideoSource = "gallery_selected"
)

// Resolution is the output resolution requested from the encoder.
type Resolution string

const (
	ResolutionOriginal Resolution = "original"
	Resolution720p     Resolution = "720p"
	Resolution480p     Resolution = "480p"
)

// Height returns the target frame height in pixels, or 0 for original.
func (r Resolution) Height() int {
	switch r {
	case Resolution720p:
		return 720
	case Resolution480p:
		return 480
	default:
		return 0
	}
}

// ParseResolution maps a user-supplied string to a Resolution.
// Unknown values map to ResolutionOriginal and ok=false.
func ParseResolution(s string) (Resolution, bool) {
	switch Resolution(s) {
	case ResolutionOriginal, Resolution720p, Resolution480p:
		return Resolution(s), true
	default:
		return ResolutionOriginal, false
	}
}

// VideoMetadata is derived from a stat call on the video file. Never persisted.
type VideoMetadata struct {
	SizeMB  float64
	Source  VideoSource
	URI     string
	ModTime time.Time
}

// CompressionLevel is the plan handed to an Encoder.
type CompressionLevel struct {
	Quality    float64    `json:"quality"` // (0, 1]
	Resolution Resolution `json:"resolution"`
	Aggressive bool       `json:"aggressive"`
}

// IsNoop reports whether the level leaves the video untouched.
func (l CompressionLevel) IsNoop() bool {
	return l.Quality >= 1.0 && !l.Aggressive && (l.Resolution == ResolutionOriginal || l.Resolution == "")
}

// JobStatus is the server-owned lifecycle stage of an analysis job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// AnalysisJob is the client's read-only view of a server-side job.
type AnalysisJob struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id,omitempty"`
	Status       JobStatus       `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ErrorDetails json.RawMessage `json:"error_details,omitempty"`
	AnalysisID   string          `json:"analysis_id,omitempty"`
}

// IsTerminal reports whether the job reached a state the tracker can report.
// A completed job without a result reference is not yet terminal.
func (j *AnalysisJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusFailed:
		return true
	case JobStatusCompleted:
		return j.AnalysisID != ""
	default:
		return false
	}
}

// ErrorText flattens error_details into a single message for classification.
func (j *AnalysisJob) ErrorText() string {
	if len(j.ErrorDetails) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(j.ErrorDetails, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(j.ErrorDetails, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Error != "" {
			return obj.Error
		}
	}
	return string(j.ErrorDetails)
}

// SwingContext is the user-supplied context sent with a submission.
type SwingContext struct {
	Club      string `json:"club,omitempty"`
	Angle     string `json:"angle,omitempty"`
	ShotType  string `json:"shot_type,omitempty"`
	UserNotes string `json:"user_notes,omitempty"`
}

// CaptureMetadata describes how the submitted video was produced.
type CaptureMetadata struct {
	Source           VideoSource `json:"source"`
	OriginalSizeMB   float64     `json:"original_size_mb"`
	UploadedSizeMB   float64     `json:"uploaded_size_mb"`
	Compressed       bool        `json:"compressed"`
	CompressionRatio float64     `json:"compression_ratio"`
}

// SubmitRequest is sent to the remote analysis function.
type SubmitRequest struct {
	VideoPath      string          `json:"video_path"`
	Context        SwingContext    `json:"context"`
	Capture        CaptureMetadata `json:"capture"`
	IdempotencyKey string          `json:"-"`
	WaitSeconds    int             `json:"wait_seconds"`
}

// SubmitResponse is returned by the remote analysis function.
// AnalysisID is set only when the job finished inside the inline window.
type SubmitResponse struct {
	JobID      string    `json:"job_id"`
	Status     JobStatus `json:"status"`
	AnalysisID string    `json:"analysis_id,omitempty"`
}

// Scores holds the per-aspect coaching scores of an analysis.
type Scores struct {
	Overall       float64 `json:"overall"`
	Setup         float64 `json:"setup,omitempty"`
	Backswing     float64 `json:"backswing,omitempty"`
	Impact        float64 `json:"impact,omitempty"`
	FollowThrough float64 `json:"follow_through,omitempty"`
}

// Analysis is the persisted result of a completed job.
type Analysis struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	VideoPath  string          `json:"video_path"`
	Club       string          `json:"club,omitempty"`
	Angle      string          `json:"angle,omitempty"`
	ShotType   string          `json:"shot_type,omitempty"`
	Scores     Scores          `json:"scores"`
	AIResponse json.RawMessage `json:"ai_response,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Profile is the user's golf profile.
type Profile struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Handicap     *float64  `json:"handicap,omitempty"`
	DominantHand string    `json:"dominant_hand,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProfileUpdate carries the fields a user may change. Nil fields are left alone.
type ProfileUpdate struct {
	DisplayName  *string  `json:"display_name,omitempty"`
	Handicap     *float64 `json:"handicap,omitempty"`
	DominantHand *string  `json:"dominant_hand,omitempty"`
}

// UserStats aggregates a user's analyses server-side.
type UserStats struct {
	TotalAnalyses int        `json:"total_analyses"`
	AverageScore  float64    `json:"average_score"`
	BestScore     float64    `json:"best_score"`
	LastAnalysis  *time.Time `json:"last_analysis_at,omitempty"`
}

// Weather is the current conditions at the user's location.
type Weather struct {
	TemperatureC float64   `json:"temperature_c"`
	WindSpeedKmh float64   `json:"wind_speed_kmh"`
	WeatherCode  int       `json:"weather_code"`
	ObservedAt   time.Time `json:"observed_at"`
}

// User is the authenticated identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated session with the backend.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
