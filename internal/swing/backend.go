package swing

import "context"

// AuthService is the auth collaborator. The core only needs the current
// user id from it; the remaining calls back the CLI's auth commands.
type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context) error
	Session() *Session
}

// JobService submits analysis jobs and reads their status.
type JobService interface {
	// SubmitAnalysis creates a job. Requests sharing an IdempotencyKey
	// resolve to the same job.
	SubmitAnalysis(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error)

	// GetJob returns the current state of a job, or nil if it does not exist.
	GetJob(ctx context.Context, jobID string) (*AnalysisJob, error)
}

// AnalysisRepository reads and deletes persisted analyses.
type AnalysisRepository interface {
	ListAnalyses(ctx context.Context, userID string, limit int) ([]*Analysis, error)

	// GetAnalysis returns nil if the analysis does not exist.
	GetAnalysis(ctx context.Context, id string) (*Analysis, error)

	DeleteAnalysis(ctx context.Context, id string) error
}

// ProfileRepository reads and updates user profiles.
type ProfileRepository interface {
	// GetProfile returns nil if the user has no profile yet.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	UpdateProfile(ctx context.Context, userID string, update *ProfileUpdate) (*Profile, error)
}

// StatsService computes per-user aggregates server-side.
type StatsService interface {
	GetUserStats(ctx context.Context, userID string) (*UserStats, error)
}

// WeatherService reports current conditions at a location.
type WeatherService interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (*Weather, error)
}

// SessionStore persists a remembered session between runs.
type SessionStore interface {
	// Load returns the saved session, or nil if none is saved.
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}
