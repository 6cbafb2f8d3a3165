package swing

import "time"

// RunStatus is the local outcome of one workflow run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSubmitted RunStatus = "submitted"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the local record of one workflow run. It is bookkeeping for the
// device only; the backend owns the job and its result.
type Run struct {
	ID             string
	IdempotencyKey string
	VideoPath      string
	Source         VideoSource
	Stage          Stage
	Status         RunStatus
	JobID          string
	AnalysisID     string
	ErrorKind      ErrorKind
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// RunLog persists workflow runs on the device.
type RunLog interface {
	StartRun(run *Run) error
	FinishRun(run *Run) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)
}
