package swing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// TrackState is the lifecycle of a Watch.
type TrackState int

const (
	StateAwaitingFirstRead TrackState = iota
	StateSubscribed
	StateTerminal
)

func (s TrackState) String() string {
	switch s {
	case StateAwaitingFirstRead:
		return "awaiting_first_read"
	case StateSubscribed:
		return "subscribed"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("TrackState(%d)", int(s))
	}
}

// Handlers receive the terminal outcome of a tracked job. Exactly one of
// them is called, at most once, and never after Cancel.
type Handlers struct {
	OnComplete func(job *AnalysisJob)
	OnError    func(err *Error)
}

// Outcome is the terminal state of a Watch.
type Outcome struct {
	Job      *AnalysisJob
	Err      *Error
	Canceled bool
}

// TrackerOptions tune a Tracker.
type TrackerOptions struct {
	// PollInterval is the fallback re-fetch period while subscribed.
	PollInterval   time.Duration
	SubscribeRetry RetryPolicy
}

// DefaultTrackerOptions returns the production defaults.
func DefaultTrackerOptions() TrackerOptions {
	return TrackerOptions{
		PollInterval:   15 * time.Second,
		SubscribeRetry: NoRetry(),
	}
}

// TrackerDeps groups the collaborators of a Tracker. Cache and Sessions may
// be nil; when both are set a completed job invalidates the user's cache.
type TrackerDeps struct {
	Jobs     JobService
	Realtime Realtime
	Cache    *Cache
	Sessions SessionSource
	Logger   Logger
}

// Tracker follows asynchronous analysis jobs to completion. Push
// notifications are only a hint to re-read the job; the read is the truth.
type Tracker struct {
	jobs     JobService
	realtime Realtime
	cache    *Cache
	sessions SessionSource
	logger   Logger
	opts     TrackerOptions
}

// NewTracker creates a Tracker.
func NewTracker(deps TrackerDeps, opts TrackerOptions) *Tracker {
	logger := deps.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultTrackerOptions().PollInterval
	}
	return &Tracker{
		jobs:     deps.Jobs,
		realtime: deps.Realtime,
		cache:    deps.Cache,
		sessions: deps.Sessions,
		logger:   logger,
		opts:     opts,
	}
}

// Watch is one tracked job.
type Watch struct {
	jobID    string
	tracker  *Tracker
	handlers Handlers
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once

	mu        sync.Mutex
	state     TrackState
	outcome   *Outcome
	canceled  bool
	lastState JobStatus
}

// Track reads the job once and, unless it is already terminal, subscribes
// to its topic. The first read and the subscription happen before Track
// returns; everything after runs in the background until the job is
// terminal, ctx is done, or Cancel is called.
func (t *Tracker) Track(ctx context.Context, jobID string, h Handlers) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		jobID:    jobID,
		tracker:  t,
		handlers: h,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    StateAwaitingFirstRead,
	}

	job, err := t.jobs.GetJob(ctx, jobID)
	if err != nil {
		w.finish(nil, &Error{Kind: defaultKind(Classify(err), KindNetworkError).Kind, Stage: StageTrack, Err: fmt.Errorf("reading job %s: %w", jobID, err)})
		return w
	}
	if job == nil {
		w.finish(nil, &Error{Kind: KindAnalysisFailed, Stage: StageTrack, Err: fmt.Errorf("job %s not found", jobID)})
		return w
	}
	if w.observe(job) {
		return w
	}

	var sub Subscription
	err = t.opts.SubscribeRetry.Do(ctx, t.logger, StageTrack, func() error {
		s, err := t.realtime.Subscribe(ctx, JobTopic(jobID))
		if err != nil {
			return fmt.Errorf("subscribing to job %s: network: %w", jobID, err)
		}
		sub = s
		return nil
	})
	if err != nil {
		w.finish(nil, &Error{Kind: KindNetworkError, Stage: StageTrack, Err: err})
		return w
	}

	w.mu.Lock()
	w.state = StateSubscribed
	w.mu.Unlock()
	t.logger.Debug("job subscribed", "job_id", jobID, "status", string(job.Status))

	go w.loop(ctx, sub)
	return w
}

// Await tracks jobID and blocks until it is terminal or ctx is done.
func (t *Tracker) Await(ctx context.Context, jobID string) (*AnalysisJob, error) {
	w := t.Track(ctx, jobID, Handlers{})
	select {
	case <-w.Done():
	case <-ctx.Done():
		w.Cancel()
		return nil, ctx.Err()
	}
	out := w.Outcome()
	if out.Err != nil {
		return out.Job, out.Err
	}
	if out.Canceled {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, context.Canceled
	}
	return out.Job, nil
}

func (w *Watch) loop(ctx context.Context, sub Subscription) {
	defer sub.Close()
	// Every exit reaches an outcome; after finish this is a no-op.
	defer w.Cancel()

	ticker := time.NewTicker(w.tracker.opts.PollInterval)
	defer ticker.Stop()

	// A transition between the first read and the subscription would never
	// be pushed.
	if w.refresh(ctx) {
		return
	}

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				w.tracker.logger.Warn("job subscription closed, polling only", "job_id", w.jobID, "error", sub.Err())
				events = nil
				continue
			}
			w.tracker.logger.Debug("job notification", "job_id", w.jobID, "type", ev.Type)
			if w.refresh(ctx) {
				return
			}
		case <-ticker.C:
			if w.refresh(ctx) {
				return
			}
		}
	}
}

// refresh re-reads the job and reports whether the watch is over. Read
// failures are transient here: the next notification or poll tries again.
func (w *Watch) refresh(ctx context.Context) bool {
	job, err := w.tracker.jobs.GetJob(ctx, w.jobID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		w.tracker.logger.Warn("job refresh failed", "job_id", w.jobID, "error", err)
		return false
	}
	if job == nil {
		w.tracker.logger.Warn("job vanished", "job_id", w.jobID)
		return false
	}
	return w.observe(job)
}

// observe handles one read of the job and reports whether it was terminal.
func (w *Watch) observe(job *AnalysisJob) bool {
	w.mu.Lock()
	changed := w.lastState != job.Status
	w.lastState = job.Status
	w.mu.Unlock()
	if changed {
		w.tracker.logger.Info("job status", "job_id", job.ID, "status", string(job.Status))
	}

	if !job.IsTerminal() {
		if job.Status == JobStatusCompleted {
			w.tracker.logger.Debug("job completed without analysis id, waiting", "job_id", job.ID)
		}
		return false
	}

	if job.Status == JobStatusFailed {
		text := job.ErrorText()
		if text == "" {
			text = "analysis failed"
		}
		w.finish(job, &Error{
			Kind:  defaultKind(Classify(errors.New(text)), KindAnalysisFailed).Kind,
			Stage: StageTrack,
			Err:   errors.New(text),
		})
		return true
	}

	w.tracker.invalidate()
	w.finish(job, nil)
	return true
}

func (t *Tracker) invalidate() {
	if t.cache == nil || t.sessions == nil {
		return
	}
	s := t.sessions.Session()
	if s == nil {
		return
	}
	if err := t.cache.OnAnalysisCreated(s.User.ID); err != nil {
		t.logger.Warn("cache invalidation failed", "error", err)
	}
}

// finish records the terminal outcome, then fires the matching handler
// unless the watch was canceled first.
func (w *Watch) finish(job *AnalysisJob, err *Error) {
	won := false
	w.once.Do(func() {
		won = true
		w.mu.Lock()
		w.state = StateTerminal
		w.outcome = &Outcome{Job: job, Err: err, Canceled: w.canceled}
		w.mu.Unlock()
		w.cancel()
	})
	if !won {
		return
	}
	defer close(w.done)

	// Cancel and the start of delivery are ordered by mu.
	w.mu.Lock()
	fire := !w.canceled
	if !fire {
		out := *w.outcome
		out.Canceled = true
		w.outcome = &out
	}
	w.mu.Unlock()
	if !fire {
		return
	}

	if err != nil {
		if w.handlers.OnError != nil {
			w.handlers.OnError(err)
		}
	} else if w.handlers.OnComplete != nil {
		w.handlers.OnComplete(job)
	}
}

// Cancel stops tracking. A handler that has not started when Cancel is
// called never runs; one already running is allowed to return. Handlers
// may call Cancel.
func (w *Watch) Cancel() {
	w.mu.Lock()
	w.canceled = true
	w.mu.Unlock()

	w.once.Do(func() {
		w.mu.Lock()
		w.state = StateTerminal
		w.outcome = &Outcome{Canceled: true}
		w.mu.Unlock()
		w.cancel()
		close(w.done)
	})
}

// Done is closed once the watch reached its outcome or was canceled.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Outcome returns the terminal outcome, or nil while the job is pending.
func (w *Watch) Outcome() *Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome
}

// State returns the current lifecycle state.
func (w *Watch) State() TrackState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// JobID returns the tracked job id.
func (w *Watch) JobID() string { return w.jobID }
