package swing_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"myswing/internal/kvstore"
	"myswing/internal/swing"
	"myswing/internal/testutil"
)

type trackerEnv struct {
	jobs     *testutil.FakeJobService
	realtime *testutil.FakeRealtime
	cache    *swing.Cache
	tracker  *swing.Tracker

	completed atomic.Int32
	failed    atomic.Int32
	lastErr   atomic.Pointer[swing.Error]
}

func newTrackerEnv(t *testing.T, poll time.Duration) *trackerEnv {
	t.Helper()
	clock := testutil.FixedClock()
	env := &trackerEnv{
		jobs:     testutil.NewFakeJobService(),
		realtime: testutil.NewFakeRealtime(),
		cache:    swing.NewCache(kvstore.NewMemoryStore(), clock, nil),
	}
	env.tracker = swing.NewTracker(swing.TrackerDeps{
		Jobs:     env.jobs,
		Realtime: env.realtime,
		Cache:    env.cache,
		Sessions: testutil.StaticSessions{S: testutil.NewSession("user-1", clock.Now())},
	}, swing.TrackerOptions{PollInterval: poll, SubscribeRetry: swing.NoRetry()})
	return env
}

func (e *trackerEnv) handlers() swing.Handlers {
	return swing.Handlers{
		OnComplete: func(job *swing.AnalysisJob) { e.completed.Add(1) },
		OnError: func(err *swing.Error) {
			e.lastErr.Store(err)
			e.failed.Add(1)
		},
	}
}

func waitDone(t *testing.T, w *swing.Watch) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("watch on %s never finished (state %s)", w.JobID(), w.State())
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTracker_TerminalOnFirstRead(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-1", Status: swing.JobStatusCompleted, AnalysisID: "an-1"})
	env.cache.Set(swing.CacheUserStats, "user-1", 1)

	w := env.tracker.Track(context.Background(), "job-1", env.handlers())
	waitDone(t, w)

	if env.completed.Load() != 1 || env.failed.Load() != 0 {
		t.Errorf("completed = %d failed = %d", env.completed.Load(), env.failed.Load())
	}
	if env.realtime.Subscribes() != 0 {
		t.Errorf("subscribed %d times for an already terminal job", env.realtime.Subscribes())
	}
	if w.State() != swing.StateTerminal {
		t.Errorf("State() = %s", w.State())
	}
	if out := w.Outcome(); out == nil || out.Job.AnalysisID != "an-1" || out.Err != nil {
		t.Errorf("Outcome() = %+v", out)
	}
	var v int
	if hit, _ := env.cache.Get(swing.CacheUserStats, "user-1", &v); hit {
		t.Error("stats cache survived job completion")
	}
}

func TestTracker_FollowsPushesToCompletion(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-2", Status: swing.JobStatusQueued})

	w := env.tracker.Track(context.Background(), "job-2", env.handlers())
	if w.State() != swing.StateSubscribed {
		t.Fatalf("State() = %s, want subscribed", w.State())
	}
	subs := env.realtime.Subscriptions(swing.JobTopic("job-2"))
	if len(subs) != 1 {
		t.Fatalf("subscriptions = %d", len(subs))
	}

	env.jobs.SetStatus("job-2", swing.JobStatusProcessing, "")
	env.realtime.Push(swing.JobTopic("job-2"), "UPDATE")
	eventually(t, func() bool { return env.jobs.Gets() >= 3 }, "processing push never re-read the job")
	if env.completed.Load() != 0 {
		t.Fatal("completed while processing")
	}

	env.jobs.SetStatus("job-2", swing.JobStatusCompleted, "an-2")
	env.realtime.Push(swing.JobTopic("job-2"), "UPDATE")
	waitDone(t, w)

	// A straggling push after the terminal state changes nothing.
	env.realtime.Push(swing.JobTopic("job-2"), "UPDATE")

	if env.completed.Load() != 1 {
		t.Errorf("completed = %d, want exactly once", env.completed.Load())
	}
	eventually(t, subs[0].Closed, "subscription not released after completion")
	if w.Outcome().Job.AnalysisID != "an-2" {
		t.Errorf("Outcome().Job = %+v", w.Outcome().Job)
	}
}

func TestTracker_CompletedWithoutAnalysisKeepsWaiting(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-3", Status: swing.JobStatusCompleted})

	w := env.tracker.Track(context.Background(), "job-3", env.handlers())
	if w.State() != swing.StateSubscribed {
		t.Fatalf("State() = %s, want subscribed", w.State())
	}

	env.jobs.SetStatus("job-3", swing.JobStatusCompleted, "an-3")
	env.realtime.Push(swing.JobTopic("job-3"), "UPDATE")
	waitDone(t, w)
	if env.completed.Load() != 1 {
		t.Errorf("completed = %d", env.completed.Load())
	}
}

func TestTracker_FailedJobIsClassified(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-4", Status: swing.JobStatusProcessing})

	w := env.tracker.Track(context.Background(), "job-4", env.handlers())
	env.jobs.SetJob(&swing.AnalysisJob{
		ID:           "job-4",
		Status:       swing.JobStatusFailed,
		ErrorDetails: json.RawMessage(`{"message":"Gemini model overloaded"}`),
	})
	env.realtime.Push(swing.JobTopic("job-4"), "UPDATE")
	waitDone(t, w)

	if env.failed.Load() != 1 || env.completed.Load() != 0 {
		t.Fatalf("failed = %d completed = %d", env.failed.Load(), env.completed.Load())
	}
	if err := env.lastErr.Load(); err.Kind != swing.KindAIServiceError || err.Stage != swing.StageTrack {
		t.Errorf("error = %+v", err)
	}
}

func TestTracker_FailedWithoutDetails(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-5", Status: swing.JobStatusFailed})

	w := env.tracker.Track(context.Background(), "job-5", env.handlers())
	waitDone(t, w)
	if err := env.lastErr.Load(); err == nil || err.Kind != swing.KindAnalysisFailed {
		t.Errorf("error = %+v, want analysis_failed", err)
	}
}

func TestTracker_CancelSuppressesHandlers(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-6", Status: swing.JobStatusQueued})

	w := env.tracker.Track(context.Background(), "job-6", env.handlers())
	sub := env.realtime.Subscriptions(swing.JobTopic("job-6"))[0]
	w.Cancel()
	w.Cancel()

	env.jobs.SetStatus("job-6", swing.JobStatusCompleted, "an-6")
	env.realtime.Push(swing.JobTopic("job-6"), "UPDATE")

	waitDone(t, w)
	eventually(t, sub.Closed, "subscription not released after cancel")
	if env.completed.Load() != 0 || env.failed.Load() != 0 {
		t.Errorf("handler ran after Cancel: completed = %d failed = %d", env.completed.Load(), env.failed.Load())
	}
	if out := w.Outcome(); out == nil || !out.Canceled {
		t.Errorf("Outcome() = %+v, want canceled", out)
	}
}

func TestTracker_ContextCancel(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-7", Status: swing.JobStatusQueued})

	ctx, cancel := context.WithCancel(context.Background())
	w := env.tracker.Track(ctx, "job-7", env.handlers())
	cancel()
	waitDone(t, w)

	if out := w.Outcome(); !out.Canceled {
		t.Errorf("Outcome() = %+v", out)
	}
	if env.completed.Load()+env.failed.Load() != 0 {
		t.Error("handler ran after context cancel")
	}
}

// blockingJobs answers the first read and blocks every later read until
// its context is done.
type blockingJobs struct {
	*testutil.FakeJobService
	reads   atomic.Int32
	blocked chan struct{}
}

func (b *blockingJobs) GetJob(ctx context.Context, jobID string) (*swing.AnalysisJob, error) {
	if b.reads.Add(1) == 1 {
		return b.FakeJobService.GetJob(ctx, jobID)
	}
	select {
	case b.blocked <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTracker_ContextCancelDuringRead(t *testing.T) {
	jobs := &blockingJobs{FakeJobService: testutil.NewFakeJobService(), blocked: make(chan struct{}, 1)}
	jobs.SetJob(&swing.AnalysisJob{ID: "job-7b", Status: swing.JobStatusQueued})
	tracker := swing.NewTracker(swing.TrackerDeps{
		Jobs:     jobs,
		Realtime: testutil.NewFakeRealtime(),
	}, swing.TrackerOptions{PollInterval: time.Hour, SubscribeRetry: swing.NoRetry()})

	var fired atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := tracker.Track(ctx, "job-7b", swing.Handlers{
		OnComplete: func(*swing.AnalysisJob) { fired.Add(1) },
		OnError:    func(*swing.Error) { fired.Add(1) },
	})

	select {
	case <-jobs.blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("second read never started")
	}
	cancel()
	waitDone(t, w)

	if w.State() != swing.StateTerminal {
		t.Errorf("State() = %s, want terminal", w.State())
	}
	if out := w.Outcome(); out == nil || !out.Canceled {
		t.Errorf("Outcome() = %+v, want canceled", out)
	}
	if fired.Load() != 0 {
		t.Error("handler ran after context cancel")
	}
}

func TestTracker_HandlerMayCancel(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-7c", Status: swing.JobStatusQueued})

	var w *swing.Watch
	var ready = make(chan struct{})
	var calls atomic.Int32
	w = env.tracker.Track(context.Background(), "job-7c", swing.Handlers{
		OnComplete: func(*swing.AnalysisJob) {
			<-ready
			calls.Add(1)
			w.Cancel()
		},
	})
	close(ready)

	env.jobs.SetStatus("job-7c", swing.JobStatusCompleted, "an-7c")
	env.realtime.Push(swing.JobTopic("job-7c"), "UPDATE")
	waitDone(t, w)

	if calls.Load() != 1 {
		t.Errorf("OnComplete ran %d times, want 1", calls.Load())
	}
	if out := w.Outcome(); out == nil || out.Canceled || out.Job.AnalysisID != "an-7c" {
		t.Errorf("Outcome() = %+v, want completed", out)
	}
}

func TestTracker_SubscribeFailure(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-8", Status: swing.JobStatusQueued})
	env.realtime.Err = errors.New("dial tcp: i/o timeout")

	w := env.tracker.Track(context.Background(), "job-8", env.handlers())
	waitDone(t, w)

	if env.failed.Load() != 1 {
		t.Fatalf("failed = %d", env.failed.Load())
	}
	if err := env.lastErr.Load(); err.Kind != swing.KindNetworkError {
		t.Errorf("Kind = %s", err.Kind)
	}
}

func TestTracker_FirstReadFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(env *trackerEnv)
		wantKind swing.ErrorKind
	}{
		{name: "job missing", setup: func(env *trackerEnv) {}, wantKind: swing.KindAnalysisFailed},
		{
			name:     "read error",
			setup:    func(env *trackerEnv) { env.jobs.GetErr = errors.New("connection refused") },
			wantKind: swing.KindNetworkError,
		},
		{
			name:     "read error without hint",
			setup:    func(env *trackerEnv) { env.jobs.GetErr = errors.New("status 500: boom") },
			wantKind: swing.KindNetworkError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTrackerEnv(t, time.Hour)
			tt.setup(env)
			w := env.tracker.Track(context.Background(), "job-x", env.handlers())
			waitDone(t, w)
			if err := env.lastErr.Load(); err == nil || err.Kind != tt.wantKind {
				t.Errorf("error = %+v, want %s", err, tt.wantKind)
			}
			if env.realtime.Subscribes() != 0 {
				t.Error("subscribed after a failed first read")
			}
		})
	}
}

func TestTracker_PollsAfterSubscriptionDrops(t *testing.T) {
	env := newTrackerEnv(t, 10*time.Millisecond)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-9", Status: swing.JobStatusQueued})

	w := env.tracker.Track(context.Background(), "job-9", env.handlers())
	env.realtime.Subscriptions(swing.JobTopic("job-9"))[0].Fail(errors.New("socket closed"))

	env.jobs.SetStatus("job-9", swing.JobStatusCompleted, "an-9")
	waitDone(t, w)
	if env.completed.Load() != 1 {
		t.Errorf("completed = %d", env.completed.Load())
	}
}

func TestTracker_Await(t *testing.T) {
	env := newTrackerEnv(t, 10*time.Millisecond)
	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-10", Status: swing.JobStatusProcessing})

	go func() {
		time.Sleep(20 * time.Millisecond)
		env.jobs.SetStatus("job-10", swing.JobStatusCompleted, "an-10")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	job, err := env.tracker.Await(ctx, "job-10")
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if job.AnalysisID != "an-10" {
		t.Errorf("Await() = %+v", job)
	}

	env.jobs.SetJob(&swing.AnalysisJob{ID: "job-11", Status: swing.JobStatusQueued})
	short, cancelShort := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancelShort()
	if _, err := env.tracker.Await(short, "job-11"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await() error = %v, want deadline exceeded", err)
	}
}
