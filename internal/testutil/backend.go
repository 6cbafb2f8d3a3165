package testutil

import (
	"context"
	"sync"
	"time"

	"myswing/internal/swing"
)

// StaticSessions is a swing.SessionSource with a fixed session.
type StaticSessions struct {
	S *swing.Session
}

func (s StaticSessions) Session() *swing.Session { return s.S }

// NewSession returns a session for userID that expires a day after now.
func NewSession(userID string, now time.Time) *swing.Session {
	return &swing.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    now.Add(24 * time.Hour),
		User:         swing.User{ID: userID, Email: userID + "@example.com"},
	}
}

// FakeJobService is an in-memory swing.JobService. Submissions with the
// same idempotency key return the same job unless SubmitFunc overrides the
// behaviour.
type FakeJobService struct {
	// SubmitFunc, when set, handles every SubmitAnalysis call.
	SubmitFunc func(ctx context.Context, req *swing.SubmitRequest) (*swing.SubmitResponse, error)
	// GetErr, when set, is returned by GetJob.
	GetErr error

	mu      sync.Mutex
	jobs    map[string]*swing.AnalysisJob
	byKey   map[string]string
	submits []swing.SubmitRequest
	gets    int
}

func NewFakeJobService() *FakeJobService {
	return &FakeJobService{
		jobs:  make(map[string]*swing.AnalysisJob),
		byKey: make(map[string]string),
	}
}

func (f *FakeJobService) SubmitAnalysis(ctx context.Context, req *swing.SubmitRequest) (*swing.SubmitResponse, error) {
	f.mu.Lock()
	f.submits = append(f.submits, *req)
	fn := f.SubmitFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byKey[req.IdempotencyKey]
	if !ok {
		id = "job-" + req.IdempotencyKey
		f.byKey[req.IdempotencyKey] = id
		f.jobs[id] = &swing.AnalysisJob{ID: id, Status: swing.JobStatusQueued}
	}
	job := f.jobs[id]
	return &swing.SubmitResponse{JobID: id, Status: job.Status, AnalysisID: job.AnalysisID}, nil
}

func (f *FakeJobService) GetJob(ctx context.Context, jobID string) (*swing.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

// SetJob stores job, replacing any job with the same ID.
func (f *FakeJobService) SetJob(job *swing.AnalysisJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
}

// SetStatus updates the status and analysis ID of an existing job.
func (f *FakeJobService) SetStatus(jobID string, status swing.JobStatus, analysisID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		job = &swing.AnalysisJob{ID: jobID}
		f.jobs[jobID] = job
	}
	job.Status = status
	job.AnalysisID = analysisID
}

// Submits returns copies of every submitted request, in order.
func (f *FakeJobService) Submits() []swing.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]swing.SubmitRequest(nil), f.submits...)
}

// Gets returns how many times GetJob was called.
func (f *FakeJobService) Gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

var _ swing.JobService = (*FakeJobService)(nil)

// FakeRealtime hands out FakeSubscriptions and lets tests push events.
type FakeRealtime struct {
	// Err, when set, is returned by Subscribe.
	Err error

	mu   sync.Mutex
	subs map[string][]*FakeSubscription
	n    int
}

func NewFakeRealtime() *FakeRealtime {
	return &FakeRealtime{subs: make(map[string][]*FakeSubscription)}
}

func (r *FakeRealtime) Subscribe(ctx context.Context, topic string) (swing.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	if r.Err != nil {
		return nil, r.Err
	}
	sub := &FakeSubscription{topic: topic, events: make(chan swing.Event, 16)}
	r.subs[topic] = append(r.subs[topic], sub)
	return sub, nil
}

// Subscribes returns how many times Subscribe was called.
func (r *FakeRealtime) Subscribes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Subscriptions returns the subscriptions opened for topic.
func (r *FakeRealtime) Subscriptions(topic string) []*FakeSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*FakeSubscription(nil), r.subs[topic]...)
}

// Push delivers an event to every open subscription of topic.
func (r *FakeRealtime) Push(topic, eventType string) {
	for _, sub := range r.Subscriptions(topic) {
		sub.push(swing.Event{Topic: topic, Type: eventType})
	}
}

var _ swing.Realtime = (*FakeRealtime)(nil)

// FakeSubscription is an in-memory swing.Subscription.
type FakeSubscription struct {
	topic  string
	events chan swing.Event

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *FakeSubscription) Events() <-chan swing.Event { return s.events }

func (s *FakeSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *FakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Fail ends the subscription with err, as a dropped connection would.
func (s *FakeSubscription) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.err = err
		s.closed = true
		close(s.events)
	}
}

// Closed reports whether the subscription has ended.
func (s *FakeSubscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *FakeSubscription) push(ev swing.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- ev
	}
}
