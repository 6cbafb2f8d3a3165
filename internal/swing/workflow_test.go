package swing_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"testing"
	"time"

	"myswing/internal/kvstore"
	"myswing/internal/storage"
	"myswing/internal/swing"
	"myswing/internal/testutil"
)

type workflowEnv struct {
	fs      *testutil.MockFileSystem
	encoder *testutil.FakeEncoder
	storage *storage.MemoryStorage
	jobs    *testutil.FakeJobService
	kv      *kvstore.MemoryStore
	cache   *swing.Cache
	clock   *testutil.StubClock
	session *swing.Session
	opts    swing.WorkflowOptions
	store   swing.Storage
	ids     *testutil.StubIDGenerator
}

func newWorkflowEnv(t *testing.T) *workflowEnv {
	t.Helper()
	clock := testutil.FixedClock()
	fsys := testutil.NewMockFileSystem()
	kv := kvstore.NewMemoryStore()
	mem := storage.NewMemoryStorage("test", clock)
	return &workflowEnv{
		fs:      fsys,
		encoder: testutil.NewFakeEncoder(fsys, 8*testutil.MB),
		storage: mem,
		store:   mem,
		jobs:    testutil.NewFakeJobService(),
		kv:      kv,
		cache:   swing.NewCache(kv, clock, nil),
		clock:   clock,
		session: testutil.NewSession("user-1", clock.Now()),
		opts:    swing.DefaultWorkflowOptions(),
		ids:     testutil.NewStubIDGenerator(),
	}
}

func (e *workflowEnv) workflow() *swing.Workflow {
	return swing.NewWorkflow(swing.WorkflowDeps{
		Validator:  swing.NewValidator(e.fs, nil, nil),
		Compressor: swing.NewCompressor(e.fs, e.encoder, nil),
		FS:         e.fs,
		Storage:    e.store,
		Jobs:       e.jobs,
		Sessions:   testutil.StaticSessions{S: e.session},
		Cache:      e.cache,
		Runs:       e.kv,
		Clock:      e.clock,
		IDGen:      e.ids,
	}, e.opts)
}

func (e *workflowEnv) lastRun(t *testing.T) *swing.Run {
	t.Helper()
	runs, err := e.kv.ListRuns(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns() = %v, %v", runs, err)
	}
	return runs[0]
}

const galleryVideo = "/Users/me/Movies/swing.mp4"

func TestWorkflow_SyncCompletion(t *testing.T) {
	env := newWorkflowEnv(t)
	env.fs.AddFileMB(galleryVideo, 6)
	env.jobs.SubmitFunc = func(ctx context.Context, req *swing.SubmitRequest) (*swing.SubmitResponse, error) {
		return &swing.SubmitResponse{JobID: "job-1", Status: swing.JobStatusCompleted, AnalysisID: "an-1"}, nil
	}
	if err := env.cache.Set(swing.CacheAnalyses, "user-1", []string{"stale"}); err != nil {
		t.Fatal(err)
	}

	got := env.workflow().Run(context.Background(), swing.Request{
		VideoPath: galleryVideo,
		Context:   swing.SwingContext{Club: "driver", Angle: "down_the_line"},
	})

	if !got.Success || got.Err != nil {
		t.Fatalf("Run() failed: %+v", got.Err)
	}
	if !got.Sync || got.AnalysisID != "an-1" || got.JobID != "job-1" {
		t.Errorf("Run() = %+v", got)
	}
	if got.Compression != nil {
		t.Errorf("Compression = %+v, want none for a 6MB video", got.Compression)
	}
	wantKey := "swings/user-1/20260314T093000Z_id-1.mp4"
	if got.StorageKey != wantKey {
		t.Errorf("StorageKey = %q, want %q", got.StorageKey, wantKey)
	}
	if data, ok := env.storage.Object(wantKey); !ok || len(data) != 6*testutil.MB {
		t.Errorf("uploaded object missing or wrong size")
	}

	submits := env.jobs.Submits()
	if len(submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(submits))
	}
	s := submits[0]
	if s.IdempotencyKey != got.IdempotencyKey || s.IdempotencyKey == "" {
		t.Errorf("IdempotencyKey = %q, result %q", s.IdempotencyKey, got.IdempotencyKey)
	}
	if s.WaitSeconds != 25 || s.VideoPath != wantKey || s.Context.Club != "driver" {
		t.Errorf("submit request = %+v", s)
	}
	if s.Capture.Compressed || s.Capture.CompressionRatio != 1.0 || s.Capture.Source != swing.SourceGallerySelected {
		t.Errorf("capture = %+v", s.Capture)
	}

	var cached []string
	if hit, _ := env.cache.Get(swing.CacheAnalyses, "user-1", &cached); hit {
		t.Error("analyses cache not invalidated after sync completion")
	}
	if run := env.lastRun(t); run.Status != swing.RunCompleted || run.AnalysisID != "an-1" || run.FinishedAt == nil {
		t.Errorf("run = %+v", run)
	}
}

func TestWorkflow_AsyncSubmission(t *testing.T) {
	env := newWorkflowEnv(t)
	env.fs.AddFileMB("/data/app/cache/Camera/VID_1.mp4", 4)

	got := env.workflow().Run(context.Background(), swing.Request{VideoPath: "/data/app/cache/Camera/VID_1.mp4"})

	if !got.Success || got.Sync {
		t.Fatalf("Run() = %+v, err %v", got, got.Err)
	}
	if got.JobID != "job-"+got.IdempotencyKey || got.AnalysisID != "" {
		t.Errorf("JobID = %q AnalysisID = %q", got.JobID, got.AnalysisID)
	}
	if got.Source != swing.SourceCameraRecorded {
		t.Errorf("Source = %s", got.Source)
	}
	if run := env.lastRun(t); run.Status != swing.RunSubmitted || run.JobID != got.JobID {
		t.Errorf("run = %+v", run)
	}
}

func TestWorkflow_InlineDeadlineResubmitsSameKey(t *testing.T) {
	env := newWorkflowEnv(t)
	env.fs.AddFileMB(galleryVideo, 5)
	env.jobs.SubmitFunc = func(ctx context.Context, req *swing.SubmitRequest) (*swing.SubmitResponse, error) {
		if req.WaitSeconds > 0 {
			return nil, fmt.Errorf("submit analysis: %w", context.DeadlineExceeded)
		}
		return &swing.SubmitResponse{JobID: "job-9", Status: swing.JobStatusProcessing}, nil
	}

	got := env.workflow().Run(context.Background(), swing.Request{VideoPath: galleryVideo})

	if !got.Success || got.Sync || got.JobID != "job-9" {
		t.Fatalf("Run() = %+v, err %v", got, got.Err)
	}
	submits := env.jobs.Submits()
	if len(submits) != 2 {
		t.Fatalf("submits = %d, want 2", len(submits))
	}
	if submits[0].IdempotencyKey != submits[1].IdempotencyKey {
		t.Errorf("resubmission changed key: %q then %q", submits[0].IdempotencyKey, submits[1].IdempotencyKey)
	}
	if submits[0].WaitSeconds != 25 || submits[1].WaitSeconds != 0 {
		t.Errorf("WaitSeconds = %d then %d", submits[0].WaitSeconds, submits[1].WaitSeconds)
	}
	if issued := env.ids.Issued(); len(issued) != 2 {
		t.Errorf("issued ids = %v, want one run id and one key", issued)
	}
}

func TestWorkflow_CompressesAndRemovesTemp(t *testing.T) {
	env := newWorkflowEnv(t)
	env.fs.AddFileMB(galleryVideo, 40)

	got := env.workflow().Run(context.Background(), swing.Request{VideoPath: galleryVideo})

	if !got.Success {
		t.Fatalf("Run() failed: %v", got.Err)
	}
	if got.Compression == nil || got.Compression.Method != swing.MethodCompressed {
		t.Fatalf("Compression = %+v", got.Compression)
	}
	temp := got.Compression.OutputPath
	if !slices.Contains(env.fs.Removed(), temp) {
		t.Errorf("temp output %q not removed (removed %v)", temp, env.fs.Removed())
	}
	if !env.fs.Exists(galleryVideo) {
		t.Error("original video removed")
	}
	c := env.jobs.Submits()[0].Capture
	if !c.Compressed || c.CompressionRatio != 5 || c.OriginalSizeMB != 40 || c.UploadedSizeMB != 8 {
		t.Errorf("capture = %+v", c)
	}
	if data, ok := env.storage.Object(got.StorageKey); !ok || len(data) != 8*testutil.MB {
		t.Error("uploaded object is not the compressed output")
	}
}

func TestWorkflow_TargetAboveCeilingStillCompresses(t *testing.T) {
	env := newWorkflowEnv(t)
	env.fs.AddFileMB(galleryVideo, 18)

	got := env.workflow().Run(context.Background(), swing.Request{VideoPath: galleryVideo, TargetMB: 20})

	if !got.Success {
		t.Fatalf("Run() failed: %v", got.Err)
	}
	if got.Compression == nil || got.Compression.Method != swing.MethodCompressed {
		t.Fatalf("Compression = %+v, want an 18MB video compressed", got.Compression)
	}
	c := env.jobs.Submits()[0].Capture
	if c.UploadedSizeMB > swing.HardLimitMB {
		t.Errorf("uploaded %.1fMB, above the %.0fMB limit", c.UploadedSizeMB, swing.HardLimitMB)
	}
}

type flakyStorage struct {
	swing.Storage
	failures int
	err      error
}

func (s *flakyStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*swing.StoredObject, error) {
	if s.failures > 0 {
		s.failures--
		// Consume part of the body like a dropped connection would.
		io.CopyN(io.Discard, r, 10)
		return nil, s.err
	}
	return s.Storage.Upload(ctx, key, r, size, contentType)
}

func TestWorkflow_UploadRetryReopensFile(t *testing.T) {
	env := newWorkflowEnv(t)
	env.fs.AddFileMB(galleryVideo, 2)
	env.store = &flakyStorage{Storage: env.storage, failures: 1, err: errors.New("connection reset by peer")}
	env.opts.UploadRetry = swing.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

	got := env.workflow().Run(context.Background(), swing.Request{VideoPath: galleryVideo})

	if !got.Success {
		t.Fatalf("Run() failed: %v", got.Err)
	}
	if env.fs.Opens() != 2 {
		t.Errorf("Opens() = %d, want a fresh open per attempt", env.fs.Opens())
	}
	if data, ok := env.storage.Object(got.StorageKey); !ok || len(data) != 2*testutil.MB {
		t.Error("retried upload incomplete")
	}
}

func TestWorkflow_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(env *workflowEnv)
		wantStage swing.Stage
		wantKind  swing.ErrorKind
	}{
		{
			name:      "gallery video over ceiling",
			setup:     func(env *workflowEnv) { env.fs.AddFileMB(galleryVideo, 150) },
			wantStage: swing.StageValidate,
			wantKind:  swing.KindTooLarge,
		},
		{
			name:      "missing file",
			setup:     func(env *workflowEnv) {},
			wantStage: swing.StageValidate,
			wantKind:  swing.KindFileNotFound,
		},
		{
			name: "compression insufficient",
			setup: func(env *workflowEnv) {
				env.fs.AddFileMB(galleryVideo, 60)
				env.encoder.OutputSize = 12 * testutil.MB
			},
			wantStage: swing.StageCompress,
			wantKind:  swing.KindCompressionInsufficient,
		},
		{
			name: "encoder crash",
			setup: func(env *workflowEnv) {
				env.fs.AddFileMB(galleryVideo, 60)
				env.encoder.Err = errors.New("exit status 137")
			},
			wantStage: swing.StageCompress,
			wantKind:  swing.KindCompressionFailed,
		},
		{
			name: "signed out",
			setup: func(env *workflowEnv) {
				env.fs.AddFileMB(galleryVideo, 5)
				env.session = nil
			},
			wantStage: swing.StageUpload,
			wantKind:  swing.KindPermissionDenied,
		},
		{
			name: "storage rejects upload",
			setup: func(env *workflowEnv) {
				env.fs.AddFileMB(galleryVideo, 5)
				env.store = &flakyStorage{Storage: env.storage, failures: 5, err: errors.New("status 500: internal")}
			},
			wantStage: swing.StageUpload,
			wantKind:  swing.KindUploadFailed,
		},
		{
			name: "backend too large",
			setup: func(env *workflowEnv) {
				env.fs.AddFileMB(galleryVideo, 5)
				env.jobs.SubmitFunc = func(ctx context.Context, req *swing.SubmitRequest) (*swing.SubmitResponse, error) {
					return nil, errors.New("submit analysis: status 413: payload too large")
				}
			},
			wantStage: swing.StageSubmit,
			wantKind:  swing.KindTooLarge,
		},
		{
			name: "backend unclassified failure",
			setup: func(env *workflowEnv) {
				env.fs.AddFileMB(galleryVideo, 5)
				env.jobs.SubmitFunc = func(ctx context.Context, req *swing.SubmitRequest) (*swing.SubmitResponse, error) {
					return nil, errors.New("status 500: boom")
				}
			},
			wantStage: swing.StageSubmit,
			wantKind:  swing.KindAnalysisFailed,
		},
		{
			name: "no job id",
			setup: func(env *workflowEnv) {
				env.fs.AddFileMB(galleryVideo, 5)
				env.jobs.SubmitFunc = func(ctx context.Context, req *swing.SubmitRequest) (*swing.SubmitResponse, error) {
					return &swing.SubmitResponse{}, nil
				}
			},
			wantStage: swing.StageSubmit,
			wantKind:  swing.KindAnalysisFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newWorkflowEnv(t)
			tt.setup(env)

			got := env.workflow().Run(context.Background(), swing.Request{VideoPath: galleryVideo})

			if got.Success || got.Err == nil {
				t.Fatalf("Run() succeeded, want failure at %s", tt.wantStage)
			}
			if got.Stage != tt.wantStage || got.Err.Stage != tt.wantStage {
				t.Errorf("Stage = %s (err stage %s), want %s", got.Stage, got.Err.Stage, tt.wantStage)
			}
			if got.Err.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s (%v)", got.Err.Kind, tt.wantKind, got.Err)
			}
			for _, p := range env.fs.Removed() {
				if p == galleryVideo {
					t.Error("original video removed on failure")
				}
			}
			if got.Compression != nil && got.Compression.OutputPath != "" && got.Compression.OutputPath != galleryVideo {
				if env.fs.Exists(got.Compression.OutputPath) {
					t.Error("temp output left behind")
				}
			}
			run := env.lastRun(t)
			if run.Status != swing.RunFailed || run.ErrorKind != tt.wantKind || run.Stage != tt.wantStage {
				t.Errorf("run = %+v", run)
			}
		})
	}
}
