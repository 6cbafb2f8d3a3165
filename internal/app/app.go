package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"myswing/internal/backend"
	"myswing/internal/config"
	"myswing/internal/credentials"
	"myswing/internal/encoder"
	"myswing/internal/fs"
	"myswing/internal/kvstore"
	"myswing/internal/realtime"
	"myswing/internal/storage"
	"myswing/internal/swing"
)

// App is the application layer between the CLI and the swing core.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI input, and manages the local store lifecycle on Close.
type App struct {
	cfg        *config.Config
	store      kvstore.Store
	client     *backend.Client
	fsys       *fs.OSFileSystem
	validator  *swing.Validator
	compressor *swing.Compressor
	cache      *swing.Cache
	workflow   *swing.Workflow
	tracker    *swing.Tracker
	library    *swing.Library
	logger     swing.Logger
	op         *Operation
	logFile    *os.File
}

// Options tune NewApp beyond the config file.
type Options struct {
	// Operation identifies the CLI command being run (e.g. "Analyze").
	Operation string
	// Verbose mirrors debug logs to stderr.
	Verbose bool
	// Runner executes ffmpeg and ffprobe. Nil uses os/exec.
	Runner encoder.Runner
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("backend url is not configured")
	}

	clock := swing.RealClock{}
	opID := clock.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	store, err := kvstore.NewStoreFromConfig(cfg.KVStore, cfg.DeviceID, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating kv store: %w", err)
	}

	// fail releases what was opened so far.
	fail := func(err error) (*App, error) {
		store.Close()
		logFile.Close()
		return nil, err
	}

	sessions, err := credentials.NewSessionStoreFromConfig(cfg.Credentials)
	if err != nil {
		return fail(fmt.Errorf("creating session store: %w", err))
	}
	client := backend.NewClient(cfg.Backend, sessions, clock, logger)
	if _, err := client.Restore(); err != nil {
		// A corrupt or foreign session file only costs a sign-in.
		logger.Warn("session not restored", "error", err)
	}

	objects, err := storage.NewStorageFromConfig(ctx, cfg.Storage, client, clock)
	if err != nil {
		return fail(fmt.Errorf("creating storage: %w", err))
	}

	runner := opts.Runner
	if runner == nil {
		runner = encoder.NewCommandRunner()
	}
	enc, err := encoder.NewEncoderFromConfig(cfg.Encoder, runner)
	if err != nil {
		return fail(fmt.Errorf("creating encoder: %w", err))
	}
	prober := encoder.NewProberFromConfig(cfg.Encoder, opts.Runner)

	wsURL := cfg.Backend.RealtimeURL
	if wsURL == "" {
		wsURL, err = realtime.EndpointFromBackend(cfg.Backend.URL, cfg.Backend.AnonKey)
		if err != nil {
			return fail(fmt.Errorf("deriving realtime endpoint: %w", err))
		}
	}
	push := realtime.NewClient(wsURL, client, logger)

	fsys := fs.NewOSFileSystem(cfg.Encoder.TempDir)
	cache := swing.NewCache(store, clock, logger)
	validator := swing.NewValidator(fsys, prober, logger)
	compressor := swing.NewCompressor(fsys, enc, logger)

	retry := retryPolicy(cfg.Retry)
	wfOpts := swing.DefaultWorkflowOptions()
	if cfg.Workflow.TargetMB > 0 {
		wfOpts.TargetMB = cfg.Workflow.TargetMB
	}
	if cfg.Workflow.InlineWaitSeconds > 0 {
		wfOpts.InlineWait = time.Duration(cfg.Workflow.InlineWaitSeconds) * time.Second
	}
	if cfg.Workflow.StoragePrefix != "" {
		wfOpts.StoragePrefix = cfg.Workflow.StoragePrefix
	}
	wfOpts.UploadRetry = retry
	wfOpts.SubmitRetry = retry

	workflow := swing.NewWorkflow(swing.WorkflowDeps{
		Validator:  validator,
		Compressor: compressor,
		FS:         fsys,
		Storage:    objects,
		Jobs:       client,
		Sessions:   client,
		Cache:      cache,
		Runs:       store,
		Clock:      clock,
		IDGen:      swing.UUIDGenerator{},
		Logger:     logger,
	}, wfOpts)

	trOpts := swing.DefaultTrackerOptions()
	if cfg.Workflow.PollIntervalSeconds > 0 {
		trOpts.PollInterval = time.Duration(cfg.Workflow.PollIntervalSeconds) * time.Second
	}
	trOpts.SubscribeRetry = retry
	tracker := swing.NewTracker(swing.TrackerDeps{
		Jobs:     client,
		Realtime: push,
		Cache:    cache,
		Sessions: client,
		Logger:   logger,
	}, trOpts)

	library := swing.NewLibrary(swing.LibraryDeps{
		Analyses: client,
		Profiles: client,
		Stats:    client,
		Weather:  backend.NewWeatherClient(cfg.Weather.URL),
		Storage:  objects,
		Sessions: client,
		Cache:    cache,
		Clock:    clock,
		Logger:   logger,
	})

	return &App{
		cfg:        cfg,
		store:      store,
		client:     client,
		fsys:       fsys,
		validator:  validator,
		compressor: compressor,
		cache:      cache,
		workflow:   workflow,
		tracker:    tracker,
		library:    library,
		logger:     logger,
		op:         NewOperation(opts.Operation, "", clock.Now()),
		logFile:    logFile,
	}, nil
}

func retryPolicy(cfg config.RetryConfig) swing.RetryPolicy {
	return swing.RetryPolicy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: time.Duration(cfg.InitialIntervalMS) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.MaxIntervalMS) * time.Millisecond,
	}
}

// SignUp registers a new account and signs it in.
func (a *App) SignUp(ctx context.Context, email, password string, remember bool) (*swing.Session, error) {
	a.client.SetRemember(remember)
	s, err := a.client.SignUp(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, swing.Classify(err)
	}
	return s, nil
}

// SignIn signs in with a password. With remember set the session is kept
// encrypted on disk for later commands.
func (a *App) SignIn(ctx context.Context, email, password string, remember bool) (*swing.Session, error) {
	a.client.SetRemember(remember)
	s, err := a.client.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, swing.Classify(err)
	}
	return s, nil
}

// SignOut ends the session and clears the user's cached data.
func (a *App) SignOut(ctx context.Context) error {
	s := a.client.Session()
	if s == nil {
		return nil
	}
	if err := a.cache.InvalidateUserData(s.User.ID); err != nil {
		a.logger.Warn("cache invalidation failed", "error", err)
	}
	if err := a.client.SignOut(ctx); err != nil {
		return swing.Classify(err)
	}
	return nil
}

// Session returns the signed-in session, or nil.
func (a *App) Session() *swing.Session {
	return a.client.Session()
}

// Analyze runs the analysis workflow for one video.
func (a *App) Analyze(ctx context.Context, req swing.Request) *swing.WorkflowResult {
	a.op.Parameters = req.VideoPath
	result := a.workflow.Run(ctx, req)
	if result.Err != nil {
		a.op.Fail(result.Err)
	}
	return result
}

// AwaitJob blocks until jobID is terminal and returns its analysis.
func (a *App) AwaitJob(ctx context.Context, jobID string) (*swing.Analysis, error) {
	job, err := a.tracker.Await(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return a.GetAnalysis(ctx, job.AnalysisID)
}

// TrackJob follows jobID in the background.
func (a *App) TrackJob(ctx context.Context, jobID string, h swing.Handlers) *swing.Watch {
	return a.tracker.Track(ctx, jobID, h)
}

// Validate checks a video against the gallery or recorded policy.
func (a *App) Validate(ctx context.Context, path string, source swing.VideoSource) *swing.ValidationResult {
	if source == "" {
		source = swing.ClassifySource(path)
	}
	if source == swing.SourceCameraRecorded {
		return a.validator.ValidateRecorded(ctx, path)
	}
	return a.validator.ValidateGallery(ctx, path)
}

// ScanEntry is the validation outcome of one video found by Scan.
type ScanEntry struct {
	Path       string
	Source     swing.VideoSource
	Validation *swing.ValidationResult
}

// Scan finds the videos under dir and validates each of them.
func (a *App) Scan(ctx context.Context, dir string, recursive bool) ([]*ScanEntry, error) {
	paths, err := a.fsys.FindVideos(dir, recursive)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	entries := make([]*ScanEntry, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		src := swing.ClassifySource(p)
		entries = append(entries, &ScanEntry{Path: p, Source: src, Validation: a.Validate(ctx, p, src)})
	}
	return entries, nil
}

// ListAnalyses returns the user's most recent analyses.
func (a *App) ListAnalyses(ctx context.Context, limit int) ([]*swing.Analysis, error) {
	list, err := a.library.ListAnalyses(ctx, limit)
	return list, a.check(err)
}

// GetAnalysis returns one analysis owned by the user.
func (a *App) GetAnalysis(ctx context.Context, id string) (*swing.Analysis, error) {
	an, err := a.library.GetAnalysis(ctx, id)
	return an, a.check(err)
}

// DeleteAnalysis removes an analysis and its stored video.
func (a *App) DeleteAnalysis(ctx context.Context, id string) error {
	return a.check(a.library.DeleteAnalysis(ctx, id))
}

// PlaybackURL returns a fresh signed URL for an analysis video.
func (a *App) PlaybackURL(ctx context.Context, id string) (string, error) {
	u, err := a.library.PlaybackURL(ctx, id)
	return u, a.check(err)
}

// Profile returns the user's profile.
func (a *App) Profile(ctx context.Context) (*swing.Profile, error) {
	p, err := a.library.Profile(ctx)
	return p, a.check(err)
}

// UpdateProfile applies update to the user's profile.
func (a *App) UpdateProfile(ctx context.Context, update *swing.ProfileUpdate) (*swing.Profile, error) {
	p, err := a.library.UpdateProfile(ctx, update)
	return p, a.check(err)
}

// Dashboard loads the home summary. loc may be nil.
func (a *App) Dashboard(ctx context.Context, loc *swing.Location) (*swing.Dashboard, error) {
	d, err := a.library.Dashboard(ctx, loc)
	return d, a.check(err)
}

// Runs returns the most recent local workflow runs.
func (a *App) Runs(limit int) ([]*swing.Run, error) {
	runs, err := a.store.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// ClearCache drops every cached entry.
func (a *App) ClearCache() error {
	if err := a.cache.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// check classifies err for display and records it on the operation.
func (a *App) check(err error) error {
	if err == nil {
		return nil
	}
	a.op.Fail(err)
	return swing.Classify(err)
}

// Finish records the command outcome before Close.
func (a *App) Finish(err error) {
	a.op.Fail(err)
}

// Close logs the operation outcome and closes all resources.
func (a *App) Close() error {
	var firstErr error
	if a.op != nil {
		a.logger.Info("operation finished",
			"operation", a.op.Name,
			"parameters", a.op.Parameters,
			"status", a.op.Status,
			"duration", time.Since(a.op.StartedAt).Truncate(time.Millisecond),
		)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing kv store: %w", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil && !errors.Is(err, os.ErrClosed) {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
