package swing

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// Stage is a step of the analysis workflow.
type Stage string

const (
	StageClassify Stage = "classify"
	StageValidate Stage = "validate"
	StageCompress Stage = "compress"
	StageUpload   Stage = "upload"
	StageSubmit   Stage = "submit"
	StageTrack    Stage = "track"
)

// SessionSource exposes the signed-in session, or nil when signed out.
type SessionSource interface {
	Session() *Session
}

// Request is one user-initiated analysis.
type Request struct {
	VideoPath string
	// Source overrides path classification when set.
	Source   VideoSource
	Context  SwingContext
	TargetMB float64
}

// WorkflowResult is the terminal outcome of Workflow.Run. On success either
// AnalysisID is set (Sync) or JobID must be tracked to completion.
type WorkflowResult struct {
	Success        bool
	RunID          string
	IdempotencyKey string
	Stage          Stage
	Source         VideoSource
	Validation     *ValidationResult
	Compression    *CompressionResult
	StorageKey     string
	JobID          string
	AnalysisID     string
	Sync           bool
	Err            *Error
}

// WorkflowOptions tune the workflow.
type WorkflowOptions struct {
	TargetMB float64
	// InlineWait is how long the backend may hold the submit request to
	// finish the analysis synchronously.
	InlineWait time.Duration
	// SubmitGrace is the extra client-side allowance on top of InlineWait.
	SubmitGrace   time.Duration
	StoragePrefix string
	UploadRetry   RetryPolicy
	SubmitRetry   RetryPolicy
}

// DefaultWorkflowOptions returns the production defaults.
func DefaultWorkflowOptions() WorkflowOptions {
	return WorkflowOptions{
		TargetMB:      DefaultTargetSizeMB,
		InlineWait:    25 * time.Second,
		SubmitGrace:   5 * time.Second,
		StoragePrefix: "swings",
		UploadRetry:   NoRetry(),
		SubmitRetry:   NoRetry(),
	}
}

// Workflow sequences classify, validate, compress, upload and submit.
// Stages run strictly in order and the first failure ends the run.
type Workflow struct {
	validator  *Validator
	compressor *Compressor
	fs         FileSystem
	storage    Storage
	jobs       JobService
	sessions   SessionSource
	cache      *Cache
	runs       RunLog
	clock      Clock
	idgen      IDGenerator
	logger     Logger
	opts       WorkflowOptions
}

// WorkflowDeps groups the collaborators of a Workflow. Cache and Runs may be nil.
type WorkflowDeps struct {
	Validator  *Validator
	Compressor *Compressor
	FS         FileSystem
	Storage    Storage
	Jobs       JobService
	Sessions   SessionSource
	Cache      *Cache
	Runs       RunLog
	Clock      Clock
	IDGen      IDGenerator
	Logger     Logger
}

// NewWorkflow creates a Workflow.
func NewWorkflow(deps WorkflowDeps, opts WorkflowOptions) *Workflow {
	logger := deps.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Workflow{
		validator:  deps.Validator,
		compressor: deps.Compressor,
		fs:         deps.FS,
		storage:    deps.Storage,
		jobs:       deps.Jobs,
		sessions:   deps.Sessions,
		cache:      deps.Cache,
		runs:       deps.Runs,
		clock:      deps.Clock,
		idgen:      deps.IDGen,
		logger:     logger,
		opts:       opts,
	}
}

// Run executes the workflow for req. It never returns a raw error: failures
// are reported through WorkflowResult.Err with the failing Stage.
func (w *Workflow) Run(ctx context.Context, req Request) *WorkflowResult {
	result := &WorkflowResult{
		RunID:          w.idgen.New(),
		IdempotencyKey: w.idgen.New(),
	}
	run := &Run{
		ID:             result.RunID,
		IdempotencyKey: result.IdempotencyKey,
		VideoPath:      req.VideoPath,
		Status:         RunRunning,
		StartedAt:      w.clock.Now(),
	}
	w.startRun(run)
	defer w.finishRun(run, result)

	target := req.TargetMB
	if target <= 0 {
		target = w.opts.TargetMB
	}
	target = EffectiveTargetMB(target)

	// Classify
	result.Stage = StageClassify
	result.Source = req.Source
	if result.Source == "" {
		result.Source = ClassifySource(req.VideoPath)
	}
	run.Source = result.Source
	w.logger.Info("analysis started", "run_id", result.RunID, "path", req.VideoPath, "source", string(result.Source))

	// Validate
	result.Stage = StageValidate
	policy := GalleryPolicy()
	if result.Source == SourceCameraRecorded {
		policy = RecordedPolicy()
	}
	policy.TargetMB = target
	validation := w.validator.Validate(ctx, req.VideoPath, policy)
	result.Validation = validation
	if !validation.CanProceed {
		kind := KindValidationFailed
		msg := "video failed validation"
		if issue := validation.FirstError(); issue != nil {
			msg = issue.Message
			if issue.Kind != "" {
				kind = issue.Kind
			}
		}
		return w.fail(result, &Error{Kind: kind, Err: errors.New(msg)})
	}

	// Compress
	uploadPath := req.VideoPath
	uploadSizeMB := validation.Metadata.SizeMB
	if validation.NeedsCompression {
		result.Stage = StageCompress
		compression, err := w.compressor.Compress(ctx, req.VideoPath, CompressOptions{TargetMB: target})
		result.Compression = compression
		if compression != nil && compression.OutputPath != "" && compression.OutputPath != req.VideoPath {
			defer w.fs.Remove(compression.OutputPath)
		}
		if err != nil {
			return w.fail(result, defaultKind(Classify(err), KindCompressionFailed))
		}
		uploadPath = compression.OutputPath
		uploadSizeMB = compression.CompressedSizeMB
	}

	// Upload
	result.Stage = StageUpload
	session := w.session()
	if session == nil {
		return w.fail(result, NewError(KindPermissionDenied, "not signed in"))
	}
	key := w.storageKey(session.User.ID, result.RunID, uploadPath)
	obj, err := w.upload(ctx, key, uploadPath)
	if err != nil {
		return w.fail(result, defaultKind(Classify(err), KindUploadFailed))
	}
	result.StorageKey = obj.Key

	// Submit
	result.Stage = StageSubmit
	submit := &SubmitRequest{
		VideoPath:      obj.Key,
		Context:        req.Context,
		IdempotencyKey: result.IdempotencyKey,
		Capture: CaptureMetadata{
			Source:           result.Source,
			OriginalSizeMB:   validation.Metadata.SizeMB,
			UploadedSizeMB:   uploadSizeMB,
			Compressed:       result.Compression != nil && result.Compression.Method == MethodCompressed,
			CompressionRatio: 1.0,
		},
	}
	if result.Compression != nil {
		submit.Capture.CompressionRatio = result.Compression.CompressionRatio
	}

	resp, err := w.submit(ctx, submit)
	if err != nil {
		return w.fail(result, defaultKind(Classify(err), KindAnalysisFailed))
	}

	result.JobID = resp.JobID
	result.AnalysisID = resp.AnalysisID
	result.Sync = resp.AnalysisID != ""
	result.Success = true

	if result.Sync && w.cache != nil {
		if err := w.cache.OnAnalysisCreated(session.User.ID); err != nil {
			w.logger.Warn("cache invalidation failed", "error", err)
		}
	}

	w.logger.Info("analysis submitted",
		"run_id", result.RunID,
		"job_id", result.JobID,
		"analysis_id", result.AnalysisID,
		"sync", result.Sync,
	)
	return result
}

// upload opens the file fresh for every attempt so retries resend it whole.
func (w *Workflow) upload(ctx context.Context, key, path string) (*StoredObject, error) {
	info, err := w.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading upload size: %w", err)
	}

	var obj *StoredObject
	err = w.opts.UploadRetry.Do(ctx, w.logger, StageUpload, func() error {
		f, err := w.fs.Open(path)
		if err != nil {
			return fmt.Errorf("opening video for upload: %w", err)
		}
		defer f.Close()

		obj, err = w.storage.Upload(ctx, key, f, info.Size(), contentType(path))
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.logger.Debug("video uploaded", "key", obj.Key, "size", obj.Size)
	return obj, nil
}

// submit asks the backend to run the analysis inline. If the client-side
// deadline passes first, the same idempotency key is resubmitted without
// waiting to recover the job id of the submission already in flight.
func (w *Workflow) submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	var resp *SubmitResponse
	err := w.opts.SubmitRetry.Do(ctx, w.logger, StageSubmit, func() error {
		inline := *req
		inline.WaitSeconds = int(w.opts.InlineWait / time.Second)

		deadline := w.opts.InlineWait + w.opts.SubmitGrace
		inlineCtx, cancel := context.WithTimeout(ctx, deadline)
		r, err := w.jobs.SubmitAnalysis(inlineCtx, &inline)
		cancel()
		if err == nil {
			resp = r
			return nil
		}
		if ctx.Err() != nil || !errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		w.logger.Info("inline analysis window elapsed, switching to async", "idempotency_key", req.IdempotencyKey)
		async := *req
		async.WaitSeconds = 0
		r, err = w.jobs.SubmitAnalysis(ctx, &async)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.JobID == "" {
		return nil, NewError(KindAnalysisFailed, "analysis submission returned no job id")
	}
	return resp, nil
}

func (w *Workflow) session() *Session {
	if w.sessions == nil {
		return nil
	}
	return w.sessions.Session()
}

func (w *Workflow) storageKey(userID, runID, path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		ext = ".mp4"
	}
	name := fmt.Sprintf("%s_%s%s", w.clock.Now().UTC().Format("20060102T150405Z"), runID, ext)
	parts := []string{userID, name}
	if w.opts.StoragePrefix != "" {
		parts = append([]string{w.opts.StoragePrefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (w *Workflow) fail(result *WorkflowResult, err *Error) *WorkflowResult {
	err.Stage = result.Stage
	result.Success = false
	result.Err = err
	w.logger.Error("analysis failed",
		"run_id", result.RunID,
		"stage", string(result.Stage),
		"kind", string(err.Kind),
		"error", err.Err,
	)
	return result
}

func (w *Workflow) startRun(run *Run) {
	if w.runs == nil {
		return
	}
	if err := w.runs.StartRun(run); err != nil {
		w.logger.Warn("recording run start failed", "run_id", run.ID, "error", err)
	}
}

func (w *Workflow) finishRun(run *Run, result *WorkflowResult) {
	if w.runs == nil {
		return
	}
	now := w.clock.Now()
	run.FinishedAt = &now
	run.Stage = result.Stage
	run.JobID = result.JobID
	run.AnalysisID = result.AnalysisID
	switch {
	case !result.Success:
		run.Status = RunFailed
		if result.Err != nil {
			run.ErrorKind = result.Err.Kind
		}
	case result.Sync:
		run.Status = RunCompleted
	default:
		run.Status = RunSubmitted
	}
	if err := w.runs.FinishRun(run); err != nil {
		w.logger.Warn("recording run finish failed", "run_id", run.ID, "error", err)
	}
}

// defaultKind replaces an unknown classification with the stage's own kind.
func defaultKind(err *Error, kind ErrorKind) *Error {
	if err.Kind == KindUnknown {
		return &Error{Kind: kind, Err: err.Err}
	}
	return err
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "video/mp4"
}
