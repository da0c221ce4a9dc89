// Package detectrunner provides the worker pool that drains the job queue and
// executes defect detection on submitted frames.
package detectrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	// registered so DecodeConfig recognizes the formats cameras produce
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/sync/errgroup"

	"github.com/sentinel-aoi/aoi-api/internal/core"
	"github.com/sentinel-aoi/aoi-api/internal/data"
	"github.com/sentinel-aoi/aoi-api/internal/domain/job"
	"github.com/sentinel-aoi/aoi-api/internal/domain/model"
	apperrors "github.com/sentinel-aoi/aoi-api/internal/errors"
)

// dequeueRetryDelay backs off the worker after a transient queue error so a
// flapping broker does not spin the pool.
const dequeueRetryDelay = time.Second

// RunnerOptions configures the detect runner adapter.
type RunnerOptions struct {
	Logger *slog.Logger

	Queue       core.JobQueue
	Blobs       core.BlobStore
	Detector    core.Detector
	Inspections core.InspectionRepository

	// Job processing settings
	Concurrency        int           // number of worker goroutines; defaults to 1
	StalenessThreshold time.Duration // queue latency beyond which a job is dropped; defaults to 5s
	TimeLimit          time.Duration // hard per-job execution budget; defaults to 60s

	// Clock is optional and exists for tests.
	Clock data.TimeProvider
}

// Runner pulls job descriptors and executes detection with admission control
// and a hard per-job time budget.
type Runner struct {
	queue       core.JobQueue
	blobs       core.BlobStore
	detector    core.Detector
	inspections core.InspectionRepository
	policy      *job.StalenessPolicy
	logger      *slog.Logger
	clock       data.TimeProvider
	workers     int
	timeLimit   time.Duration
}

// NewRunner validates dependencies and constructs a detect runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if opts.Detector == nil {
		return nil, errors.New("detector is required")
	}
	if opts.Inspections == nil {
		return nil, errors.New("inspection repository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	threshold := opts.StalenessThreshold
	if threshold <= 0 {
		threshold = 5 * time.Second
	}
	limit := opts.TimeLimit
	if limit <= 0 {
		limit = 60 * time.Second
	}

	policy, err := job.NewStalenessPolicy(threshold)
	if err != nil {
		return nil, fmt.Errorf("staleness policy: %w", err)
	}

	return &Runner{
		queue:       opts.Queue,
		blobs:       opts.Blobs,
		detector:    opts.Detector,
		inspections: opts.Inspections,
		policy:      policy,
		logger:      logger,
		clock:       clock,
		workers:     workers,
		timeLimit:   limit,
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting detect runner",
		"workers", r.workers,
		"staleness_threshold", r.policy.Threshold(),
		"time_limit", r.timeLimit,
	)

	group, gctx := errgroup.WithContext(ctx)
	for range r.workers {
		group.Go(func() error { return r.workerLoop(gctx) })
	}
	return group.Wait()
}

func (r *Runner) workerLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		desc, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.ErrorContext(ctx, "dequeue error", "error", err)
			if !r.waitForRetry(ctx) {
				return nil
			}
			continue
		}
		if desc == nil {
			continue
		}
		r.processJob(ctx, desc)
	}
	return ctx.Err()
}

func (r *Runner) waitForRetry(ctx context.Context) bool {
	timer := time.NewTimer(dequeueRetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// processJob runs one descriptor end to end. Job outcomes never fail the
// worker loop; a broken frame must not take the pool down with it.
func (r *Runner) processJob(ctx context.Context, desc *model.JobDescriptor) {
	logger := r.logger.With("job_id", desc.JobID, "filename", desc.Filename)

	decision := r.policy.Evaluate(desc.SubmittedAt, r.clock.Now())
	if decision.Drop {
		logger.WarnContext(ctx, "dropping stale job", "queue_latency", decision.Latency)
		r.setState(ctx, logger, desc.JobID, model.TaskStateDropped, "stale")
		return
	}

	r.setState(ctx, logger, desc.JobID, model.TaskStateRunning, "")

	runCtx, cancel := context.WithTimeout(ctx, r.timeLimit)
	defer cancel()

	start := r.clock.Now()
	detections, err := r.executeJob(runCtx, desc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = apperrors.Wrapf(err, apperrors.ErrCodeTimeout,
				"job exceeded time budget of %s", r.timeLimit)
		}
		logger.ErrorContext(ctx, "job failed",
			"error", err,
			"duration", time.Since(start),
		)
		r.setState(ctx, logger, desc.JobID, model.TaskStateFailed, apperrors.Reason(err))
		return
	}

	r.persistResult(ctx, logger, desc, detections)
	r.setState(ctx, logger, desc.JobID, model.TaskStateSucceeded, "")
	logger.InfoContext(ctx, "job succeeded",
		"detections", len(detections),
		"duration", time.Since(start),
	)
}

// executeJob fetches, decode-checks, and infers on the artifact under the
// caller's budget context.
func (r *Runner) executeJob(ctx context.Context, desc *model.JobDescriptor) ([]model.Detection, error) {
	raw, err := r.blobs.Get(ctx, desc.ArtifactRef)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeStorageUnavailable,
			"fetch artifact %s", desc.ArtifactRef)
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDecode, "artifact is not a decodable image")
	}

	detections, err := r.detector.Detect(ctx, raw)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInference, "run detection")
	}
	if err := model.ValidateDetections(detections); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInference, "detector returned invalid detections")
	}
	return detections, nil
}

// persistResult writes the durable record. A write failure is logged and
// swallowed: inference already succeeded and the detections are stashed in the
// transient tracker so polling can still surface them until retention expires.
func (r *Runner) persistResult(
	ctx context.Context,
	logger *slog.Logger,
	desc *model.JobDescriptor,
	detections []model.Detection,
) {
	if detections == nil {
		detections = []model.Detection{}
	}
	payload, err := json.Marshal(detections)
	if err != nil {
		logger.ErrorContext(ctx, "marshal detections", "error", err)
		payload = []byte("[]")
	}

	rec := &model.InspectionRecord{
		JobID:       desc.JobID,
		Filename:    desc.Filename,
		ArtifactRef: desc.ArtifactRef,
		Detections:  payload,
	}
	if err := r.inspections.Upsert(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "persist inspection record", "error", err)
		if stashErr := r.queue.StashResult(ctx, desc.JobID, detections); stashErr != nil {
			logger.ErrorContext(ctx, "stash result fallback", "error", stashErr)
		}
	}
}

func (r *Runner) setState(
	ctx context.Context,
	logger *slog.Logger,
	jobID string,
	state model.TaskState,
	reason string,
) {
	if err := r.queue.SetState(ctx, jobID, state, reason); err != nil {
		logger.ErrorContext(ctx, "set task state", "state", state, "error", err)
	}
}
