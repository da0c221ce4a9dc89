// Package service contains the business logic of the inspection pipeline:
// frame ingestion and status reporting.
package service

import (
	"context"
	"errors"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/sentinel-aoi/aoi-api/internal/core"
	apperrors "github.com/sentinel-aoi/aoi-api/internal/errors"
)

// IngestServiceOptions groups dependencies for IngestService.
type IngestServiceOptions struct {
	Blobs  core.BlobStore // Required: artifact storage
	Queue  core.JobQueue  // Required: job queue
	Logger *slog.Logger   // Optional: structured logger
}

// IngestService accepts submitted frames, stores the raw bytes, and enqueues
// a detection job. Submit never blocks on inference.
type IngestService struct {
	blobs  core.BlobStore
	queue  core.JobQueue
	logger *slog.Logger
}

// NewIngestService constructs a new IngestService.
func NewIngestService(opts IngestServiceOptions) (*IngestService, error) {
	if opts.Blobs == nil {
		return nil, errors.New("BlobStore is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("JobQueue is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		blobs:  opts.Blobs,
		queue:  opts.Queue,
		logger: logger.With("component", "ingest_service"),
	}, nil
}

// SubmitRequest carries one uploaded frame.
type SubmitRequest struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmitResult reports the accepted job back to the submitter. Filename is
// the stored object name, not the uploaded one, so the caller can correlate
// the artifact later.
type SubmitResult struct {
	Status   string `json:"status"`
	TaskID   string `json:"task_id"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// Acknowledgement strings for a freshly accepted job. "received" only says
// the job entered the queue, not that a worker has seen it.
const (
	statusReceived  = "received"
	messageReceived = "Image queued for processing"
)

// Submit stores the frame and enqueues a detection job. The artifact is
// written exactly once; the object name is a fresh UUID so concurrent uploads
// of identically named files never collide.
func (s *IngestService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if len(req.Data) == 0 {
		return nil, apperrors.Validation("empty file")
	}

	objectName := uuid.NewString() + path.Ext(req.Filename)
	artifactRef, err := s.blobs.Put(ctx, core.PutRequest{
		Name:        objectName,
		ContentType: req.ContentType,
		Data:        req.Data,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "store artifact", "object", objectName, "error", err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageUnavailable, "store artifact")
	}

	jobID, err := s.queue.Enqueue(ctx, core.EnqueueRequest{
		Filename:    req.Filename,
		ArtifactRef: artifactRef,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "enqueue job", "artifact_ref", artifactRef, "error", err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeIngestion, "enqueue job")
	}

	s.logger.InfoContext(ctx, "job accepted",
		"job_id", jobID,
		"filename", req.Filename,
		"artifact_ref", artifactRef,
		"bytes", len(req.Data),
	)
	return &SubmitResult{
		Status:   statusReceived,
		TaskID:   jobID,
		Filename: objectName,
		Message:  messageReceived,
	}, nil
}
