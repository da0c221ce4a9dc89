package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sentinel-aoi/aoi-api/internal/core"
	"github.com/sentinel-aoi/aoi-api/internal/domain/model"
	apperrors "github.com/sentinel-aoi/aoi-api/internal/errors"
)

// StatusServiceOptions groups dependencies for StatusService.
type StatusServiceOptions struct {
	Inspections core.InspectionRepository // Required: durable result store
	Queue       core.JobQueue             // Required: transient state tracker
	Logger      *slog.Logger              // Optional: structured logger
}

// StatusService answers polling requests without ever blocking on job
// execution. The durable store is authoritative for completed work; the
// transient tracker covers everything in flight.
type StatusService struct {
	inspections core.InspectionRepository
	queue       core.JobQueue
	logger      *slog.Logger
}

// NewStatusService constructs a new StatusService.
func NewStatusService(opts StatusServiceOptions) (*StatusService, error) {
	if opts.Inspections == nil {
		return nil, errors.New("InspectionRepository is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("JobQueue is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusService{
		inspections: opts.Inspections,
		queue:       opts.Queue,
		logger:      logger.With("component", "status_service"),
	}, nil
}

// Poll statuses. Every answer a client can see is one of these four.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusDropped    = "dropped"
)

// StatusReport is one polling answer. Result is omitzero rather than
// omitempty: a completed job with zero defects must still serialize
// "result": [], while non-completed answers leave the slice nil and the key
// absent.
type StatusReport struct {
	Status   string            `json:"status"`
	Filename string            `json:"filename,omitempty"`
	Error    string            `json:"error,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Result   []model.Detection `json:"result,omitzero"`
}

// GetStatus resolves the current state of a job into one of the four poll
// statuses. A durable record always reads as completed. Otherwise the
// transient tracker decides: pending, running, and jobs the tracker has never
// heard of (or has already garbage-collected) all read as processing; a
// succeeded job whose durable write was lost answers from the stashed copy,
// or stays processing until a record appears.
func (s *StatusService) GetStatus(ctx context.Context, jobID string) (*StatusReport, error) {
	if jobID == "" {
		return nil, apperrors.Validation("job id is required")
	}

	rec, err := s.inspections.GetByJobID(ctx, jobID)
	switch {
	case err == nil:
		detections, decErr := rec.DecodeDetections()
		if decErr != nil {
			return nil, apperrors.Wrap(decErr, apperrors.ErrCodeInternal, "decode stored detections")
		}
		return &StatusReport{
			Status:   StatusCompleted,
			Filename: rec.Filename,
			Result:   detections,
		}, nil
	case errors.Is(err, model.ErrInspectionNotFound):
		// fall through to the transient tracker
	default:
		return nil, err
	}

	state, err := s.queue.GetState(ctx, jobID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "read task state")
	}
	if state == nil {
		return &StatusReport{Status: StatusProcessing}, nil
	}

	switch state.State {
	case model.TaskStateSucceeded:
		if state.Result == nil {
			// Durable write has not landed and nothing was stashed; keep the
			// caller polling.
			return &StatusReport{Status: StatusProcessing}, nil
		}
		return &StatusReport{
			Status:   StatusCompleted,
			Filename: state.Filename,
			Result:   state.Result,
		}, nil
	case model.TaskStateFailed:
		return &StatusReport{Status: StatusFailed, Error: state.Error}, nil
	case model.TaskStateDropped:
		return &StatusReport{Status: StatusDropped, Reason: state.Error}, nil
	default:
		return &StatusReport{Status: StatusProcessing}, nil
	}
}
