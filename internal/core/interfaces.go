// Package core provides the port interfaces between the service layer and the
// data/adapter layers of the inspection pipeline.
package core

import (
	"context"

	"github.com/sentinel-aoi/aoi-api/internal/domain/model"
)

// This file contains repository and collaborator interface definitions (ports
// in hexagonal architecture). Service implementations should depend on these
// interfaces, not concrete implementations.

// EnqueueRequest groups the parameters for JobQueue.Enqueue.
type EnqueueRequest struct {
	Filename    string
	ArtifactRef string
}

// JobQueue is the durable FIFO channel carrying job descriptors from
// ingestion to workers, and the sole authority for transient task state until
// a durable record is written.
type JobQueue interface {
	// Enqueue issues a new job ID, stamps the descriptor with the submission
	// time, records the pending state, and appends it to the queue.
	Enqueue(ctx context.Context, req EnqueueRequest) (string, error)
	// Dequeue blocks until a descriptor is available or the context is
	// cancelled. Each descriptor is delivered to exactly one caller.
	Dequeue(ctx context.Context) (*model.JobDescriptor, error)
	// SetState transitions a job's transient state. Only the worker owning the
	// job may call this.
	SetState(ctx context.Context, jobID string, state model.TaskState, errMsg string) error
	// GetState returns the transient tracking entry, or nil if the tracker has
	// no entry for the job (unknown or already garbage-collected).
	GetState(ctx context.Context, jobID string) (*model.TaskStatus, error)
	// StashResult retains detections in the transient tracker as a best-effort
	// fallback when the durable write failed after successful inference.
	StashResult(ctx context.Context, jobID string, detections []model.Detection) error
}

// InspectionRepository defines the interface for durable inspection records.
type InspectionRepository interface {
	// Upsert is idempotent on JobID: a duplicate completion attempt must not
	// error or create a second row.
	Upsert(ctx context.Context, rec *model.InspectionRecord) error
	GetByJobID(ctx context.Context, jobID string) (*model.InspectionRecord, error)
}

// PutRequest groups the parameters for BlobStore.Put.
type PutRequest struct {
	Name        string
	ContentType string
	Data        []byte
}

// BlobStore is the external blob storage collaborator holding raw images,
// addressed by opaque path strings.
type BlobStore interface {
	Put(ctx context.Context, req PutRequest) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
}

// Detector is the black-box inference collaborator. It receives the raw
// image bytes of an already decode-checked artifact.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]model.Detection, error)
}
