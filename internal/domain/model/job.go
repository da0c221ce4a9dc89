// Package model defines the core data types and structures used throughout the inspection pipeline.
package model

import (
	"errors"
	"strings"
	"time"
)

// TaskState represents the transient lifecycle state of a detection job.
type TaskState string

const (
	// TaskStatePending indicates a job is queued and waiting for a worker.
	TaskStatePending TaskState = "pending"
	// TaskStateRunning indicates a job is currently being processed.
	TaskStateRunning TaskState = "running"
	// TaskStateSucceeded indicates inference finished and a record was (or was
	// attempted to be) written.
	TaskStateSucceeded TaskState = "succeeded"
	// TaskStateFailed indicates a job failed terminally; no retry is scheduled.
	TaskStateFailed TaskState = "failed"
	// TaskStateDropped indicates the job was discarded by admission control
	// before inference ran. Distinct from failed: dropping is policy, not an error.
	TaskStateDropped TaskState = "dropped"
)

// Valid returns true if the TaskState is valid.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStatePending, TaskStateRunning, TaskStateSucceeded, TaskStateFailed, TaskStateDropped:
		return true
	}
	return false
}

// Terminal returns true if the state can no longer change.
func (s TaskState) Terminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed || s == TaskStateDropped
}

// JobDescriptor is one unit of submitted work. It is created by ingestion at
// enqueue time, consumed exactly once by a single worker, and discarded after
// one worker pass regardless of outcome.
type JobDescriptor struct {
	JobID       string    `json:"job_id"`
	Filename    string    `json:"filename"`
	ArtifactRef string    `json:"artifact_ref"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Validate validates the JobDescriptor fields.
func (d *JobDescriptor) Validate() error {
	if strings.TrimSpace(d.JobID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(d.ArtifactRef) == "" {
		return errors.New("artifact ref is required")
	}
	if d.SubmittedAt.IsZero() {
		return errors.New("submitted at is required")
	}
	return nil
}

// TaskStatus is the transient tracking entry for a job, readable by the
// status service while no durable record exists yet.
type TaskStatus struct {
	State TaskState `json:"state"`
	// Error carries a short machine-readable reason for failed jobs.
	Error string `json:"error,omitempty"`
	// Filename is retained for reporting on poll.
	Filename string `json:"filename,omitempty"`
	// Result holds stashed detections when the durable write failed after a
	// successful inference. Best effort; gone after the retention window.
	Result []Detection `json:"result,omitempty"`
}
