package data

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sentinel-aoi/aoi-api/internal/core"
	"github.com/sentinel-aoi/aoi-api/internal/domain/model"
)

// MemoryQueue implements core.JobQueue in process memory. It preserves the
// queue contract (FIFO order, exactly-once delivery, transient task state)
// but nothing survives a restart: development and test use only.
type MemoryQueue struct {
	mu     sync.Mutex
	ch     chan *model.JobDescriptor
	states map[string]*model.TaskStatus
	now    TimeProvider
}

// memoryQueueDepth bounds the buffered channel backing the queue. The real
// broker has no cap either; this is just large enough that tests never block
// an enqueue.
const memoryQueueDepth = 1024

// NewMemoryQueue constructs a MemoryQueue. A nil TimeProvider uses real time.
func NewMemoryQueue(tp TimeProvider) *MemoryQueue {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &MemoryQueue{
		ch:     make(chan *model.JobDescriptor, memoryQueueDepth),
		states: make(map[string]*model.TaskStatus),
		now:    tp,
	}
}

// Enqueue issues a job ID, records the pending state, and appends the
// descriptor to the queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, req core.EnqueueRequest) (string, error) {
	desc := &model.JobDescriptor{
		JobID:       uuid.NewString(),
		Filename:    req.Filename,
		ArtifactRef: req.ArtifactRef,
		SubmittedAt: q.now.Now().UTC(),
	}
	if err := desc.Validate(); err != nil {
		return "", err
	}

	// The state entry must exist before a worker can dequeue the descriptor,
	// otherwise a fast worker's running transition would be overwritten by
	// the pending write below.
	q.mu.Lock()
	q.states[desc.JobID] = &model.TaskStatus{
		State:    model.TaskStatePending,
		Filename: desc.Filename,
	}
	q.mu.Unlock()

	select {
	case q.ch <- desc:
		return desc.JobID, nil
	case <-ctx.Done():
		// The descriptor never entered the queue; drop the orphaned entry.
		q.mu.Lock()
		delete(q.states, desc.JobID)
		q.mu.Unlock()
		return "", ctx.Err()
	}
}

// Dequeue blocks until a descriptor is available or the context is cancelled.
// The channel receive guarantees each descriptor reaches exactly one caller.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*model.JobDescriptor, error) {
	select {
	case desc := <-q.ch:
		return desc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetState transitions a job's transient state.
func (q *MemoryQueue) SetState(_ context.Context, jobID string, state model.TaskState, errMsg string) error {
	if jobID == "" {
		return errors.New("job id is required")
	}
	if !state.Valid() {
		return fmt.Errorf("invalid task state: %q", state)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.states[jobID]
	if !ok {
		entry = &model.TaskStatus{}
		q.states[jobID] = entry
	}
	entry.State = state
	if errMsg != "" {
		entry.Error = errMsg
	}
	return nil
}

// GetState returns a copy of the transient tracking entry, or nil when the
// tracker holds nothing for the job.
func (q *MemoryQueue) GetState(_ context.Context, jobID string) (*model.TaskStatus, error) {
	if jobID == "" {
		return nil, errors.New("job id is required")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.states[jobID]
	if !ok {
		return nil, nil
	}
	out := *entry
	out.Result = copyDetections(entry.Result)
	return &out, nil
}

// StashResult retains detections in the tracking entry for the current
// process lifetime.
func (q *MemoryQueue) StashResult(_ context.Context, jobID string, detections []model.Detection) error {
	if jobID == "" {
		return errors.New("job id is required")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.states[jobID]
	if !ok {
		entry = &model.TaskStatus{}
		q.states[jobID] = entry
	}
	entry.Result = copyDetections(detections)
	return nil
}

// copyDetections clones a detection slice, preserving the nil-vs-empty
// distinction: a stashed empty list means "completed with zero defects" and
// must not read back as "nothing stashed".
func copyDetections(src []model.Detection) []model.Detection {
	if src == nil {
		return nil
	}
	out := make([]model.Detection, len(src))
	copy(out, src)
	return out
}

var _ core.JobQueue = (*MemoryQueue)(nil)
