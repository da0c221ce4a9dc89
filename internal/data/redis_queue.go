package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sentinel-aoi/aoi-api/internal/core"
	"github.com/sentinel-aoi/aoi-api/internal/domain/model"
)

// dequeueBlockTimeout bounds a single BLPOP call so a cancelled context is
// observed promptly even on go-redis versions that block past cancellation.
const dequeueBlockTimeout = 2 * time.Second

// RedisQueueOptions configures a RedisQueue.
type RedisQueueOptions struct {
	Client redis.UniversalClient
	// Key is the Redis list carrying job descriptors. Required.
	Key string
	// Retention is the TTL applied to transient task-state entries.
	// Defaults to one hour.
	Retention time.Duration
	// TimeProvider is used to stamp submitted_at; defaults to real time.
	TimeProvider TimeProvider
}

// RedisQueue implements core.JobQueue on a Redis list plus per-job hashes.
//
// Descriptors are RPUSHed and removed with BLPOP, so delivery order is FIFO
// and each descriptor reaches exactly one worker: the pop is atomic in Redis.
// Transient task state lives in one hash per job with a retention TTL; the
// queue is the sole writer of that state until a durable record exists.
type RedisQueue struct {
	client    redis.UniversalClient
	key       string
	retention time.Duration
	now       TimeProvider
}

// NewRedisQueue constructs a RedisQueue.
func NewRedisQueue(opts RedisQueueOptions) (*RedisQueue, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Key == "" {
		return nil, errors.New("queue key is required")
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = time.Hour
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &RedisQueue{
		client:    opts.Client,
		key:       opts.Key,
		retention: retention,
		now:       tp,
	}, nil
}

func (q *RedisQueue) taskKey(jobID string) string {
	return q.key + ":task:" + jobID
}

// Enqueue issues a job ID, records the pending state, and appends the
// descriptor to the queue list.
func (q *RedisQueue) Enqueue(ctx context.Context, req core.EnqueueRequest) (string, error) {
	desc := model.JobDescriptor{
		JobID:       uuid.NewString(),
		Filename:    req.Filename,
		ArtifactRef: req.ArtifactRef,
		SubmittedAt: q.now.Now().UTC(),
	}
	if err := desc.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("marshal descriptor: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.taskKey(desc.JobID),
		"state", string(model.TaskStatePending),
		"filename", desc.Filename,
	)
	pipe.Expire(ctx, q.taskKey(desc.JobID), q.retention)
	pipe.RPush(ctx, q.key, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return desc.JobID, nil
}

// Dequeue blocks until a descriptor is available or the context is cancelled.
func (q *RedisQueue) Dequeue(ctx context.Context) (*model.JobDescriptor, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := q.client.BLPop(ctx, dequeueBlockTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("dequeue job: %w", err)
		}
		// BLPOP returns [key, value].
		if len(res) != 2 {
			return nil, fmt.Errorf("unexpected BLPOP reply length %d", len(res))
		}
		var desc model.JobDescriptor
		if err := json.Unmarshal([]byte(res[1]), &desc); err != nil {
			return nil, fmt.Errorf("decode descriptor: %w", err)
		}
		return &desc, nil
	}
}

// SetState transitions a job's transient state.
func (q *RedisQueue) SetState(ctx context.Context, jobID string, state model.TaskState, errMsg string) error {
	if jobID == "" {
		return errors.New("job id is required")
	}
	if !state.Valid() {
		return fmt.Errorf("invalid task state: %q", state)
	}

	fields := []any{"state", string(state)}
	if errMsg != "" {
		fields = append(fields, "error", errMsg)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.taskKey(jobID), fields...)
	pipe.Expire(ctx, q.taskKey(jobID), q.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set task state: %w", err)
	}
	return nil
}

// GetState returns the transient tracking entry, or nil if the tracker holds
// nothing for the job.
func (q *RedisQueue) GetState(ctx context.Context, jobID string) (*model.TaskStatus, error) {
	if jobID == "" {
		return nil, errors.New("job id is required")
	}
	vals, err := q.client.HGetAll(ctx, q.taskKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get task state: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	status := &model.TaskStatus{
		State:    model.TaskState(vals["state"]),
		Error:    vals["error"],
		Filename: vals["filename"],
	}
	if raw, ok := vals["result"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &status.Result); err != nil {
			return nil, fmt.Errorf("decode stashed result: %w", err)
		}
	}
	return status, nil
}

// StashResult retains detections in the task hash as a best-effort fallback
// for jobs whose durable write failed.
func (q *RedisQueue) StashResult(ctx context.Context, jobID string, detections []model.Detection) error {
	if jobID == "" {
		return errors.New("job id is required")
	}
	payload, err := json.Marshal(detections)
	if err != nil {
		return fmt.Errorf("marshal detections: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.taskKey(jobID), "result", payload)
	pipe.Expire(ctx, q.taskKey(jobID), q.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stash result: %w", err)
	}
	return nil
}

var _ core.JobQueue = (*RedisQueue)(nil)
