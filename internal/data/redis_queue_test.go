package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-aoi/aoi-api/internal/core"
	"github.com/sentinel-aoi/aoi-api/internal/domain/model"
	"github.com/sentinel-aoi/aoi-api/internal/testutil"
)

func newTestRedisQueue(t *testing.T) *RedisQueue {
	t.Helper()
	client := testutil.SetupTestRedis(t)
	q, err := NewRedisQueue(RedisQueueOptions{
		Client:       client,
		Key:          "aoi:test:jobs",
		Retention:    time.Minute,
		TimeProvider: NewFixedTimeProvider(testutil.TestTime()),
	})
	require.NoError(t, err)
	return q
}

func TestNewRedisQueueValidation(t *testing.T) {
	_, err := NewRedisQueue(RedisQueueOptions{Key: "k"})
	require.Error(t, err)

	client := testutil.SetupTestRedis(t)
	_, err = NewRedisQueue(RedisQueueOptions{Client: client})
	require.Error(t, err)
}

func TestRedisQueueEnqueueDequeueRoundTrip(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, core.EnqueueRequest{
		Filename:    "frame.jpg",
		ArtifactRef: "raw-images/frame.jpg",
	})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	state, err := q.GetState(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, model.TaskStatePending, state.State)
	assert.Equal(t, "frame.jpg", state.Filename)

	desc, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, jobID, desc.JobID)
	assert.Equal(t, "frame.jpg", desc.Filename)
	assert.Equal(t, "raw-images/frame.jpg", desc.ArtifactRef)
	assert.True(t, desc.SubmittedAt.Equal(testutil.TestTime()))
}

func TestRedisQueueFIFOOrder(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	var ids []string
	for range 5 {
		id, err := q.Enqueue(ctx, core.EnqueueRequest{ArtifactRef: "raw-images/x.jpg"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for _, want := range ids {
		desc, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, desc.JobID)
	}
}

func TestRedisQueueDequeueRespectsContext(t *testing.T) {
	q := newTestRedisQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := q.Dequeue(ctx)
	require.Error(t, err)
	// Bounded BLPOP means cancellation is observed within one block window.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRedisQueueStateLifecycle(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, core.EnqueueRequest{ArtifactRef: "raw-images/x.jpg"})
	require.NoError(t, err)

	require.NoError(t, q.SetState(ctx, jobID, model.TaskStateRunning, ""))
	state, err := q.GetState(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateRunning, state.State)

	require.NoError(t, q.SetState(ctx, jobID, model.TaskStateDropped, "stale"))
	state, err = q.GetState(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateDropped, state.State)
	assert.Equal(t, "stale", state.Error)
}

func TestRedisQueueGetStateUnknownJob(t *testing.T) {
	q := newTestRedisQueue(t)

	state, err := q.GetState(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestRedisQueueStashResult(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, core.EnqueueRequest{ArtifactRef: "raw-images/x.jpg"})
	require.NoError(t, err)
	require.NoError(t, q.SetState(ctx, jobID, model.TaskStateSucceeded, ""))

	detections := []model.Detection{
		{Label: "crack", Confidence: 0.95, BBox: model.BBox{0, 0, 4, 4}},
	}
	require.NoError(t, q.StashResult(ctx, jobID, detections))

	state, err := q.GetState(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateSucceeded, state.State)
	assert.Equal(t, detections, state.Result)
}
