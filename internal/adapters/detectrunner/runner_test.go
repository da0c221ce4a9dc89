package detectrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sentinel-aoi/aoi-api/internal/core"
	"github.com/sentinel-aoi/aoi-api/internal/data"
	"github.com/sentinel-aoi/aoi-api/internal/domain/model"
	"github.com/sentinel-aoi/aoi-api/internal/mocks"
	"github.com/sentinel-aoi/aoi-api/internal/testutil"
)

// pngBytes returns a minimal valid PNG image.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type runnerDeps struct {
	queue       *data.MemoryQueue
	blobs       *mocks.MockBlobStore
	detector    *mocks.MockDetector
	inspections *mocks.MockInspectionRepository
	clock       *data.FixedTimeProvider
}

func newTestRunner(t *testing.T, ctrl *gomock.Controller, opts RunnerOptions) (*Runner, runnerDeps) {
	t.Helper()

	deps := runnerDeps{
		blobs:       mocks.NewMockBlobStore(ctrl),
		detector:    mocks.NewMockDetector(ctrl),
		inspections: mocks.NewMockInspectionRepository(ctrl),
		clock:       data.NewFixedTimeProvider(testutil.TestTime()),
	}
	deps.queue = data.NewMemoryQueue(deps.clock)

	opts.Queue = deps.queue
	opts.Blobs = deps.blobs
	opts.Detector = deps.detector
	opts.Inspections = deps.inspections
	opts.Clock = deps.clock

	r, err := NewRunner(opts)
	require.NoError(t, err)
	return r, deps
}

func enqueueJob(t *testing.T, q *data.MemoryQueue) string {
	t.Helper()
	jobID, err := q.Enqueue(context.Background(), core.EnqueueRequest{
		Filename:    "frame.png",
		ArtifactRef: "raw-images/frame.png",
	})
	require.NoError(t, err)
	return jobID
}

func dequeueJob(t *testing.T, q *data.MemoryQueue) *model.JobDescriptor {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	desc, err := q.Dequeue(ctx)
	require.NoError(t, err)
	return desc
}

func TestNewRunner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queue := data.NewMemoryQueue(nil)
	blobs := mocks.NewMockBlobStore(ctrl)
	det := mocks.NewMockDetector(ctrl)
	inspections := mocks.NewMockInspectionRepository(ctrl)

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := NewRunner(RunnerOptions{Blobs: blobs, Detector: det, Inspections: inspections})
		require.Error(t, err)
		_, err = NewRunner(RunnerOptions{Queue: queue, Detector: det, Inspections: inspections})
		require.Error(t, err)
		_, err = NewRunner(RunnerOptions{Queue: queue, Blobs: blobs, Inspections: inspections})
		require.Error(t, err)
		_, err = NewRunner(RunnerOptions{Queue: queue, Blobs: blobs, Detector: det})
		require.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		r, err := NewRunner(RunnerOptions{
			Queue:       queue,
			Blobs:       blobs,
			Detector:    det,
			Inspections: inspections,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, r.workers)
		assert.Equal(t, 5*time.Second, r.policy.Threshold())
		assert.Equal(t, 60*time.Second, r.timeLimit)
	})
}

func TestProcessJobSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, deps := newTestRunner(t, ctrl, RunnerOptions{})
	ctx := context.Background()

	jobID := enqueueJob(t, deps.queue)
	desc := dequeueJob(t, deps.queue)

	img := pngBytes(t)
	detections := []model.Detection{
		{Label: "scratch", Confidence: 0.9, BBox: model.BBox{1, 1, 10, 10}},
	}

	deps.blobs.EXPECT().Get(gomock.Any(), "raw-images/frame.png").Return(img, nil)
	deps.detector.EXPECT().Detect(gomock.Any(), img).Return(detections, nil)
	deps.inspections.EXPECT().
		Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *model.InspectionRecord) error {
			assert.Equal(t, jobID, rec.JobID)
			assert.Equal(t, "frame.png", rec.Filename)
			var stored []model.Detection
			require.NoError(t, json.Unmarshal(rec.Detections, &stored))
			assert.Equal(t, detections, stored)
			return nil
		})

	r.processJob(ctx, desc)

	state, err := deps.queue.GetState(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateSucceeded, state.State)
	assert.Empty(t, state.Error)
}

func TestProcessJobDropsStale(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, deps := newTestRunner(t, ctrl, RunnerOptions{StalenessThreshold: 5 * time.Second})
	ctx := context.Background()

	jobID := enqueueJob(t, deps.queue)
	desc := dequeueJob(t, deps.queue)

	// The frame sat in the queue past the freshness window. No blob fetch, no
	// inference, no durable write.
	deps.clock.Advance(6 * time.Second)

	r.processJob(ctx, desc)

	state, err := deps.queue.GetState(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateDropped, state.State)
	assert.Equal(t, "stale", state.Error)
}

func TestProcessJobExactlyAtThresholdRuns(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, deps := newTestRunner(t, ctrl, RunnerOptions{StalenessThreshold: 5 * time.Second})
	ctx := context.Background()

	jobID := enqueueJob(t, deps.queue)
	desc := dequeueJob(t, deps.queue)

	deps.clock.Advance(5 * time.Second)

	img := pngBytes(t)
	deps.blobs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(img, nil)
	deps.detector.EXPECT().Detect(gomock.Any(), img).Return([]model.Detection{}, nil)
	deps.inspections.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	r.processJob(ctx, desc)

	state, err := deps.queue.GetState(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateSucceeded, state.State)
}

func TestProcessJobDecodeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, deps := newTestRunner(t, ctrl, RunnerOptions{})
	ctx := context.Background()

	jobID := enqueueJob(t, deps.queue)
	desc := dequeueJob(t, deps.queue)

	deps.blobs.EXPECT().Get(gomock.Any(), gomock.Any()).Return([]byte("not an image"), nil)
	// The detector is never reached for an undecodable artifact.

	r.processJob(ctx, desc)

	state, err := deps.queue.GetState(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateFailed, state.State)
	assert.Contains(t, state.Error, "decode")
}

func TestProcessJobDetectorFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, deps := newTestRunner(t, ctrl, RunnerOptions{})
	ctx := context.Background()

	jobID := enqueueJob(t, deps.queue)
	desc := dequeueJob(t, deps.queue)

	img := pngBytes(t)
	deps.blobs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(img, nil)
	deps.detector.EXPECT().Detect(gomock.Any(), img).Return(nil, errors.New("sidecar down"))

	r.processJob(ctx, desc)

	state, err := deps.queue.GetState(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateFailed, state.State)
	assert.Contains(t, state.Error, "inference")
}

func TestProcessJobPersistenceFailureIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, deps := newTestRunner(t, ctrl, RunnerOptions{})
	ctx := context.Background()

	jobID := enqueueJob(t, deps.queue)
	desc := dequeueJob(t, deps.queue)

	img := pngBytes(t)
	detections := []model.Detection{
		{Label: "dent", Confidence: 0.8, BBox: model.BBox{2, 2, 20, 20}},
	}
	deps.blobs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(img, nil)
	deps.detector.EXPECT().Detect(gomock.Any(), img).Return(detections, nil)
	deps.inspections.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	r.processJob(ctx, desc)

	// Inference succeeded, so the job still succeeds and the result is stashed
	// in the transient tracker for polling.
	state, err := deps.queue.GetState(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateSucceeded, state.State)
	assert.Equal(t, detections, state.Result)
}

func TestProcessJobTimeBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, deps := newTestRunner(t, ctrl, RunnerOptions{TimeLimit: 20 * time.Millisecond})
	ctx := context.Background()

	jobID := enqueueJob(t, deps.queue)
	desc := dequeueJob(t, deps.queue)

	img := pngBytes(t)
	deps.blobs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(img, nil)
	deps.detector.EXPECT().
		Detect(gomock.Any(), img).
		DoAndReturn(func(ctx context.Context, _ []byte) ([]model.Detection, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	r.processJob(ctx, desc)

	state, err := deps.queue.GetState(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateFailed, state.State)
	assert.Contains(t, state.Error, "timeout")
}

func TestRunDrainsQueueAcrossWorkers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, deps := newTestRunner(t, ctrl, RunnerOptions{Concurrency: 4})

	const jobs = 100
	img := pngBytes(t)
	jobIDs := make([]string, 0, jobs)
	for range jobs {
		jobIDs = append(jobIDs, enqueueJob(t, deps.queue))
	}

	deps.blobs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(img, nil).Times(jobs)
	deps.detector.EXPECT().Detect(gomock.Any(), img).Return([]model.Detection{}, nil).Times(jobs)
	deps.inspections.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil).Times(jobs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool {
		for _, id := range jobIDs {
			state, err := deps.queue.GetState(context.Background(), id)
			if err != nil || state == nil || !state.State.Terminal() {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond, "all jobs should reach a terminal state")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			require.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}

	for _, id := range jobIDs {
		state, err := deps.queue.GetState(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.TaskStateSucceeded, state.State)
	}
}

func TestRunOneBadJobDoesNotStopTheOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, deps := newTestRunner(t, ctrl, RunnerOptions{Concurrency: 1})

	img := pngBytes(t)
	badID := enqueueJob(t, deps.queue)
	goodID := enqueueJob(t, deps.queue)

	gomock.InOrder(
		deps.blobs.EXPECT().Get(gomock.Any(), gomock.Any()).Return([]byte("garbage"), nil),
		deps.blobs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(img, nil),
	)
	deps.detector.EXPECT().Detect(gomock.Any(), img).Return([]model.Detection{}, nil)
	deps.inspections.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool {
		good, err := deps.queue.GetState(context.Background(), goodID)
		return err == nil && good != nil && good.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	bad, err := deps.queue.GetState(context.Background(), badID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateFailed, bad.State)

	good, err := deps.queue.GetState(context.Background(), goodID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateSucceeded, good.State)
}
