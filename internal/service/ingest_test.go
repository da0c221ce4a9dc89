package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sentinel-aoi/aoi-api/internal/core"
	apperrors "github.com/sentinel-aoi/aoi-api/internal/errors"
	"github.com/sentinel-aoi/aoi-api/internal/mocks"
)

func newTestIngestService(t *testing.T, blobs core.BlobStore, queue core.JobQueue) *IngestService {
	t.Helper()
	svc, err := NewIngestService(IngestServiceOptions{Blobs: blobs, Queue: queue})
	require.NoError(t, err)
	return svc
}

func TestNewIngestService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	blobs := mocks.NewMockBlobStore(ctrl)
	queue := mocks.NewMockJobQueue(ctrl)

	t.Run("missing blob store", func(t *testing.T) {
		svc, err := NewIngestService(IngestServiceOptions{Queue: queue})
		require.Error(t, err)
		assert.Nil(t, svc)
	})

	t.Run("missing queue", func(t *testing.T) {
		svc, err := NewIngestService(IngestServiceOptions{Blobs: blobs})
		require.Error(t, err)
		assert.Nil(t, svc)
	})

	t.Run("success", func(t *testing.T) {
		svc, err := NewIngestService(IngestServiceOptions{Blobs: blobs, Queue: queue})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestIngestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		blobs := mocks.NewMockBlobStore(ctrl)
		queue := mocks.NewMockJobQueue(ctrl)
		svc := newTestIngestService(t, blobs, queue)

		var storedName string
		blobs.EXPECT().
			Put(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req core.PutRequest) (string, error) {
				storedName = req.Name
				assert.Equal(t, "image/jpeg", req.ContentType)
				assert.Equal(t, []byte("jpegbytes"), req.Data)
				return "raw-images/" + req.Name, nil
			})
		queue.EXPECT().
			Enqueue(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req core.EnqueueRequest) (string, error) {
				assert.Equal(t, "frame.jpg", req.Filename)
				assert.Equal(t, "raw-images/"+storedName, req.ArtifactRef)
				return "job-123", nil
			})

		result, err := svc.Submit(ctx, SubmitRequest{
			Filename:    "frame.jpg",
			ContentType: "image/jpeg",
			Data:        []byte("jpegbytes"),
		})
		require.NoError(t, err)
		assert.Equal(t, "job-123", result.TaskID)
		assert.Equal(t, "received", result.Status)
		assert.Equal(t, storedName, result.Filename)
		assert.NotEmpty(t, result.Message)

		// Object name is a fresh UUID with the original extension preserved.
		assert.True(t, strings.HasSuffix(storedName, ".jpg"), "object name %q should keep extension", storedName)
		assert.NotEqual(t, "frame.jpg", storedName)
	})

	t.Run("empty file is rejected before any side effect", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		blobs := mocks.NewMockBlobStore(ctrl)
		queue := mocks.NewMockJobQueue(ctrl)
		svc := newTestIngestService(t, blobs, queue)

		result, err := svc.Submit(ctx, SubmitRequest{Filename: "frame.jpg"})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("blob store failure means no job is enqueued", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		blobs := mocks.NewMockBlobStore(ctrl)
		queue := mocks.NewMockJobQueue(ctrl)
		svc := newTestIngestService(t, blobs, queue)

		blobs.EXPECT().Put(gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))

		result, err := svc.Submit(ctx, SubmitRequest{Filename: "frame.jpg", Data: []byte("x")})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, apperrors.IsStorageUnavailable(err))
	})

	t.Run("enqueue failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		blobs := mocks.NewMockBlobStore(ctrl)
		queue := mocks.NewMockJobQueue(ctrl)
		svc := newTestIngestService(t, blobs, queue)

		blobs.EXPECT().Put(gomock.Any(), gomock.Any()).Return("raw-images/obj.jpg", nil)
		queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("", errors.New("broker down"))

		result, err := svc.Submit(ctx, SubmitRequest{Filename: "frame.jpg", Data: []byte("x")})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, apperrors.ErrCodeIngestion, apperrors.GetCode(err))
	})

	t.Run("filename without extension", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		blobs := mocks.NewMockBlobStore(ctrl)
		queue := mocks.NewMockJobQueue(ctrl)
		svc := newTestIngestService(t, blobs, queue)

		blobs.EXPECT().
			Put(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req core.PutRequest) (string, error) {
				assert.NotContains(t, req.Name, ".")
				return "raw-images/" + req.Name, nil
			})
		queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("job-1", nil)

		_, err := svc.Submit(ctx, SubmitRequest{Filename: "frame", Data: []byte("x")})
		require.NoError(t, err)
	})
}
