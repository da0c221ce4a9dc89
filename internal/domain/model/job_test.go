package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStateValid(t *testing.T) {
	valid := []TaskState{
		TaskStatePending,
		TaskStateRunning,
		TaskStateSucceeded,
		TaskStateFailed,
		TaskStateDropped,
	}
	for _, s := range valid {
		assert.True(t, s.Valid(), "state %q should be valid", s)
	}

	assert.False(t, TaskState("").Valid())
	assert.False(t, TaskState("queued").Valid())
}

func TestTaskStateTerminal(t *testing.T) {
	assert.False(t, TaskStatePending.Terminal())
	assert.False(t, TaskStateRunning.Terminal())
	assert.True(t, TaskStateSucceeded.Terminal())
	assert.True(t, TaskStateFailed.Terminal())
	assert.True(t, TaskStateDropped.Terminal())
}

func TestJobDescriptorValidate(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		d := &JobDescriptor{
			JobID:       "job-1",
			Filename:    "frame.jpg",
			ArtifactRef: "raw-images/abc.jpg",
			SubmittedAt: now,
		}
		require.NoError(t, d.Validate())
	})

	t.Run("missing job id", func(t *testing.T) {
		d := &JobDescriptor{ArtifactRef: "raw-images/abc.jpg", SubmittedAt: now}
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job id")
	})

	t.Run("missing artifact ref", func(t *testing.T) {
		d := &JobDescriptor{JobID: "job-1", SubmittedAt: now}
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "artifact ref")
	})

	t.Run("missing submitted at", func(t *testing.T) {
		d := &JobDescriptor{JobID: "job-1", ArtifactRef: "raw-images/abc.jpg"}
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "submitted at")
	})

	t.Run("filename is optional", func(t *testing.T) {
		d := &JobDescriptor{JobID: "job-1", ArtifactRef: "raw-images/abc.jpg", SubmittedAt: now}
		require.NoError(t, d.Validate())
	})
}
