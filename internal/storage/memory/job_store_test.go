package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tweetshot/internal/capture"
)

func TestJobStore_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()

	job := capture.Job{ID: "job-1", Status: capture.JobStatusQueued, URL: "https://x.com/jack/status/20"}
	require.NoError(t, store.CreateJob(ctx, job))
	require.Error(t, store.CreateJob(ctx, job))

	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", capture.JobStatusRunning, "", capture.JobCounters{}))
	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, capture.JobStatusRunning, got.Status)
	require.NotNil(t, got.Started)
	require.Nil(t, got.Finished)

	counters := capture.JobCounters{ShotsSucceeded: 1}
	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", capture.JobStatusSucceeded, "", counters))
	got, err = store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got.Finished)
	require.Equal(t, counters, got.Counters)
}

func TestJobStore_UnknownJob(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	_, err := store.GetJob(context.Background(), "nope")
	require.Error(t, err)
	require.Error(t, store.UpdateJobStatus(context.Background(), "nope", capture.JobStatusFailed, "x", capture.JobCounters{}))
}

func TestJobStore_Shots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()
	require.NoError(t, store.RecordShot(ctx, capture.ShotRecord{JobID: "job-2", ObjectName: "a.jpg"}))
	require.NoError(t, store.RecordShot(ctx, capture.ShotRecord{JobID: "job-2", ObjectName: "b.jpg"}))

	shots, err := store.ListShots(ctx, "job-2")
	require.NoError(t, err)
	require.Len(t, shots, 2)
	require.Equal(t, "a.jpg", shots[0].ObjectName)
}

func TestBlobStore_PutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "captures/a.jpg", "image/jpeg", []byte{0xFF, 0xD8})
	require.NoError(t, err)
	require.Equal(t, "memory://captures/a.jpg", uri)

	data, ok := store.GetObject("captures/a.jpg")
	require.True(t, ok)
	require.Equal(t, []byte{0xFF, 0xD8}, data)
}
