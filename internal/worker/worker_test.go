package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tweetshot/internal/capture"
	"tweetshot/internal/clock/system"
	"tweetshot/internal/hash/sha256"
	"tweetshot/internal/pipeline"
	queuemem "tweetshot/internal/queue/memory"
	storemem "tweetshot/internal/storage/memory"
)

type stubRenderer struct {
	err error
}

func (s *stubRenderer) Render(context.Context, capture.RenderRequest) (capture.RenderResult, error) {
	if s.err != nil {
		return capture.RenderResult{}, s.err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 20))); err != nil {
		return capture.RenderResult{}, err
	}
	return capture.RenderResult{PNG: buf.Bytes(), FinalURL: "https://x.com/jack/status/20"}, nil
}

func newHarness(t *testing.T, r capture.Renderer) (*Worker, *queuemem.Queue, *storemem.JobStore) {
	t.Helper()
	queue := queuemem.NewQueue(4)
	jobs := storemem.NewJobStore()
	pl := pipeline.New(
		r, nil,
		storemem.NewBlobStore(),
		jobs,
		nil,
		sha256.New(),
		system.New(),
		pipeline.Config{BlobPrefix: "captures"},
		zap.NewNop(),
	)
	return New(queue, jobs, pl, zap.NewNop()), queue, jobs
}

func runJob(t *testing.T, w *Worker, q *queuemem.Queue, jobs *storemem.JobStore, jobID string) capture.Job {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, jobs.CreateJob(ctx, capture.Job{
		ID:      jobID,
		URL:     "https://x.com/jack/status/20",
		Status:  capture.JobStatusQueued,
		Options: capture.DefaultOptions(),
	}))
	require.NoError(t, q.Enqueue(ctx, capture.QueueItem{
		JobID:   jobID,
		URL:     "https://x.com/jack/status/20",
		Options: capture.DefaultOptions(),
	}))

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		job, err := jobs.GetJob(context.Background(), jobID)
		return err == nil && job.Finished != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	job, err := jobs.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	return job
}

func TestWorker_ProcessesJobToSuccess(t *testing.T) {
	t.Parallel()

	w, q, jobs := newHarness(t, &stubRenderer{})
	job := runJob(t, w, q, jobs, "job-1")

	require.Equal(t, capture.JobStatusSucceeded, job.Status)
	require.Empty(t, job.ErrorText)
	require.Equal(t, 1, job.Counters.ShotsSucceeded)
	require.NotNil(t, job.Started)

	shots, err := jobs.ListShots(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, shots, 1)
}

func TestWorker_MarksJobFailed(t *testing.T) {
	t.Parallel()

	w, q, jobs := newHarness(t, &stubRenderer{err: errors.New("tab crashed")})
	job := runJob(t, w, q, jobs, "job-1")

	require.Equal(t, capture.JobStatusFailed, job.Status)
	require.Contains(t, job.ErrorText, "tab crashed")
	require.Equal(t, 1, job.Counters.ShotsFailed)
}

func TestWorker_StopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	w, q, _ := newHarness(t, &stubRenderer{})
	q.Close()

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after queue close")
	}
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	w, _, _ := newHarness(t, &stubRenderer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}
