// Package worker implements the capture execution loop.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"tweetshot/internal/capture"
	"tweetshot/internal/metrics"
	"tweetshot/internal/pipeline"
)

// Worker consumes queue items and runs the capture pipeline on each.
type Worker struct {
	queue    capture.Queue
	jobStore capture.JobStore
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	queue capture.Queue,
	jobStore capture.JobStore,
	pl *pipeline.Pipeline,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:    queue,
		jobStore: jobStore,
		pipeline: pl,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, capture.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item capture.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	counters := capture.JobCounters{Retries: item.Attempt}
	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, capture.JobStatusRunning, "", counters); err != nil {
		w.logger.Error("update job status failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}

	errText := ""
	shot, err := w.pipeline.Run(ctx, item.JobID, item.URL, item.Options)
	if err != nil {
		counters.ShotsFailed++
		errText = err.Error()
		w.logger.Error("capture failed",
			zap.String("job_id", item.JobID),
			zap.String("url", item.URL),
			zap.Error(err),
		)
	} else {
		counters.ShotsSucceeded++
		w.logger.Debug("capture processed",
			zap.String("job_id", item.JobID),
			zap.String("url", item.URL),
			zap.String("blob_uri", shot.BlobURI),
		)
	}

	status, errText := w.deriveFinalStatus(ctx, counters, errText)

	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, status, errText, counters); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", item.JobID), zap.Error(err))
	}
}

func (w *Worker) deriveFinalStatus(
	ctx context.Context,
	counters capture.JobCounters,
	errText string,
) (capture.JobStatus, string) {
	if counters.ShotsSucceeded == 0 && errText == "" {
		errText = "no capture was produced"
	}

	switch {
	case ctx.Err() != nil:
		return capture.JobStatusCanceled, errText
	case counters.ShotsSucceeded == 0:
		return capture.JobStatusFailed, errText
	default:
		return capture.JobStatusSucceeded, errText
	}
}
