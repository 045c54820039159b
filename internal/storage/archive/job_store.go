// Package archive decorates a JobStore with durable shot archiving.
package archive

import (
	"context"
	"fmt"

	"tweetshot/internal/capture"
)

// ShotArchiver writes capture records to a durable store.
type ShotArchiver interface {
	StoreShot(ctx context.Context, shot capture.ShotRecord) error
}

// JobStore forwards all calls to the inner store and additionally archives
// every recorded shot, typically into Postgres.
type JobStore struct {
	inner    capture.JobStore
	archiver ShotArchiver
}

// New wraps inner so recorded shots also reach the archiver.
func New(inner capture.JobStore, archiver ShotArchiver) *JobStore {
	return &JobStore{inner: inner, archiver: archiver}
}

func (s *JobStore) CreateJob(ctx context.Context, job capture.Job) error {
	return s.inner.CreateJob(ctx, job)
}

func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status capture.JobStatus,
	errText string,
	counters capture.JobCounters,
) error {
	return s.inner.UpdateJobStatus(ctx, jobID, status, errText, counters)
}

// RecordShot stores the shot in the inner store first; the archive write is
// required to succeed so a capture is never acknowledged without its durable
// row.
func (s *JobStore) RecordShot(ctx context.Context, shot capture.ShotRecord) error {
	if err := s.inner.RecordShot(ctx, shot); err != nil {
		return err
	}
	if s.archiver == nil {
		return nil
	}
	if err := s.archiver.StoreShot(ctx, shot); err != nil {
		return fmt.Errorf("archive shot: %w", err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, jobID string) (capture.Job, error) {
	return s.inner.GetJob(ctx, jobID)
}

func (s *JobStore) ListShots(ctx context.Context, jobID string) ([]capture.ShotRecord, error) {
	return s.inner.ListShots(ctx, jobID)
}
