package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"tweetshot/internal/capture"
)

// JobStore provides an in-memory implementation for development/testing.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]capture.Job
	shots map[string][]capture.ShotRecord
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:  make(map[string]capture.Job),
		shots: make(map[string][]capture.ShotRecord),
	}
}

// CreateJob stores a new job in queued status.
func (s *JobStore) CreateJob(_ context.Context, job capture.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates the status and counters for a job.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status capture.JobStatus,
	errText string,
	counters capture.JobCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	now := time.Now().UTC()
	if status == capture.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if isTerminal(status) {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// RecordShot appends a shot row for a job.
func (s *JobStore) RecordShot(_ context.Context, shot capture.ShotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots[shot.JobID] = append(s.shots[shot.JobID], shot)
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (capture.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return capture.Job{}, errors.New("job not found")
	}
	return job, nil
}

// ListShots returns all recorded shots for a job.
func (s *JobStore) ListShots(_ context.Context, jobID string) ([]capture.ShotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shots := s.shots[jobID]
	out := make([]capture.ShotRecord, len(shots))
	copy(out, shots)
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status capture.JobStatus) bool {
	switch status {
	case capture.JobStatusSucceeded, capture.JobStatusFailed, capture.JobStatusCanceled:
		return true
	default:
		return false
	}
}
