// Package capture defines the core types and interfaces of the tweet
// screenshot service. Implementations live in sibling packages.
package capture

import "time"

// JobStatus tracks the lifecycle of a capture job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Job is one capture request tracked through the queue and workers.
type Job struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Options   Options     `json:"options"`
	Status    JobStatus   `json:"status"`
	ErrorText string      `json:"error,omitempty"`
	Counters  JobCounters `json:"counters"`
	Created   time.Time   `json:"created"`
	Started   *time.Time  `json:"started,omitempty"`
	Finished  *time.Time  `json:"finished,omitempty"`
}

// JobCounters accumulates per-job outcomes across attempts.
type JobCounters struct {
	ShotsSucceeded int `json:"shots_succeeded"`
	ShotsFailed    int `json:"shots_failed"`
	Retries        int `json:"retries"`
}

// ShotRecord is the persisted result of a successful capture.
type ShotRecord struct {
	JobID       string        `json:"job_id"`
	URL         string        `json:"url"`
	FinalURL    string        `json:"final_url"`
	ObjectName  string        `json:"object_name"`
	BlobURI     string        `json:"blob_uri"`
	FileURL     string        `json:"file_url,omitempty"`
	ContentHash string        `json:"content_hash"`
	SizeBytes   int64         `json:"size_bytes"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	CapturedAt  time.Time     `json:"captured_at"`
	Duration    time.Duration `json:"-"`
	DurationMs  int64         `json:"duration_ms"`
}

// QueueItem is the unit of work handed from the dispatcher to workers.
type QueueItem struct {
	JobID     string
	URL       string
	Options   Options
	Attempt   int
	Submitted time.Time
}

// RenderRequest asks the renderer for a screenshot of one tweet.
type RenderRequest struct {
	JobID   string
	URL     string
	Options Options
}

// RenderResult is the raw browser output before framing.
type RenderResult struct {
	PNG      []byte
	FinalURL string
	Duration time.Duration
}

// ProbeResult reports what a lightweight fetch saw before the browser runs.
type ProbeResult struct {
	FinalURL   string
	StatusCode int
	Gone       bool
}

// Event is the message published to subscribers when a capture artifact
// lands in blob storage.
type Event struct {
	JobID       string    `json:"job_id"`
	URL         string    `json:"url"`
	ObjectName  string    `json:"object"`
	BlobURI     string    `json:"blob_uri"`
	FileURL     string    `json:"file_url,omitempty"`
	ContentHash string    `json:"hash"`
	SizeBytes   int64     `json:"size"`
	CapturedAt  time.Time `json:"timestamp"`
}

// JobResult summarizes a finished job for callers polling its status.
type JobResult struct {
	Job   Job          `json:"job"`
	Shots []ShotRecord `json:"shots"`
}
