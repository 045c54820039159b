package capture

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Dequeue once the queue has shut down.
var ErrQueueClosed = errors.New("queue closed")

// JobStore persists jobs and their capture records.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, counters JobCounters) error
	RecordShot(ctx context.Context, shot ShotRecord) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	ListShots(ctx context.Context, jobID string) ([]ShotRecord, error)
}

// BlobStore writes capture artifacts and returns a URI for the stored object.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Publisher emits a capture event and returns the broker message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Renderer produces a screenshot of the tweet named by the request.
type Renderer interface {
	Render(ctx context.Context, request RenderRequest) (RenderResult, error)
}

// Probe checks tweet availability without spinning up a browser tab.
type Probe interface {
	Check(ctx context.Context, url string) (ProbeResult, error)
}

// Queue hands capture work from the dispatcher to workers.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
	Close()
}

// Hasher fingerprints a capture artifact.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints job identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
