// Package pipeline executes the capture flow shared by the synchronous
// endpoint and the async workers: probe, render, frame, hash, store, record,
// publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"time"

	"go.uber.org/zap"

	"tweetshot/internal/capture"
	"tweetshot/internal/frame"
	"tweetshot/internal/metrics"
)

// ErrTweetGone indicates the probe found a deleted tweet or suspended account.
var ErrTweetGone = errors.New("tweet is gone")

// Config controls pipeline behavior.
type Config struct {
	BlobPrefix  string
	ContentType string
	Topic       string
	JPEGQuality int
	Background  color.Color
}

// Pipeline wires the capture collaborators together.
type Pipeline struct {
	renderer  capture.Renderer
	probe     capture.Probe
	blobStore capture.BlobStore
	jobStore  capture.JobStore
	publisher capture.Publisher
	hasher    capture.Hasher
	clock     capture.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Pipeline. The probe and publisher are optional.
func New(
	renderer capture.Renderer,
	probe capture.Probe,
	blobStore capture.BlobStore,
	jobStore capture.JobStore,
	publisher capture.Publisher,
	hasher capture.Hasher,
	clock capture.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.ContentType == "" {
		cfg.ContentType = "image/jpeg"
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 95
	}
	metrics.Init()
	return &Pipeline{
		renderer:  renderer,
		probe:     probe,
		blobStore: blobStore,
		jobStore:  jobStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run captures the tweet and persists the artifact, returning the record.
func (p *Pipeline) Run(ctx context.Context, jobID, url string, opts capture.Options) (capture.ShotRecord, error) {
	start := p.clock.Now()

	shot, err := p.run(ctx, jobID, url, opts, start)
	if err != nil {
		metrics.ObserveCapture("failed", p.clock.Now().Sub(start), 0)
		return capture.ShotRecord{}, err
	}
	metrics.ObserveCapture("succeeded", shot.Duration, shot.SizeBytes)
	return shot, nil
}

func (p *Pipeline) run(
	ctx context.Context,
	jobID, url string,
	opts capture.Options,
	start time.Time,
) (capture.ShotRecord, error) {
	if p.probe != nil {
		probeRes, err := p.probe.Check(ctx, url)
		if err != nil {
			// A failed probe is advisory only; the browser may still
			// succeed where a bare GET was blocked.
			p.logger.Warn("probe failed", zap.String("job_id", jobID), zap.String("url", url), zap.Error(err))
		} else if probeRes.Gone {
			return capture.ShotRecord{}, fmt.Errorf("%w: %s", ErrTweetGone, url)
		}
	}

	rendered, err := p.renderer.Render(ctx, capture.RenderRequest{JobID: jobID, URL: url, Options: opts})
	if err != nil {
		return capture.ShotRecord{}, fmt.Errorf("render: %w", err)
	}
	p.logger.Debug("tweet rendered",
		zap.String("job_id", jobID),
		zap.String("url", url),
		zap.Duration("render_duration", rendered.Duration),
	)

	framed, err := frame.SquareJPEG(rendered.PNG, frame.Options{
		Background:  p.cfg.Background,
		JPEGQuality: p.cfg.JPEGQuality,
	})
	if err != nil {
		return capture.ShotRecord{}, fmt.Errorf("frame: %w", err)
	}

	hash, err := p.hasher.Hash(framed.JPEG)
	if err != nil {
		return capture.ShotRecord{}, fmt.Errorf("hash artifact: %w", err)
	}

	objectName := capture.ObjectName(url, opts.Filename, start, jobID)
	blobPath := p.buildBlobPath(objectName)
	uri, err := p.blobStore.PutObject(ctx, blobPath, p.cfg.ContentType, framed.JPEG)
	if err != nil {
		return capture.ShotRecord{}, fmt.Errorf("put object: %w", err)
	}

	now := p.clock.Now()
	shot := capture.ShotRecord{
		JobID:       jobID,
		URL:         url,
		FinalURL:    rendered.FinalURL,
		ObjectName:  objectName,
		BlobURI:     uri,
		FileURL:     fileURL(uri),
		ContentHash: hash,
		SizeBytes:   int64(len(framed.JPEG)),
		Width:       framed.Width,
		Height:      framed.Height,
		CapturedAt:  now,
		Duration:    now.Sub(start),
		DurationMs:  now.Sub(start).Milliseconds(),
	}
	if err := p.jobStore.RecordShot(ctx, shot); err != nil {
		return capture.ShotRecord{}, fmt.Errorf("record shot: %w", err)
	}

	if err := p.publishResult(ctx, shot); err != nil {
		return capture.ShotRecord{}, err
	}
	return shot, nil
}

func (p *Pipeline) buildBlobPath(objectName string) string {
	prefix := strings.Trim(p.cfg.BlobPrefix, "/")
	if prefix == "" {
		return objectName
	}
	return fmt.Sprintf("%s/%s", prefix, objectName)
}

// fileURL keeps http(s) URIs as-is (MinIO public URLs); scheme-only URIs such
// as gs:// or memory:// have no directly fetchable form.
func fileURL(uri string) string {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	return ""
}

func (p *Pipeline) publishResult(ctx context.Context, shot capture.ShotRecord) error {
	if p.cfg.Topic == "" || p.publisher == nil {
		return nil
	}
	event := capture.Event{
		JobID:       shot.JobID,
		URL:         shot.URL,
		ObjectName:  shot.ObjectName,
		BlobURI:     shot.BlobURI,
		FileURL:     shot.FileURL,
		ContentHash: shot.ContentHash,
		SizeBytes:   shot.SizeBytes,
		CapturedAt:  shot.CapturedAt,
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, event); err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	p.logger.Info("capture published",
		zap.String("job_id", shot.JobID),
		zap.String("url", shot.URL),
		zap.String("blob_uri", shot.BlobURI),
		zap.String("hash", shot.ContentHash),
	)
	return nil
}
