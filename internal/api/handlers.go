package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tweetshot/internal/capture"
)

// captureRequest mirrors the public capture contract. Pointer fields
// distinguish "omitted" from a deliberate zero.
type captureRequest struct {
	URL              string   `json:"url"`
	Mode             *int     `json:"mode"`
	NightMode        *int     `json:"night_mode"`
	Lang             *string  `json:"lang"`
	ShowParentTweets *bool    `json:"show_parent_tweets"`
	ShowParentLimit  *int     `json:"show_parent_limit"`
	ShowMentions     *int     `json:"show_mentions"`
	Radius           *int     `json:"radius"`
	Scale            *float64 `json:"scale"`
	WaitTime         *float64 `json:"wait_time"`
	HidePhotos       bool     `json:"hide_photos"`
	HideVideos       bool     `json:"hide_videos"`
	HideGifs         bool     `json:"hide_gifs"`
	HideQuotes       bool     `json:"hide_quotes"`
	HideLinkPreviews bool     `json:"hide_link_previews"`
	HideAllMedia     bool     `json:"hide_all_medias"`
	Filename         string   `json:"filename"`
}

type captureResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	FileURL        string  `json:"file_url,omitempty"`
	Filename       string  `json:"filename,omitempty"`
	FileSize       int64   `json:"file_size,omitempty"`
	ProcessingTime float64 `json:"processing_time"`
}

// captureSync runs the whole pipeline inside the request and returns the
// stored file details. Capture failures come back as success=false rather
// than an HTTP error so callers can distinguish bad input from a bad tweet.
func (s *Server) captureSync(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeCaptureRequest(w, r)
	if !ok {
		return
	}

	jobID, err := s.createJob(r.Context(), req.URL, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	start := s.clock.Now()
	if err := s.jobStore.UpdateJobStatus(r.Context(), jobID, capture.JobStatusRunning, "", capture.JobCounters{}); err != nil {
		s.logger.Error("update job status failed", zap.String("job_id", jobID), zap.Error(err))
	}

	shot, err := s.pipeline.Run(r.Context(), jobID, req.URL, opts)
	elapsed := s.clock.Now().Sub(start).Seconds()
	if err != nil {
		s.finishJob(r.Context(), jobID, capture.JobStatusFailed, err.Error(), capture.JobCounters{ShotsFailed: 1})
		writeJSON(w, http.StatusOK, captureResponse{
			Success:        false,
			Message:        fmt.Sprintf("Error: %s", err),
			ProcessingTime: elapsed,
		})
		return
	}
	s.finishJob(r.Context(), jobID, capture.JobStatusSucceeded, "", capture.JobCounters{ShotsSucceeded: 1})

	writeJSON(w, http.StatusOK, captureResponse{
		Success:        true,
		Message:        "Tweet captured successfully",
		FileURL:        shot.FileURL,
		Filename:       shot.ObjectName,
		FileSize:       shot.SizeBytes,
		ProcessingTime: elapsed,
	})
}

// submitCapture queues the capture for the worker pool and returns the job ID.
func (s *Server) submitCapture(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeCaptureRequest(w, r)
	if !ok {
		return
	}

	jobID, err := s.createJob(r.Context(), req.URL, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	item := capture.QueueItem{
		JobID:     jobID,
		URL:       req.URL,
		Options:   opts,
		Attempt:   1,
		Submitted: s.clock.Now(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.finishJob(r.Context(), jobID, capture.JobStatusFailed, err.Error(), capture.JobCounters{})
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) decodeCaptureRequest(w http.ResponseWriter, r *http.Request) (captureRequest, capture.Options, bool) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return captureRequest{}, capture.Options{}, false
	}
	if err := capture.ValidateTweetURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return captureRequest{}, capture.Options{}, false
	}
	opts, err := s.toOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return captureRequest{}, capture.Options{}, false
	}
	return req, opts, true
}

func (s *Server) toOptions(req captureRequest) (capture.Options, error) {
	opts := s.defaultOptions()

	opts.Mode = valueOrDefault(req.Mode, opts.Mode)
	opts.NightMode = valueOrDefault(req.NightMode, opts.NightMode)
	opts.Lang = valueOrDefault(req.Lang, opts.Lang)
	opts.ShowParentTweets = valueOrDefault(req.ShowParentTweets, opts.ShowParentTweets)
	opts.ParentLimit = valueOrDefault(req.ShowParentLimit, opts.ParentLimit)
	opts.ShowMentions = valueOrDefault(req.ShowMentions, opts.ShowMentions)
	opts.Radius = valueOrDefault(req.Radius, opts.Radius)
	opts.Scale = valueOrDefault(req.Scale, opts.Scale)
	if req.WaitTime != nil {
		opts.Wait = time.Duration(*req.WaitTime * float64(time.Second))
	}
	opts.HideAllMedia = req.HideAllMedia
	opts.HidePhotos = req.HidePhotos
	opts.HideVideos = req.HideVideos
	opts.HideGifs = req.HideGifs
	opts.HideQuotes = req.HideQuotes
	opts.HideLinkPreviews = req.HideLinkPreviews
	opts.Filename = req.Filename

	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return capture.Options{}, err
	}
	return opts, nil
}

// defaultOptions seeds request options from the configured capture defaults.
func (s *Server) defaultOptions() capture.Options {
	opts := capture.DefaultOptions()
	opts.Mode = s.cfg.Capture.Mode
	opts.NightMode = s.cfg.Capture.NightMode
	if s.cfg.Capture.Lang != "" {
		opts.Lang = s.cfg.Capture.Lang
	}
	if s.cfg.Capture.Radius > 0 {
		opts.Radius = s.cfg.Capture.Radius
	}
	if s.cfg.Capture.Scale > 0 {
		opts.Scale = s.cfg.Capture.Scale
	}
	if w := s.cfg.DefaultWait(); w > 0 {
		opts.Wait = w
	}
	return opts
}

func (s *Server) createJob(ctx context.Context, url string, opts capture.Options) (string, error) {
	jobID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	job := capture.Job{
		ID:      jobID,
		URL:     url,
		Options: opts,
		Status:  capture.JobStatusQueued,
		Created: s.clock.Now(),
	}
	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	return jobID, nil
}

func (s *Server) finishJob(ctx context.Context, jobID string, status capture.JobStatus, errText string, counters capture.JobCounters) {
	if err := s.jobStore.UpdateJobStatus(ctx, jobID, status, errText, counters); err != nil {
		s.logger.Error("final job status update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}
