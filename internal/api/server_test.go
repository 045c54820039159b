package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tweetshot/internal/capture"
	"tweetshot/internal/config"
	"tweetshot/internal/dispatcher"
	"tweetshot/internal/hash/sha256"
	"tweetshot/internal/pipeline"
	queuemem "tweetshot/internal/queue/memory"
	storemem "tweetshot/internal/storage/memory"
)

type fakeIDGen struct {
	ids  []string
	next int
}

func (g *fakeIDGen) NewID() (string, error) {
	if g.next >= len(g.ids) {
		return "", errors.New("out of ids")
	}
	id := g.ids[g.next]
	g.next++
	return id, nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type stubRenderer struct {
	err     error
	gotOpts capture.Options
}

func (s *stubRenderer) Render(_ context.Context, req capture.RenderRequest) (capture.RenderResult, error) {
	s.gotOpts = req.Options
	if s.err != nil {
		return capture.RenderResult{}, s.err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 30, 20))); err != nil {
		return capture.RenderResult{}, err
	}
	return capture.RenderResult{PNG: buf.Bytes(), FinalURL: req.URL}, nil
}

type testHarness struct {
	server   *Server
	queue    *queuemem.Queue
	jobStore *storemem.JobStore
	renderer *stubRenderer
}

func newTestHarness(t *testing.T, mutate func(*config.Config)) *testHarness {
	t.Helper()

	cfg := config.Config{
		Server: config.ServerConfig{Port: 8000, TimeoutSeconds: 30},
		Capture: config.CaptureConfig{
			Mode:        3,
			Lang:        "en",
			Radius:      15,
			Scale:       1.0,
			WaitSeconds: 5,
			JPEGQuality: 95,
		},
		Storage: config.StorageConfig{Backend: config.BackendMemory, Prefix: "captures"},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	renderer := &stubRenderer{}
	jobStore := storemem.NewJobStore()
	pl := pipeline.New(
		renderer, nil,
		storemem.NewBlobStore(),
		jobStore,
		nil,
		sha256.New(),
		&fakeClock{now: time.Date(2023, 11, 14, 22, 13, 19, 0, time.UTC)},
		pipeline.Config{BlobPrefix: cfg.Storage.Prefix, JPEGQuality: cfg.Capture.JPEGQuality},
		zap.NewNop(),
	)
	queue := queuemem.NewQueue(8)
	server := NewServer(
		jobStore,
		dispatcher.New(queue, nil),
		pl,
		&fakeIDGen{ids: []string{"job-1", "job-2", "job-3"}},
		&fakeClock{now: time.Date(2023, 11, 14, 22, 13, 19, 0, time.UTC)},
		cfg,
		zap.NewNop(),
	)
	return &testHarness{server: server, queue: queue, jobStore: jobStore, renderer: renderer}
}

func (h *testHarness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	rec := h.do(http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
	require.NotEmpty(t, body["timestamp"])
}

func TestServer_Root(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	rec := h.do(http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "tweetshot")
	require.Contains(t, rec.Body.String(), "POST /capture")
}

func TestServer_CaptureSync_Succeeds(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	rec := h.do(http.MethodPost, "/capture", `{"url":"https://x.com/jack/status/20"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp captureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "Tweet captured successfully", resp.Message)
	require.Contains(t, resp.Filename, "@jack_20_")
	require.Positive(t, resp.FileSize)
	require.Positive(t, resp.ProcessingTime)

	job, err := h.jobStore.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, capture.JobStatusSucceeded, job.Status)

	shots, err := h.jobStore.ListShots(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, shots, 1)
}

func TestServer_CaptureSync_FailureIsNotAnHTTPError(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	h.renderer.err = errors.New("tweet article not found on page")
	rec := h.do(http.MethodPost, "/capture", `{"url":"https://x.com/gone/status/1"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp captureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Contains(t, resp.Message, "Error:")
	require.Empty(t, resp.FileURL)

	job, err := h.jobStore.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, capture.JobStatusFailed, job.Status)
}

func TestServer_CaptureSync_AppliesRequestOptions(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	body := `{
		"url": "https://x.com/jack/status/20",
		"mode": 1,
		"night_mode": 2,
		"scale": 2.5,
		"wait_time": 3,
		"hide_all_medias": true
	}`
	rec := h.do(http.MethodPost, "/capture", body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, h.renderer.gotOpts.Mode)
	require.Equal(t, 2, h.renderer.gotOpts.NightMode)
	require.Equal(t, 2.5, h.renderer.gotOpts.Scale)
	require.Equal(t, 3*time.Second, h.renderer.gotOpts.Wait)
	require.True(t, h.renderer.gotOpts.HideAllMedia)
	// Unset fields keep the configured defaults.
	require.Equal(t, "en", h.renderer.gotOpts.Lang)
	require.Equal(t, 15, h.renderer.gotOpts.Radius)
}

func TestServer_CaptureSync_ExplicitZeroRadius(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	rec := h.do(http.MethodPost, "/capture", `{"url":"https://x.com/jack/status/20","radius":0}`)

	require.Equal(t, http.StatusOK, rec.Code)
	// Radius 0 means square corners and must not be rewritten to the default.
	require.Equal(t, 0, h.renderer.gotOpts.Radius)
}

func TestServer_Capture_RejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{invalid`, "invalid JSON"},
		{"not a tweet url", `{"url":"https://example.com/jack/status/20"}`, "does not look like a tweet"},
		{"mode out of range", `{"url":"https://x.com/jack/status/20","mode":5}`, "mode must be"},
		{"scale out of range", `{"url":"https://x.com/jack/status/20","scale":20}`, "scale must be"},
		{"wait out of range", `{"url":"https://x.com/jack/status/20","wait_time":0.2}`, "wait_time must be"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHarness(t, nil)
			rec := h.do(http.MethodPost, "/capture", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

func TestServer_SubmitCapture_Enqueues(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	rec := h.do(http.MethodPost, "/v1/captures/", `{"url":"https://x.com/jack/status/20"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "job-1")

	item, err := h.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "job-1", item.JobID)
	require.Equal(t, "https://x.com/jack/status/20", item.URL)
	require.Equal(t, 1, item.Attempt)

	job, err := h.jobStore.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, capture.JobStatusQueued, job.Status)
}

func TestServer_JobStatusAndResult(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	rec := h.do(http.MethodPost, "/capture", `{"url":"https://x.com/jack/status/20"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/v1/captures/job-1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"succeeded"`)

	rec = h.do(http.MethodGet, "/v1/captures/job-1/result", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result capture.JobResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Shots, 1)
	require.Contains(t, result.Shots[0].BlobURI, "memory://captures/")

	rec = h.do(http.MethodGet, "/v1/captures/no-such-job/status", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CancelJob(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	rec := h.do(http.MethodPost, "/v1/captures/", `{"url":"https://x.com/jack/status/20"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = h.do(http.MethodPost, "/v1/captures/job-1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	job, err := h.jobStore.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, capture.JobStatusCanceled, job.Status)

	rec = h.do(http.MethodPost, "/v1/captures/no-such-job/cancel", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_APIKeyAuth(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, func(cfg *config.Config) {
		cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "sekrit"}
	})

	rec := h.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RequestIDHeader(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	rec := h.do(http.MethodGet, "/health", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
