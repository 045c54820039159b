// Package probe performs cheap HTTP pre-flight checks with Colly before a
// browser slot is spent on a capture.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"tweetshot/internal/capture"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Checker implements capture.Probe using the Colly collector.
type Checker struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Checker.
func New(cfg Config) *Checker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	return &Checker{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Check issues a GET against the tweet URL, following redirects, and reports
// whether the target is gone (deleted tweet or suspended account).
func (p *Checker) Check(ctx context.Context, url string) (capture.ProbeResult, error) {
	var (
		result   capture.ProbeResult
		fetchErr error
	)

	collector := p.baseCollector.Clone()
	if p.cfg.UserAgent != "" {
		collector.UserAgent = p.cfg.UserAgent
	}

	collector.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.FinalURL = r.Request.URL.String()
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			result.StatusCode = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				result.FinalURL = r.Request.URL.String()
			}
			// Non-2xx surfaces through OnError; keep the status and
			// decide below instead of failing the probe.
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return capture.ProbeResult{}, fmt.Errorf("probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil && fetchErr == nil && result.StatusCode == 0 {
			fetchErr = err
		}
	}

	if fetchErr != nil {
		return capture.ProbeResult{}, fmt.Errorf("probe %s: %w", url, fetchErr)
	}

	result.Gone = isGone(result)
	return result, nil
}

func isGone(r capture.ProbeResult) bool {
	switch r.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return true
	}
	return strings.Contains(r.FinalURL, "/account/suspended")
}
