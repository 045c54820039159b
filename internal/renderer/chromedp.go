// Package renderer drives headless Chromium via chromedp to screenshot tweets.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"tweetshot/internal/capture"
)

// ErrTweetNotFound indicates the tweet article never rendered, which usually
// means a deleted tweet, a suspended account, or an interstitial.
var ErrTweetNotFound = errors.New("tweet article not found on page")

// Selector for the rendered tweet article.
const tweetSelector = `article[data-testid="tweet"]`

// Config controls the behavior of the renderer.
type Config struct {
	ExecPath          string
	MaxParallel       int
	NavigationTimeout time.Duration
	WindowWidth       int
	WindowHeight      int
	CapturesPerSec    float64
}

// Renderer implements capture.Renderer using chromedp and headless Chrome.
type Renderer struct {
	cfg         Config
	limiter     chan struct{}
	rate        *rate.Limiter
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a renderer backed by a shared exec allocator. The browser
// binary is resolved from cfg.ExecPath (the CHROME_DRIVER path inside the
// container) or chromedp's default lookup when empty.
func New(cfg Config) (*Renderer, error) {
	if cfg.MaxParallel <= 0 {
		return nil, fmt.Errorf("max parallel must be > 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = 1200
	}
	if cfg.WindowHeight <= 0 {
		cfg.WindowHeight = 1600
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	var limit *rate.Limiter
	if cfg.CapturesPerSec > 0 {
		limit = rate.NewLimiter(rate.Limit(cfg.CapturesPerSec), 1)
	}

	return &Renderer{
		cfg:         cfg,
		limiter:     make(chan struct{}, cfg.MaxParallel),
		rate:        limit,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, tearing down the browser.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Render navigates to the tweet and returns an element screenshot as PNG.
func (r *Renderer) Render(ctx context.Context, request capture.RenderRequest) (capture.RenderResult, error) {
	if err := r.acquire(ctx); err != nil {
		return capture.RenderResult{}, err
	}
	defer r.release()

	if r.rate != nil {
		if err := r.rate.Wait(ctx); err != nil {
			return capture.RenderResult{}, fmt.Errorf("capture rate limit: %w", err)
		}
	}

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.cfg.NavigationTimeout+request.Options.Wait)
	defer cancel()

	opts := request.Options
	start := time.Now()

	var (
		png      []byte
		finalURL string
	)
	actions := []chromedp.Action{
		setLanguageAction(opts.Lang),
		nightModeAction(opts.NightMode),
		scaleAction(r.cfg.WindowWidth, r.cfg.WindowHeight, opts.Scale),
		chromedp.Navigate(request.URL),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return capture.RenderResult{}, fmt.Errorf("navigate: %w", err)
	}

	if err := r.waitForTweet(taskCtx); err != nil {
		return capture.RenderResult{}, err
	}

	shot := []chromedp.Action{
		chromedp.Sleep(opts.Wait),
		chromedp.Evaluate(hideChromeScript, nil),
		chromedp.Evaluate(BuildHideScript(opts), nil),
		chromedp.Evaluate(BuildStyleScript(opts), nil),
		chromedp.Location(&finalURL),
		chromedp.ScrollIntoView(shotSelector(opts), chromedp.ByQuery),
		chromedp.Screenshot(shotSelector(opts), &png, chromedp.NodeVisible, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, shot...); err != nil {
		return capture.RenderResult{}, fmt.Errorf("screenshot: %w", err)
	}

	return capture.RenderResult{
		PNG:      png,
		FinalURL: finalURL,
		Duration: time.Since(start),
	}, nil
}

// waitForTweet distinguishes a slow page from a missing tweet. A bounded wait
// for the article that expires while the parent context is still alive means
// the tweet is not there.
func (r *Renderer) waitForTweet(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	defer cancel()

	err := chromedp.Run(waitCtx, chromedp.WaitVisible(tweetSelector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return ErrTweetNotFound
	}
	return fmt.Errorf("wait for tweet: %w", err)
}

func (r *Renderer) acquire(ctx context.Context) error {
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	select {
	case <-r.limiter:
	default:
	}
}

func setLanguageAction(lang string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if lang == "" {
			return nil
		}
		headers := network.Headers{"Accept-Language": lang}
		if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
			return fmt.Errorf("set accept-language: %w", err)
		}
		return nil
	})
}

// nightModeAction seeds the theme cookie the tweet page reads on first load.
func nightModeAction(mode int) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		value := strconv.Itoa(mode)
		for _, domain := range []string{".x.com", ".twitter.com"} {
			err := network.SetCookie("night_mode", value).
				WithDomain(domain).
				WithPath("/").
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set night_mode cookie for %s: %w", domain, err)
			}
		}
		return nil
	})
}

func scaleAction(width, height int, scale float64) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		err := emulation.SetDeviceMetricsOverride(int64(width), int64(height), scale, false).Do(ctx)
		if err != nil {
			return fmt.Errorf("set device metrics: %w", err)
		}
		return nil
	})
}

// shotSelector returns the element to screenshot. With parent tweets the
// whole conversation region is captured, otherwise just the tweet article.
func shotSelector(opts capture.Options) string {
	if opts.ShowParentTweets || opts.Mode == 4 {
		return `section[role="region"]`
	}
	return tweetSelector
}
