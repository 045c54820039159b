package capture

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Bounds for the tunable capture options.
const (
	ModeMin      = 0
	ModeMax      = 4
	NightModeMin = 0
	NightModeMax = 2
	ScaleMin     = 0.1
	ScaleMax     = 14.0
	WaitMin      = 1 * time.Second
	WaitMax      = 10 * time.Second
)

// Defaults applied when a request leaves an option unset.
const (
	DefaultMode      = 3
	DefaultNightMode = 0
	DefaultLang      = "en"
	DefaultRadius    = 15
	DefaultScale     = 1.0
	DefaultWait      = 5 * time.Second
)

// ErrInvalidTweetURL rejects URLs that do not point at a tweet.
var ErrInvalidTweetURL = errors.New("url does not look like a tweet")

var tweetPathPattern = regexp.MustCompile(`/(\w+)/status/(\d+)`)

// Options controls how a tweet is rendered and framed.
type Options struct {
	// Mode selects how much tweet furniture survives: 0 hides the action
	// bar, counts and timestamp, 3 shows everything, 4 captures the whole
	// conversation region.
	Mode      int    `json:"mode"`
	NightMode int    `json:"night_mode"`
	Lang      string `json:"lang"`

	ShowParentTweets bool `json:"show_parent_tweets"`
	// ParentLimit bounds how many ancestors are kept; -1 keeps all.
	ParentLimit  int `json:"show_parent_limit"`
	ShowMentions int `json:"show_mentions"`

	Radius int           `json:"radius"`
	Scale  float64       `json:"scale"`
	Wait   time.Duration `json:"-"`

	HideAllMedia     bool `json:"hide_all_media,omitempty"`
	HidePhotos       bool `json:"hide_photos,omitempty"`
	HideVideos       bool `json:"hide_videos,omitempty"`
	HideGifs         bool `json:"hide_gifs,omitempty"`
	HideQuotes       bool `json:"hide_quotes,omitempty"`
	HideLinkPreviews bool `json:"hide_link_previews,omitempty"`

	// Filename overrides the derived object name stem.
	Filename string `json:"filename,omitempty"`
}

// DefaultOptions returns the options a bare capture request gets.
func DefaultOptions() Options {
	return Options{
		Mode:        DefaultMode,
		NightMode:   DefaultNightMode,
		Lang:        DefaultLang,
		ParentLimit: -1,
		Radius:      DefaultRadius,
		Scale:       DefaultScale,
		Wait:        DefaultWait,
	}
}

// Normalize fills zero values that have no meaning of their own. Mode,
// NightMode and Radius are left alone because zero is a valid choice for
// each of them.
func (o *Options) Normalize() {
	if o.Lang == "" {
		o.Lang = DefaultLang
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.Wait == 0 {
		o.Wait = DefaultWait
	}
}

// Validate reports the first option outside its allowed range.
func (o Options) Validate() error {
	if o.Mode < ModeMin || o.Mode > ModeMax {
		return fmt.Errorf("mode must be between %d and %d, got %d", ModeMin, ModeMax, o.Mode)
	}
	if o.NightMode < NightModeMin || o.NightMode > NightModeMax {
		return fmt.Errorf("night_mode must be between %d and %d, got %d", NightModeMin, NightModeMax, o.NightMode)
	}
	if o.Scale < ScaleMin || o.Scale > ScaleMax {
		return fmt.Errorf("scale must be between %.1f and %.1f, got %g", ScaleMin, ScaleMax, o.Scale)
	}
	if o.Wait < WaitMin || o.Wait > WaitMax {
		return fmt.Errorf("wait_time must be between %s and %s, got %s", WaitMin, WaitMax, o.Wait)
	}
	if o.Radius < 0 {
		return fmt.Errorf("radius must be >= 0, got %d", o.Radius)
	}
	if o.ParentLimit < -1 {
		return fmt.Errorf("show_parent_limit must be >= -1, got %d", o.ParentLimit)
	}
	if o.ShowMentions < 0 {
		return fmt.Errorf("show_mentions must be >= 0, got %d", o.ShowMentions)
	}
	return nil
}

// ValidateTweetURL accepts only twitter.com and x.com tweet links.
func ValidateTweetURL(rawURL string) error {
	lower := strings.ToLower(rawURL)
	valid := strings.HasPrefix(lower, "https://twitter.com/") ||
		strings.HasPrefix(lower, "https://x.com/") ||
		strings.HasPrefix(lower, "https://mobile.twitter.com/")
	if !valid {
		return fmt.Errorf("%w: %s", ErrInvalidTweetURL, rawURL)
	}
	if !tweetPathPattern.MatchString(rawURL) {
		return fmt.Errorf("%w: %s", ErrInvalidTweetURL, rawURL)
	}
	return nil
}

// ParseTweetURL extracts the username and tweet ID from a tweet URL.
func ParseTweetURL(rawURL string) (user, tweetID string, err error) {
	m := tweetPathPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTweetURL, rawURL)
	}
	return m[1], m[2], nil
}

// ObjectName derives the stored artifact name. Tweet URLs produce
// "@user_id_timestamp.jpg"; a custom filename or an unparseable URL falls
// back to a timestamped name suffixed with a fragment of the job ID so
// repeated captures never collide.
func ObjectName(rawURL, custom string, now time.Time, unique string) string {
	ts := now.UTC().Format("20060102_150405")
	if custom != "" {
		return fmt.Sprintf("%s_%s_%s.jpg", sanitizeFilename(custom), ts, shortID(unique))
	}
	if user, tweetID, err := ParseTweetURL(rawURL); err == nil {
		return fmt.Sprintf("@%s_%s_%s.jpg", user, tweetID, ts)
	}
	return fmt.Sprintf("tweet_%s_%s.jpg", ts, shortID(unique))
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeFilename(name string) string {
	name = strings.TrimSuffix(name, ".jpg")
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "._-")
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
