package renderer

import (
	"fmt"
	"strings"

	"tweetshot/internal/capture"
)

// hideChromeScript removes page furniture that would bleed into the shot:
// cookie banners, sign-up prompts, the sticky bottom bar and side rails.
const hideChromeScript = `(() => {
	const selectors = [
		'div[data-testid="BottomBar"]',
		'div[data-testid="sheetDialog"]',
		'div[data-testid="mask"]',
		'#layers div[role="dialog"]',
		'header[role="banner"]',
		'div[data-testid="sidebarColumn"]',
	];
	for (const sel of selectors) {
		for (const el of document.querySelectorAll(sel)) {
			el.style.display = 'none';
		}
	}
	return true;
})();`

// mediaSelectors maps each hide option to the testids it suppresses.
var mediaSelectors = map[string][]string{
	"photos":        {`div[data-testid="tweetPhoto"]`},
	"videos":        {`div[data-testid="videoPlayer"]`, `div[data-testid="videoComponent"]`},
	"gifs":          {`div[data-testid="tweetPhoto"] video`, `div[data-testid="placementTracking"]`},
	"quotes":        {`div[role="link"][tabindex="0"]`},
	"link_previews": {`div[data-testid="card.wrapper"]`},
}

// BuildHideScript assembles the JavaScript that hides media and trims the
// tweet according to the requested options. Exported for tests; the script
// runs inside the page after the tweet article is visible.
func BuildHideScript(opts capture.Options) string {
	var selectors []string
	add := func(keys ...string) {
		for _, key := range keys {
			selectors = append(selectors, mediaSelectors[key]...)
		}
	}
	if opts.HideAllMedia {
		add("photos", "videos", "gifs", "quotes", "link_previews")
	} else {
		if opts.HidePhotos {
			add("photos")
		}
		if opts.HideVideos {
			add("videos")
		}
		if opts.HideGifs {
			add("gifs")
		}
		if opts.HideQuotes {
			add("quotes")
		}
		if opts.HideLinkPreviews {
			add("link_previews")
		}
	}

	// Mode trims progressively more tweet furniture. Mode 3 and 4 show
	// everything; 2 drops the action bar, 1 also the engagement counts,
	// 0 additionally the timestamp line.
	if opts.Mode <= 2 {
		selectors = append(selectors, `div[role="group"]:not([aria-label=""])`)
	}
	if opts.Mode <= 1 {
		selectors = append(selectors, `a[href$="/retweets"]`, `a[href$="/likes"]`, `a[href*="/retweets/with_comments"]`)
	}
	if opts.Mode == 0 {
		selectors = append(selectors, `article[data-testid="tweet"] time`, `a[href*="/status/"][aria-label]`)
	}

	var b strings.Builder
	b.WriteString("(() => {\n")
	for _, sel := range selectors {
		fmt.Fprintf(&b, "\tfor (const el of document.querySelectorAll('%s')) { el.style.display = 'none'; }\n", sel)
	}
	if !opts.ShowParentTweets {
		// Drop every conversation cell except the one holding the tweet.
		b.WriteString(`	const cells = document.querySelectorAll('div[data-testid="cellInnerDiv"]');
	let kept = false;
	for (const cell of cells) {
		const hasTweet = cell.querySelector('article[data-testid="tweet"]');
		if (hasTweet && !kept) { kept = true; continue; }
		cell.style.display = 'none';
	}
`)
	} else if opts.ParentLimit >= 0 {
		fmt.Fprintf(&b, `	const cells = Array.from(document.querySelectorAll('div[data-testid="cellInnerDiv"]'));
	const main = cells.findIndex((c) => c.querySelector('article[data-testid="tweet"][tabindex="-1"]'));
	if (main > %d) {
		for (let i = 0; i < main-%d; i++) { cells[i].style.display = 'none'; }
	}
`, opts.ParentLimit, opts.ParentLimit)
	}
	if opts.ShowMentions > 0 {
		fmt.Fprintf(&b, `	const replies = Array.from(document.querySelectorAll('div[data-testid="cellInnerDiv"]'));
	const anchor = replies.findIndex((c) => c.querySelector('article[data-testid="tweet"][tabindex="-1"]'));
	if (anchor >= 0) {
		for (let i = anchor + 1 + %d; i < replies.length; i++) { replies[i].style.display = 'none'; }
	}
`, opts.ShowMentions)
	}
	b.WriteString("\treturn true;\n})();")
	return b.String()
}

// BuildStyleScript rounds the tweet corners and clears the page background so
// the element screenshot has clean edges.
func BuildStyleScript(opts capture.Options) string {
	return fmt.Sprintf(`(() => {
	for (const el of document.querySelectorAll('article[data-testid="tweet"]')) {
		el.style.borderRadius = '%dpx';
		el.style.overflow = 'hidden';
	}
	document.body.style.overflow = 'hidden';
	return true;
})();`, opts.Radius)
}
