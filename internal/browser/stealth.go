package browser

import (
	"math/rand/v2"
)

// Viewport represents browser window dimensions in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Profile is the stealth configuration applied to a page before its first
// navigation.
type Profile struct {
	UserAgent string            `json:"userAgent"`
	Viewport  Viewport          `json:"viewport"`
	Headers   map[string]string `json:"-"`
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// Viewport bounds used when randomizing dimensions.
const (
	MinViewportWidth  = 1280
	MaxViewportWidth  = 1920
	MinViewportHeight = 720
	MaxViewportHeight = 1080
)

// UserAgents returns the fixed set of user agents profiles are drawn from.
func UserAgents() []string {
	out := make([]string, len(userAgents))
	copy(out, userAgents)
	return out
}

// RandomProfile picks a user agent from the fixed set and a viewport inside
// the configured bounds.
func RandomProfile() Profile {
	return Profile{
		UserAgent: userAgents[rand.IntN(len(userAgents))],
		Viewport: Viewport{
			Width:  MinViewportWidth + rand.IntN(MaxViewportWidth-MinViewportWidth+1),
			Height: MinViewportHeight + rand.IntN(MaxViewportHeight-MinViewportHeight+1),
		},
		Headers: defaultHeaders(),
	}
}

func defaultHeaders() map[string]string {
	return map[string]string{
		"Accept-Language":           "en-US,en;q=0.9",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Upgrade-Insecure-Requests": "1",
	}
}

// maskScript runs before any page script and hides the markers left behind
// by automation that the stealth bundle does not cover.
const maskScript = `(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	if (!window.chrome) {
		window.chrome = { runtime: {} };
	}
	const query = window.navigator.permissions && window.navigator.permissions.query;
	if (query) {
		window.navigator.permissions.query = (parameters) =>
			parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: query.call(window.navigator.permissions, parameters);
	}
})();`
