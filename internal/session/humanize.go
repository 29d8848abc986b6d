package session

import (
	"context"
	"math/rand/v2"
	"time"
)

// Humanizer produces the delays used to mimic a person driving the browser.
type Humanizer interface {
	// PreNavigate is the pause before a navigation to an open session.
	PreNavigate() time.Duration
	// Keystroke is the pause after each typed character.
	Keystroke() time.Duration
}

// RandomHumanizer draws delays uniformly from the configured ranges.
type RandomHumanizer struct {
	NavigateMin  time.Duration
	NavigateMax  time.Duration
	KeystrokeMin time.Duration
	KeystrokeMax time.Duration
}

// DefaultHumanizer waits 1-3s before navigating and 50-150ms between keys.
func DefaultHumanizer() RandomHumanizer {
	return RandomHumanizer{
		NavigateMin:  time.Second,
		NavigateMax:  3 * time.Second,
		KeystrokeMin: 50 * time.Millisecond,
		KeystrokeMax: 150 * time.Millisecond,
	}
}

func (h RandomHumanizer) PreNavigate() time.Duration {
	return between(h.NavigateMin, h.NavigateMax)
}

func (h RandomHumanizer) Keystroke() time.Duration {
	return between(h.KeystrokeMin, h.KeystrokeMax)
}

// NoopHumanizer never waits.
type NoopHumanizer struct{}

func (NoopHumanizer) PreNavigate() time.Duration { return 0 }
func (NoopHumanizer) Keystroke() time.Duration   { return 0 }

func between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// sleepWithContext pauses for d unless ctx finishes first.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
