package session

import (
	"sync"
	"time"

	"github.com/ahrdadan/browserd/internal/browser"
)

// Session pairs one browser process with its active page.
type Session struct {
	ID        string
	CreatedAt time.Time
	Profile   browser.Profile

	process browser.Process

	mu           sync.Mutex
	url          string
	lastActivity time.Time
}

func newSession(id, url string, profile browser.Profile, process browser.Process, now time.Time) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		Profile:      profile,
		process:      process,
		url:          url,
		lastActivity: now,
	}
}

// Info is a read-only snapshot of a session.
type Info struct {
	SessionID    string           `json:"sessionId"`
	URL          string           `json:"url"`
	CreatedAt    time.Time        `json:"createdAt"`
	LastActivity time.Time        `json:"lastActivity"`
	UserAgent    string           `json:"userAgent"`
	Viewport     browser.Viewport `json:"viewport"`
}

// Info returns a snapshot of s.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		SessionID:    s.ID,
		URL:          s.url,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.lastActivity,
		UserAgent:    s.Profile.UserAgent,
		Viewport:     s.Profile.Viewport,
	}
}

// URL returns the last URL requested for the session.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// LastActivity returns when the session was last used.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastActivity) {
		s.lastActivity = now
	}
	s.mu.Unlock()
}

func (s *Session) setURL(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

func (s *Session) page() browser.Page {
	return s.process.Page()
}

func (s *Session) close() error {
	return s.process.Close()
}
