package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrdadan/browserd/internal/browser"
	"github.com/ahrdadan/browserd/internal/events"
	"github.com/ahrdadan/browserd/internal/metrics"
	"go.uber.org/zap"
)

// Default timeouts for element operations.
const (
	DefaultElementTimeout = 10 * time.Second
	DefaultWaitTimeout    = 30 * time.Second
	DefaultIdleTimeout    = 30 * time.Minute
	DefaultReapInterval   = 5 * time.Minute
)

// Options configures a Manager. Zero values fall back to the defaults.
type Options struct {
	IdleTimeout    time.Duration
	ReapInterval   time.Duration
	AgeSource      AgeSource
	ElementTimeout time.Duration
	WaitTimeout    time.Duration
	Retry          RetryPolicy
	Humanizer      Humanizer
	Profile        func() browser.Profile
	Now            func() time.Time
	Logger         *zap.Logger
	Events         events.Publisher
	Metrics        *metrics.Collector
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		IdleTimeout:    DefaultIdleTimeout,
		ReapInterval:   DefaultReapInterval,
		AgeSource:      AgeFromActivity,
		ElementTimeout: DefaultElementTimeout,
		WaitTimeout:    DefaultWaitTimeout,
		Retry:          DefaultRetryPolicy(),
		Humanizer:      DefaultHumanizer(),
		Profile:        browser.RandomProfile,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = d.IdleTimeout
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = d.ReapInterval
	}
	if o.AgeSource == "" {
		o.AgeSource = d.AgeSource
	}
	if o.ElementTimeout <= 0 {
		o.ElementTimeout = d.ElementTimeout
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = d.WaitTimeout
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = d.Retry
	}
	if o.Humanizer == nil {
		o.Humanizer = d.Humanizer
	}
	if o.Profile == nil {
		o.Profile = d.Profile
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Manager owns the session registry and drives the browser engine on behalf
// of API requests.
type Manager struct {
	engine   browser.Engine
	registry *Registry
	locks    keyedMutex
	opts     Options
	logger   *zap.Logger
}

// NewManager creates a manager that launches browsers through engine.
func NewManager(engine browser.Engine, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		engine:   engine,
		registry: NewRegistry(),
		opts:     opts,
		logger:   opts.Logger.With(zap.String("component", "session")),
	}
}

// Registry exposes the underlying session registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Options returns the effective configuration.
func (m *Manager) Options() Options {
	return m.opts
}

// Launch starts a fresh browser for id and navigates it to url. A session
// already registered under id is closed first.
func (m *Manager) Launch(ctx context.Context, id, url string) error {
	if id == "" || url == "" {
		return validation("launch", id, "sessionId and url are required")
	}

	unlock := m.locks.Lock(id)
	defer unlock()

	if old, ok := m.registry.Remove(id); ok {
		m.teardown(old, events.TypeReplaced)
	}

	profile := m.opts.Profile()
	process, err := m.engine.Launch(ctx, profile)
	if err != nil {
		m.opts.Metrics.RecordLaunch("launch_error")
		m.publish(events.TypeFailed, id, url, err.Error())
		m.logger.Error("Failed to launch browser", zap.String("session_id", id), zap.Error(err))
		return newError(KindLaunch, "launch", id, err)
	}

	if err := m.navigate(ctx, id, process.Page(), url); err != nil {
		if cerr := process.Close(); cerr != nil {
			m.logger.Warn("Failed to close browser after navigation failure",
				zap.String("session_id", id), zap.Error(cerr))
		}
		m.opts.Metrics.RecordLaunch("navigation_error")
		m.publish(events.TypeFailed, id, url, err.Error())
		return newError(KindNavigation, "launch", id, err)
	}

	m.registry.Put(id, newSession(id, url, profile, process, m.opts.Now()))
	m.opts.Metrics.RecordLaunch("ok")
	m.opts.Metrics.SetActiveSessions(m.registry.Len())
	m.publish(events.TypeLaunched, id, url, "")

	m.logger.Info("Browser launched",
		zap.String("session_id", id),
		zap.String("url", url),
		zap.String("user_agent", profile.UserAgent),
	)
	return nil
}

// Navigate loads url in the page of an existing session.
func (m *Manager) Navigate(ctx context.Context, id, url string) error {
	if id == "" || url == "" {
		return validation("navigate", id, "sessionId and url are required")
	}
	s, err := m.lookup("navigate", id)
	if err != nil {
		return err
	}

	if err := sleepWithContext(ctx, m.opts.Humanizer.PreNavigate()); err != nil {
		return newError(KindNavigation, "navigate", id, err)
	}

	s.setURL(url)
	err = m.navigate(ctx, id, s.page(), url)
	s.touch(m.opts.Now())
	if err != nil {
		m.publish(events.TypeFailed, id, url, err.Error())
		return newError(KindNavigation, "navigate", id, err)
	}

	m.publish(events.TypeNavigated, id, url, "")
	return nil
}

// HTML returns the serialized markup of the session's page.
func (m *Manager) HTML(ctx context.Context, id string) (string, error) {
	s, err := m.lookup("html", id)
	if err != nil {
		return "", err
	}
	defer s.touch(m.opts.Now())

	html, err := s.page().HTML(ctx)
	if err != nil {
		return "", newError(KindEngine, "html", id, err)
	}
	return html, nil
}

// Click waits for selector and clicks it.
func (m *Manager) Click(ctx context.Context, id, selector string) error {
	if id == "" || selector == "" {
		return validation("click", id, "sessionId and selector are required")
	}
	return m.withElement(ctx, "click", id, selector, m.opts.ElementTimeout, func(ctx context.Context, page browser.Page) error {
		return page.Click(ctx, selector)
	})
}

// Fill waits for selector, focuses it and types value one character at a
// time.
func (m *Manager) Fill(ctx context.Context, id, selector, value string) error {
	if id == "" || selector == "" {
		return validation("fill", id, "sessionId, selector, and value are required")
	}
	return m.withElement(ctx, "fill", id, selector, m.opts.ElementTimeout, func(ctx context.Context, page browser.Page) error {
		if err := page.Focus(ctx, selector); err != nil {
			return err
		}
		for _, r := range value {
			if err := page.InsertText(ctx, string(r)); err != nil {
				return err
			}
			if err := sleepWithContext(ctx, m.opts.Humanizer.Keystroke()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Wait blocks until selector is present or timeout elapses. A non-positive
// timeout uses the configured wait timeout.
func (m *Manager) Wait(ctx context.Context, id, selector string, timeout time.Duration) error {
	if id == "" || selector == "" {
		return validation("wait", id, "sessionId and selector are required")
	}
	if timeout <= 0 {
		timeout = m.opts.WaitTimeout
	}
	return m.withElement(ctx, "wait", id, selector, timeout, nil)
}

// Scroll waits for selector and scrolls it into view.
func (m *Manager) Scroll(ctx context.Context, id, selector string) error {
	if id == "" || selector == "" {
		return validation("scroll", id, "sessionId and selector are required")
	}
	return m.withElement(ctx, "scroll", id, selector, m.opts.ElementTimeout, func(ctx context.Context, page browser.Page) error {
		return page.ScrollIntoView(ctx, selector)
	})
}

// ExtractText waits for selector and returns its text content.
func (m *Manager) ExtractText(ctx context.Context, id, selector string) (string, error) {
	if id == "" || selector == "" {
		return "", validation("extract", id, "sessionId and selector are required")
	}
	var text string
	err := m.withElement(ctx, "extract", id, selector, m.opts.ElementTimeout, func(ctx context.Context, page browser.Page) error {
		var err error
		text, err = page.Text(ctx, selector)
		return err
	})
	return text, err
}

// Close shuts down the session's browser and forgets the session. The entry
// is removed even when the browser fails to close.
func (m *Manager) Close(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, ok := m.registry.Remove(id)
	if !ok {
		return notFound("close", id)
	}
	m.opts.Metrics.SetActiveSessions(m.registry.Len())
	m.opts.Metrics.RecordSessionClosed("closed")

	if err := s.close(); err != nil {
		m.publish(events.TypeFailed, id, s.URL(), err.Error())
		return newError(KindEngine, "close", id, err)
	}
	m.publish(events.TypeClosed, id, s.URL(), "")
	m.logger.Info("Session closed", zap.String("session_id", id))
	return nil
}

// List returns a snapshot of every active session.
func (m *Manager) List() []Info {
	entries := m.registry.Entries()
	out := make([]Info, 0, len(entries))
	for _, s := range entries {
		out = append(out, s.Info())
	}
	return out
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	return m.registry.Len()
}

// ShutdownAll closes every session and returns how many were closed.
// Individual failures are logged.
func (m *Manager) ShutdownAll(ctx context.Context) int {
	closed := 0
	for _, s := range m.registry.Entries() {
		if ctx.Err() != nil {
			m.logger.Warn("Shutdown interrupted", zap.Int("remaining", m.registry.Len()))
			break
		}
		if m.evict(s, events.TypeShutdown) {
			closed++
		}
	}
	m.logger.Info("All sessions shut down", zap.Int("closed", closed))
	return closed
}

func (m *Manager) lookup(op, id string) (*Session, error) {
	s, ok := m.registry.Get(id)
	if !ok {
		return nil, notFound(op, id)
	}
	return s, nil
}

// withElement waits for selector within timeout and then runs action, if
// any, under the same deadline.
func (m *Manager) withElement(ctx context.Context, op, id, selector string, timeout time.Duration, action func(context.Context, browser.Page) error) error {
	s, err := m.lookup(op, id)
	if err != nil {
		return err
	}
	defer s.touch(m.opts.Now())

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := s.page()
	if err := page.WaitElement(opCtx, selector); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || opCtx.Err() != nil {
			return newError(KindSelectorTimeout, op, id,
				fmt.Errorf("waiting for selector %q failed: %dms exceeded", selector, timeout.Milliseconds()))
		}
		return newError(KindEngine, op, id, err)
	}
	if action == nil {
		return nil
	}
	if err := action(opCtx, page); err != nil {
		return newError(KindEngine, op, id, err)
	}
	return nil
}

func (m *Manager) navigate(ctx context.Context, id string, page browser.Page, url string) error {
	return m.opts.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		err := page.Navigate(ctx, url)
		m.opts.Metrics.RecordNavigationAttempt(err)
		return err
	}, func(attempt int, err error) {
		m.logger.Warn("Navigation attempt failed",
			zap.String("session_id", id),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", m.opts.Retry.MaxAttempts),
			zap.Error(err),
		)
	})
}

// teardown closes a session that is no longer registered. Failures are
// logged only.
func (m *Manager) teardown(s *Session, reason events.Type) {
	if err := s.close(); err != nil {
		m.logger.Warn("Failed to close browser",
			zap.String("session_id", s.ID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
	}
	m.opts.Metrics.RecordSessionClosed(string(reason))
	m.opts.Metrics.SetActiveSessions(m.registry.Len())
	m.publish(reason, s.ID, s.URL(), "")
}

// evict removes s under its id lock and tears it down. It reports false when
// the entry was already replaced or closed.
func (m *Manager) evict(s *Session, reason events.Type) bool {
	unlock := m.locks.Lock(s.ID)
	defer unlock()

	if !m.registry.RemoveIf(s.ID, s) {
		return false
	}
	m.teardown(s, reason)
	return true
}

func (m *Manager) publish(t events.Type, id, url, message string) {
	if m.opts.Events == nil {
		return
	}
	ev := events.New(t, id)
	ev.URL = url
	ev.Message = message
	m.opts.Events.Publish(ev)
}
