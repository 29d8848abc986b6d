// Package browsertest provides an in-memory browser.Engine for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ahrdadan/browserd/internal/browser"
)

// Engine is a scripted browser.Engine. Configure failures through the
// exported fields before use; they are read under the engine lock.
type Engine struct {
	mu sync.Mutex

	// LaunchErr, when set, is returned by every Launch call.
	LaunchErr error
	// NavigateErrs is consumed one entry per navigation attempt across all
	// pages; a nil entry means success. Once exhausted navigations succeed.
	NavigateErrs []error
	// CloseErr is returned by Process.Close.
	CloseErr error
	// Elements lists the selectors present on every page, mapped to their
	// text content.
	Elements map[string]string
	// Pages maps URL to the markup returned by HTML after navigating there.
	Pages map[string]string

	processes []*Process
	attempts  int
	events    []string
}

// New returns an engine whose pages contain the given elements.
func New(elements map[string]string) *Engine {
	if elements == nil {
		elements = map[string]string{}
	}
	return &Engine{Elements: elements, Pages: map[string]string{}}
}

// Launch implements browser.Engine.
func (e *Engine) Launch(ctx context.Context, profile browser.Profile) (browser.Process, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.LaunchErr != nil {
		return nil, e.LaunchErr
	}

	p := &Process{engine: e, id: len(e.processes) + 1, profile: profile}
	p.page = &Page{process: p}
	e.processes = append(e.processes, p)
	e.events = append(e.events, fmt.Sprintf("launch %d", p.id))
	return p, nil
}

// Processes returns every process launched so far in launch order.
func (e *Engine) Processes() []*Process {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Process, len(e.processes))
	copy(out, e.processes)
	return out
}

// Attempts returns the number of navigation attempts made.
func (e *Engine) Attempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts
}

// Events returns the ordered launch/close log, e.g. "launch 1", "close 1".
func (e *Engine) Events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	copy(out, e.events)
	return out
}

func (e *Engine) nextNavigateErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts++
	if len(e.NavigateErrs) == 0 {
		return nil
	}
	err := e.NavigateErrs[0]
	e.NavigateErrs = e.NavigateErrs[1:]
	return err
}

// Process is a fake browser process.
type Process struct {
	engine  *Engine
	id      int
	profile browser.Profile
	page    *Page

	mu     sync.Mutex
	closed bool
}

// Page implements browser.Process.
func (p *Process) Page() browser.Page {
	return p.page
}

// Close implements browser.Process.
func (p *Process) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.engine.mu.Lock()
	defer p.engine.mu.Unlock()
	p.engine.events = append(p.engine.events, fmt.Sprintf("close %d", p.id))
	return p.engine.CloseErr
}

// Closed reports whether Close has been called.
func (p *Process) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Profile returns the stealth profile the process was launched with.
func (p *Process) Profile() browser.Profile {
	return p.profile
}

// FakePage returns the concrete fake page.
func (p *Process) FakePage() *Page {
	return p.page
}

// Page is a fake page recording the actions performed on it.
type Page struct {
	process *Process

	mu      sync.Mutex
	url     string
	focused string
	typed   map[string]string
	clicks  []string
	scrolls []string
}

// Navigate implements browser.Page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.process.engine.nextNavigateErr(); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

// HTML implements browser.Page.
func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	url := p.url
	p.mu.Unlock()

	e := p.process.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if html, ok := e.Pages[url]; ok {
		return html, nil
	}
	return fmt.Sprintf("<html><head></head><body>%s</body></html>", url), nil
}

// WaitElement implements browser.Page. Missing elements block until ctx is
// done, like a real selector wait.
func (p *Page) WaitElement(ctx context.Context, selector string) error {
	if p.has(selector) {
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("element not found: %s: %w", selector, ctx.Err())
}

// Click implements browser.Page.
func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.require(selector); err != nil {
		return err
	}
	p.mu.Lock()
	p.clicks = append(p.clicks, selector)
	p.mu.Unlock()
	return nil
}

// Focus implements browser.Page.
func (p *Page) Focus(ctx context.Context, selector string) error {
	if err := p.require(selector); err != nil {
		return err
	}
	p.mu.Lock()
	p.focused = selector
	p.mu.Unlock()
	return nil
}

// InsertText implements browser.Page by appending to the focused element.
func (p *Page) InsertText(ctx context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.focused == "" {
		return errors.New("no element focused")
	}
	if p.typed == nil {
		p.typed = map[string]string{}
	}
	p.typed[p.focused] += text
	return nil
}

// ScrollIntoView implements browser.Page.
func (p *Page) ScrollIntoView(ctx context.Context, selector string) error {
	if err := p.require(selector); err != nil {
		return err
	}
	p.mu.Lock()
	p.scrolls = append(p.scrolls, selector)
	p.mu.Unlock()
	return nil
}

// Text implements browser.Page.
func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	e := p.process.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	text, ok := e.Elements[selector]
	if !ok {
		return "", fmt.Errorf("element not found: %s", selector)
	}
	return text, nil
}

// URL returns the last successfully navigated URL.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Typed returns the text inserted into selector.
func (p *Page) Typed(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typed[selector]
}

// Clicks returns the clicked selectors in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Scrolls returns the selectors scrolled into view in order.
func (p *Page) Scrolls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.scrolls...)
}

func (p *Page) has(selector string) bool {
	e := p.process.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.Elements[selector]
	return ok
}

func (p *Page) require(selector string) error {
	if !p.has(selector) {
		return fmt.Errorf("element not found: %s", selector)
	}
	return nil
}
