package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// LaunchConfig holds the fixed process configuration used for every launch.
type LaunchConfig struct {
	Bin      string
	Headless bool
}

// chromeFlags disable the sandbox and suppress the automation markers Chrome
// exposes by default.
var chromeFlags = map[flags.Flag][]string{
	"disable-setuid-sandbox":        nil,
	"disable-dev-shm-usage":         nil,
	"disable-accelerated-2d-canvas": nil,
	"no-first-run":                  nil,
	"no-zygote":                     nil,
	"disable-gpu":                   nil,
	"disable-blink-features":        {"AutomationControlled"},
}

// ChromeEngine launches one Chromium process per call through rod.
type ChromeEngine struct {
	cfg    LaunchConfig
	logger *zap.Logger
}

// NewChromeEngine creates a new Chrome engine.
func NewChromeEngine(cfg LaunchConfig, logger *zap.Logger) *ChromeEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeEngine{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "chrome")),
	}
}

// Launch starts Chrome, connects via CDP and opens a stealth page with the
// given profile applied.
func (e *ChromeEngine) Launch(ctx context.Context, profile Profile) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(true).
		Delete("enable-automation")
	if e.cfg.Bin != "" {
		l = l.Bin(e.cfg.Bin)
	}
	for name, values := range chromeFlags {
		l = l.Set(name, values...)
	}

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	proc := &chromeProcess{launcher: l, browser: b}

	page, err := stealth.Page(b)
	if err != nil {
		_ = proc.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	if err := applyProfile(page, profile); err != nil {
		_ = proc.Close()
		return nil, err
	}

	proc.page = &rodPage{page: page}
	e.logger.Debug("chrome started",
		zap.String("endpoint", wsURL),
		zap.String("user_agent", profile.UserAgent),
		zap.Int("viewport_width", profile.Viewport.Width),
		zap.Int("viewport_height", profile.Viewport.Height),
	)
	return proc, nil
}

type chromeProcess struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rodPage

	once     sync.Once
	closeErr error
}

func (p *chromeProcess) Page() Page {
	return p.page
}

// Close closes the browser and kills the process. Safe to call twice.
func (p *chromeProcess) Close() error {
	p.once.Do(func() {
		if err := p.browser.Close(); err != nil {
			p.closeErr = fmt.Errorf("failed to close chrome: %w", err)
		}
		p.launcher.Kill()
		p.launcher.Cleanup()
	})
	return p.closeErr
}

func applyProfile(page *rod.Page, profile Profile) error {
	if profile.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      profile.UserAgent,
			AcceptLanguage: profile.Headers["Accept-Language"],
		}); err != nil {
			return fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	if profile.Viewport.Width > 0 && profile.Viewport.Height > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             profile.Viewport.Width,
			Height:            profile.Viewport.Height,
			DeviceScaleFactor: 1,
		}); err != nil {
			return fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	if len(profile.Headers) > 0 {
		pairs := make([]string, 0, len(profile.Headers)*2)
		for key, value := range profile.Headers {
			pairs = append(pairs, key, value)
		}
		if _, err := page.SetExtraHeaders(pairs); err != nil {
			return fmt.Errorf("failed to set headers: %w", err)
		}
	}

	if _, err := page.EvalOnNewDocument(maskScript); err != nil {
		return fmt.Errorf("failed to inject stealth script: %w", err)
	}

	return nil
}
