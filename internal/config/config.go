package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Version is the current version of Browserd
	Version = "1"
	// AppName is the application name
	AppName = "Browserd"
)

// Config holds all configuration options for the Browserd server
type Config struct {
	// Server
	Host string
	Port int

	// Logging
	LogLevel  string
	LogFormat string // json or console

	// Chrome
	ChromeBin      string
	DownloadChrome bool
	ChromeRevision int
	Headless       bool

	// Sessions
	IdleTimeout    time.Duration
	ReapInterval   time.Duration
	ReapBy         string // activity or identifier
	NavAttempts    int
	NavBackoff     time.Duration
	NavTimeout     time.Duration
	ElementTimeout time.Duration
	Humanize       bool

	// Security
	RateLimit int // requests per minute per client, 0 disables
	RateBurst int

	// Events
	NatsURL string

	// Flags
	ShowVersion bool
	ShowHelp    bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           3001,
		LogLevel:       "info",
		LogFormat:      "json",
		ChromeBin:      "",
		DownloadChrome: false,
		ChromeRevision: 0,
		Headless:       true,
		IdleTimeout:    30 * time.Minute,
		ReapInterval:   5 * time.Minute,
		ReapBy:         "activity",
		NavAttempts:    3,
		NavBackoff:     2 * time.Second,
		NavTimeout:     30 * time.Second,
		ElementTimeout: 10 * time.Second,
		Humanize:       true,
		RateLimit:      600,
		RateBurst:      50,
		NatsURL:        "",
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("log format %q must be json or console", c.LogFormat))
	}
	if c.ReapBy != "activity" && c.ReapBy != "identifier" {
		errs = append(errs, fmt.Errorf("reap-by %q must be activity or identifier", c.ReapBy))
	}
	if c.NavAttempts < 1 {
		errs = append(errs, errors.New("nav-attempts must be at least 1"))
	}
	if c.IdleTimeout <= 0 || c.ReapInterval <= 0 {
		errs = append(errs, errors.New("idle-timeout and reap-interval must be positive"))
	}
	if c.NavTimeout <= 0 || c.ElementTimeout <= 0 {
		errs = append(errs, errors.New("nav-timeout and element-timeout must be positive"))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate-limit and rate-burst cannot be negative"))
	}
	return errors.Join(errs...)
}

// loadDotEnv loads a .env file from the working directory, if present.
// Variables already set in the environment take precedence.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("HOST", &cfg.Host)
	num("PORT", &cfg.Port)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("CHROME_BIN", &cfg.ChromeBin)
	boolean("DOWNLOAD_CHROME", &cfg.DownloadChrome)
	num("CHROME_REVISION", &cfg.ChromeRevision)
	boolean("HEADLESS", &cfg.Headless)
	duration("IDLE_TIMEOUT", &cfg.IdleTimeout)
	duration("REAP_INTERVAL", &cfg.ReapInterval)
	str("REAP_BY", &cfg.ReapBy)
	num("NAV_ATTEMPTS", &cfg.NavAttempts)
	duration("NAV_BACKOFF", &cfg.NavBackoff)
	duration("NAV_TIMEOUT", &cfg.NavTimeout)
	duration("ELEMENT_TIMEOUT", &cfg.ElementTimeout)
	boolean("HUMANIZE", &cfg.Humanize)
	num("RATE_LIMIT", &cfg.RateLimit)
	num("RATE_BURST", &cfg.RateBurst)
	str("NATS_URL", &cfg.NatsURL)

	return errors.Join(errs...)
}

// Parse builds a config from defaults, the environment and args, in that
// order of precedence (last wins).
func Parse(args []string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	if lookup != nil {
		if err := applyEnv(cfg, lookup); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	registerFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.ReapBy = strings.ToLower(cfg.ReapBy)
	if cfg.ShowHelp || cfg.ShowVersion {
		return cfg, nil
	}
	return cfg, cfg.Validate()
}

func registerFlags(fs *flag.FlagSet, cfg *Config) {
	// Server flags
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Host address to bind the server")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Port number for the server")

	// Logging flags
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")

	// Chrome flags
	fs.StringVar(&cfg.ChromeBin, "chrome-bin", cfg.ChromeBin, "Path to the Chrome/Chromium binary")
	fs.BoolVar(&cfg.DownloadChrome, "download-chrome", cfg.DownloadChrome, "Download Chromium when no binary is found")
	fs.IntVar(&cfg.ChromeRevision, "chrome-revision", cfg.ChromeRevision, "Chromium revision to download (0 uses default)")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run browsers headless")

	// Session flags
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Evict sessions idle longer than this")
	fs.DurationVar(&cfg.ReapInterval, "reap-interval", cfg.ReapInterval, "How often idle sessions are reaped")
	fs.StringVar(&cfg.ReapBy, "reap-by", cfg.ReapBy, "Session age source (activity, identifier)")
	fs.IntVar(&cfg.NavAttempts, "nav-attempts", cfg.NavAttempts, "Navigation attempts before giving up")
	fs.DurationVar(&cfg.NavBackoff, "nav-backoff", cfg.NavBackoff, "Pause between navigation attempts")
	fs.DurationVar(&cfg.NavTimeout, "nav-timeout", cfg.NavTimeout, "Timeout of a single navigation attempt")
	fs.DurationVar(&cfg.ElementTimeout, "element-timeout", cfg.ElementTimeout, "Element wait timeout for interactions")
	fs.BoolVar(&cfg.Humanize, "humanize", cfg.Humanize, "Add human-like delays to navigation and typing")

	// Security flags
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Requests per minute per client (0 disables)")
	fs.IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "Burst size per client")

	// Events flags
	fs.StringVar(&cfg.NatsURL, "nats-url", cfg.NatsURL, "Publish session events to this NATS server")

	// Other flags
	fs.BoolVar(&cfg.ShowVersion, "version", cfg.ShowVersion, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", cfg.ShowHelp, "Show help message")
}

// ParseFlags parses the command line and environment and returns the config.
// It exits on invalid input.
func ParseFlags() *Config {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg, err := Parse(os.Args[1:], os.LookupEnv)
	if errors.Is(err, flag.ErrHelp) {
		PrintHelp()
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		PrintHelp()
		os.Exit(2)
	}
	return cfg
}

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("%s v%s\n", AppName, Version)
}

// PrintHelp prints help information
func PrintHelp() {
	d := DefaultConfig()
	fmt.Printf(`%s v%s (headless browser sessions)

Usage:
  ./server [flags]

Every flag can also be set through the environment (e.g. PORT, NATS_URL)
or a .env file in the working directory.

Server:
  --host             %s
  --port             %d

Logging:
  --log-level        %s
  --log-format       %s (json, console)

Chrome:
  --chrome-bin       (auto-detect)
  --download-chrome  %v
  --chrome-revision  %d
  --headless         %v

Sessions:
  --idle-timeout     %s
  --reap-interval    %s
  --reap-by          %s (activity, identifier)
  --nav-attempts     %d
  --nav-backoff      %s
  --nav-timeout      %s
  --element-timeout  %s
  --humanize         %v

Security:
  --rate-limit       %d (requests per minute, 0 disables)
  --rate-burst       %d

Events:
  --nats-url         (disabled)

Other:
  --version          show version
  --help             show this help

`, AppName, Version,
		d.Host, d.Port,
		d.LogLevel, d.LogFormat,
		d.DownloadChrome, d.ChromeRevision, d.Headless,
		d.IdleTimeout, d.ReapInterval, d.ReapBy, d.NavAttempts, d.NavBackoff, d.NavTimeout, d.ElementTimeout, d.Humanize,
		d.RateLimit, d.RateBurst)
}

// HandleFlags handles version and help flags, exits if needed
func HandleFlags(cfg *Config) {
	if cfg.ShowVersion {
		PrintVersion()
		os.Exit(0)
	}

	if cfg.ShowHelp {
		PrintHelp()
		os.Exit(0)
	}
}
