package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahrdadan/browserd/internal/api"
	"github.com/ahrdadan/browserd/internal/browser"
	"github.com/ahrdadan/browserd/internal/config"
	"github.com/ahrdadan/browserd/internal/events"
	"github.com/ahrdadan/browserd/internal/metrics"
	"github.com/ahrdadan/browserd/internal/security"
	"github.com/ahrdadan/browserd/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Parse CLI flags and environment
	cfg := config.ParseFlags()

	// Handle --version and --help
	config.HandleFlags(cfg)

	log := initLogger(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	log.Info("Starting server",
		zap.String("app", config.AppName),
		zap.String("version", config.Version),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Chrome setup
	chromeBin, err := browser.ResolveChrome(ctx, cfg.ChromeBin, cfg.DownloadChrome, cfg.ChromeRevision)
	if err != nil {
		log.Fatal("Failed to locate Chrome", zap.Error(err))
	}
	log.Info("Using Chrome", zap.String("bin", chromeBin), zap.Bool("headless", cfg.Headless))

	engine := browser.NewChromeEngine(browser.LaunchConfig{
		Bin:      chromeBin,
		Headless: cfg.Headless,
	}, log)

	// Lifecycle events: WebSocket hub, plus NATS when configured
	hub := events.NewHub()
	defer hub.Close()

	publishers := events.Multi{hub}
	if cfg.NatsURL != "" {
		natsPub, err := events.ConnectNATS(cfg.NatsURL, config.AppName, log)
		if err != nil {
			log.Warn("NATS unavailable, events stay in-process", zap.Error(err))
		} else {
			defer func() { _ = natsPub.Close() }()
			publishers = append(publishers, natsPub)
		}
	}

	collector := metrics.NewCollector("browserd")

	// Session manager
	ageSource, err := session.ParseAgeSource(cfg.ReapBy)
	if err != nil {
		log.Fatal("Invalid reap-by", zap.Error(err))
	}
	opts := session.DefaultOptions()
	opts.IdleTimeout = cfg.IdleTimeout
	opts.ReapInterval = cfg.ReapInterval
	opts.AgeSource = ageSource
	opts.ElementTimeout = cfg.ElementTimeout
	opts.Retry = session.RetryPolicy{
		MaxAttempts:    cfg.NavAttempts,
		Backoff:        cfg.NavBackoff,
		AttemptTimeout: cfg.NavTimeout,
	}
	if !cfg.Humanize {
		opts.Humanizer = session.NoopHumanizer{}
	}
	opts.Logger = log
	opts.Events = publishers
	opts.Metrics = collector

	manager := session.NewManager(engine, opts)
	manager.StartReaper(ctx)

	rateLimiter := security.NewRateLimiter(security.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit,
		Burst:             cfg.RateBurst,
	})
	if rateLimiter.Enabled() {
		rateLimiter.StartCleanup(ctx, 10*time.Minute)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      config.AppName,
		ErrorHandler: api.ErrorHandler,
		BodyLimit:    50 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	// Setup routes
	api.SetupRoutes(app, manager, api.RouteConfig{
		Hub:         hub,
		Metrics:     collector,
		RateLimiter: rateLimiter,
		Logger:      log,
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		log.Info("Shutting down server...", zap.String("signal", sig.String()))
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		manager.ShutdownAll(shutdownCtx)

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("Error during shutdown", zap.Error(err))
		}
	}()

	// Start server
	addr := cfg.Addr()
	log.Info("Starting server", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
	log.Info("Server stopped")
}

func initLogger(levelName, format string) *zap.Logger {
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		format = "json"
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      format == "console",
		Encoding:         format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	return l
}
