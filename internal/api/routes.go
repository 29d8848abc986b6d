package api

import (
	"github.com/ahrdadan/browserd/internal/events"
	"github.com/ahrdadan/browserd/internal/metrics"
	"github.com/ahrdadan/browserd/internal/security"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// RouteConfig holds the collaborators mounted next to the session routes.
// Nil fields disable the corresponding feature.
type RouteConfig struct {
	Hub         *events.Hub
	Metrics     *metrics.Collector
	RateLimiter *security.RateLimiter
	Logger      *zap.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, sessions Sessions, config RouteConfig) {
	handler := NewHandler(sessions, config.Logger)

	app.Use(security.HeadersMiddleware())
	if config.Metrics != nil {
		app.Use(config.Metrics.Middleware())
		app.Get("/metrics", config.Metrics.Handler())
	}

	// Health check and listing are never rate limited
	app.Get("/health", handler.HealthCheck)
	app.Get("/sessions", handler.ListSessions)

	if config.Hub != nil {
		stream := NewEventStream(config.Hub, config.Logger)
		app.Use("/events", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/events", websocket.New(stream.Handle))
	}

	limit := security.RateLimitMiddleware(config.RateLimiter)
	app.Post("/launch-browser", limit, handler.LaunchBrowser)
	app.Post("/navigate", limit, handler.Navigate)
	app.Get("/page-html/:sessionId", limit, handler.PageHTML)
	app.Post("/click-element", limit, handler.ClickElement)
	app.Post("/fill-input", limit, handler.FillInput)
	app.Post("/wait-for-element", limit, handler.WaitForElement)
	app.Post("/scroll-to-element", limit, handler.ScrollToElement)
	app.Post("/extract-text", limit, handler.ExtractText)
	app.Delete("/close-session/:sessionId", limit, handler.CloseSession)
}
