package api

import (
	"context"
	"errors"
	"time"

	"github.com/ahrdadan/browserd/internal/session"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Sessions is the session lifecycle the handlers drive.
type Sessions interface {
	Launch(ctx context.Context, id, url string) error
	Navigate(ctx context.Context, id, url string) error
	HTML(ctx context.Context, id string) (string, error)
	Click(ctx context.Context, id, selector string) error
	Fill(ctx context.Context, id, selector, value string) error
	Wait(ctx context.Context, id, selector string, timeout time.Duration) error
	Scroll(ctx context.Context, id, selector string) error
	ExtractText(ctx context.Context, id, selector string) (string, error)
	Close(ctx context.Context, id string) error
	List() []session.Info
	Count() int
}

// Handler handles API requests
type Handler struct {
	sessions Sessions
	logger   *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(sessions Sessions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions: sessions,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ActionResponse is returned by operations without a payload.
type ActionResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// StatusCode maps a session error kind to its HTTP status.
func StatusCode(kind session.Kind) int {
	switch kind {
	case session.KindValidation:
		return fiber.StatusBadRequest
	case session.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler is the custom error handler for Fiber
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	var se *session.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.As(err, &se):
		code = StatusCode(se.Kind)
	}

	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	ActiveSessions int    `json:"activeSessions"`
}

// HealthCheck returns health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ActiveSessions: h.sessions.Count(),
	})
}

// SessionsResponse lists active sessions.
type SessionsResponse struct {
	Sessions []session.Info `json:"sessions"`
	Count    int            `json:"count"`
}

// ListSessions returns a snapshot of every active session
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	list := h.sessions.List()
	return c.JSON(SessionsResponse{Sessions: list, Count: len(list)})
}

// URLRequest carries a session and a target URL.
type URLRequest struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// LaunchBrowser starts a browser for the session and opens the URL
func (h *Handler) LaunchBrowser(c *fiber.Ctx) error {
	var req URLRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.SessionID == "" || req.URL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "sessionId and url are required")
	}

	if err := h.sessions.Launch(c.UserContext(), req.SessionID, req.URL); err != nil {
		return err
	}

	return c.JSON(ActionResponse{
		Success:   true,
		Message:   "Browser launched successfully",
		SessionID: req.SessionID,
	})
}

// Navigate loads a URL in an existing session
func (h *Handler) Navigate(c *fiber.Ctx) error {
	var req URLRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.SessionID == "" || req.URL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "sessionId and url are required")
	}

	if err := h.sessions.Navigate(c.UserContext(), req.SessionID, req.URL); err != nil {
		return err
	}
	return c.JSON(ActionResponse{Success: true, Message: "Navigation successful"})
}

// PageHTML returns the current markup of the session's page
func (h *Handler) PageHTML(c *fiber.Ctx) error {
	html, err := h.sessions.HTML(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"html": html})
}

// SelectorRequest carries a session and a CSS selector.
type SelectorRequest struct {
	SessionID string `json:"sessionId"`
	Selector  string `json:"selector"`
}

func (h *Handler) parseSelector(c *fiber.Ctx) (SelectorRequest, error) {
	var req SelectorRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.SessionID == "" || req.Selector == "" {
		return req, fiber.NewError(fiber.StatusBadRequest, "sessionId and selector are required")
	}
	return req, nil
}

// ClickElement clicks an element once it is present
func (h *Handler) ClickElement(c *fiber.Ctx) error {
	req, err := h.parseSelector(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Click(c.UserContext(), req.SessionID, req.Selector); err != nil {
		return err
	}
	return c.JSON(ActionResponse{Success: true, Message: "Element clicked successfully"})
}

// FillRequest carries the text to type. Value may be empty but not absent.
type FillRequest struct {
	SessionID string  `json:"sessionId"`
	Selector  string  `json:"selector"`
	Value     *string `json:"value"`
}

// FillInput types a value into an input element
func (h *Handler) FillInput(c *fiber.Ctx) error {
	var req FillRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.SessionID == "" || req.Selector == "" || req.Value == nil {
		return fiber.NewError(fiber.StatusBadRequest, "sessionId, selector, and value are required")
	}

	if err := h.sessions.Fill(c.UserContext(), req.SessionID, req.Selector, *req.Value); err != nil {
		return err
	}
	return c.JSON(ActionResponse{Success: true, Message: "Input filled successfully"})
}

// WaitRequest carries an optional timeout in milliseconds.
type WaitRequest struct {
	SessionID string `json:"sessionId"`
	Selector  string `json:"selector"`
	Timeout   int    `json:"timeout"`
}

// WaitForElement blocks until an element is present
func (h *Handler) WaitForElement(c *fiber.Ctx) error {
	var req WaitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.SessionID == "" || req.Selector == "" {
		return fiber.NewError(fiber.StatusBadRequest, "sessionId and selector are required")
	}

	timeout := time.Duration(req.Timeout) * time.Millisecond
	if err := h.sessions.Wait(c.UserContext(), req.SessionID, req.Selector, timeout); err != nil {
		return err
	}
	return c.JSON(ActionResponse{Success: true, Message: "Element found"})
}

// ScrollToElement scrolls an element into view
func (h *Handler) ScrollToElement(c *fiber.Ctx) error {
	req, err := h.parseSelector(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Scroll(c.UserContext(), req.SessionID, req.Selector); err != nil {
		return err
	}
	return c.JSON(ActionResponse{Success: true, Message: "Scrolled to element"})
}

// ExtractText returns the text content of an element
func (h *Handler) ExtractText(c *fiber.Ctx) error {
	req, err := h.parseSelector(c)
	if err != nil {
		return err
	}
	text, err := h.sessions.ExtractText(c.UserContext(), req.SessionID, req.Selector)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"text": text})
}

// CloseSession shuts the session's browser down
func (h *Handler) CloseSession(c *fiber.Ctx) error {
	id := c.Params("sessionId")
	if err := h.sessions.Close(c.UserContext(), id); err != nil {
		if !session.IsNotFound(err) {
			h.logger.Warn("Session close failed", zap.String("session_id", id), zap.Error(err))
		}
		return err
	}
	return c.JSON(ActionResponse{Success: true, Message: "Session closed"})
}
