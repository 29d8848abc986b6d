package api

import (
	"github.com/ahrdadan/browserd/internal/events"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// EventStream pushes session lifecycle events to WebSocket clients.
type EventStream struct {
	hub    *events.Hub
	logger *zap.Logger
}

// NewEventStream creates a stream backed by hub.
func NewEventStream(hub *events.Hub, logger *zap.Logger) *EventStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventStream{hub: hub, logger: logger.With(zap.String("component", "events"))}
}

// Handle streams events to one connection. The optional sessionId query
// parameter narrows the stream to a single session.
func (s *EventStream) Handle(c *websocket.Conn) {
	sessionID := c.Query("sessionId")

	ch := s.hub.Subscribe(sessionID)
	defer s.hub.Unsubscribe(sessionID, ch)

	// The client never sends anything meaningful; reading detects disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case event, ok := <-ch:
			if !ok {
				_ = c.Close()
				return
			}
			if err := c.WriteJSON(event); err != nil {
				s.logger.Debug("Event stream write failed", zap.String("session_id", sessionID), zap.Error(err))
				return
			}
		}
	}
}
