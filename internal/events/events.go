package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies a session lifecycle transition.
type Type string

const (
	TypeLaunched  Type = "launched"
	TypeNavigated Type = "navigated"
	TypeReplaced  Type = "replaced"
	TypeClosed    Type = "closed"
	TypeEvicted   Type = "evicted"
	TypeShutdown  Type = "shutdown"
	TypeFailed    Type = "failed"
)

// Event represents a session lifecycle event
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	SessionID string    `json:"sessionId"`
	URL       string    `json:"url,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates an event stamped with a fresh ID and the current time.
func New(t Type, sessionID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher receives lifecycle events. Implementations must not block.
type Publisher interface {
	Publish(event Event)
}

// Multi fans an event out to several publishers.
type Multi []Publisher

// Publish sends event to every non-nil publisher.
func (m Multi) Publish(event Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(event)
		}
	}
}

// AllSessions subscribes to events of every session.
const AllSessions = ""

// Hub manages event subscriptions
type Hub struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
}

// NewHub creates a new event hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe creates a subscription for one session's events, or for every
// session when sessionID is AllSessions.
func (h *Hub) Subscribe(sessionID string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 16)
	h.subscribers[sessionID] = append(h.subscribers[sessionID], ch)
	return ch
}

// Unsubscribe removes a subscription
func (h *Hub) Unsubscribe(sessionID string, ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[sessionID]
	for i, sub := range subs {
		if sub == ch {
			h.subscribers[sessionID] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}

	if len(h.subscribers[sessionID]) == 0 {
		delete(h.subscribers, sessionID)
	}
}

// Publish delivers event to the session's subscribers and to subscribers of
// all sessions. Slow subscribers miss events rather than block the caller.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	deliver := func(subs []chan Event) {
		for _, ch := range subs {
			select {
			case ch <- event:
			default:
			}
		}
	}

	deliver(h.subscribers[AllSessions])
	if event.SessionID != AllSessions {
		deliver(h.subscribers[event.SessionID])
	}
}

// Close closes all subscriptions
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, subs := range h.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.subscribers, key)
	}
}
