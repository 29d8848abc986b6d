package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ahrdadan/browserd/internal/events"
	"go.uber.org/zap"
)

// AgeSource selects how the reaper computes a session's idle age.
type AgeSource string

const (
	// AgeFromActivity measures time since the session was last used.
	AgeFromActivity AgeSource = "activity"
	// AgeFromIdentifier reads a Unix millisecond timestamp from the suffix
	// after the last underscore of the session ID, e.g. "s1_1700000000000".
	AgeFromIdentifier AgeSource = "identifier"
)

// ParseAgeSource validates a configured age source name.
func ParseAgeSource(s string) (AgeSource, error) {
	switch AgeSource(strings.ToLower(strings.TrimSpace(s))) {
	case "", AgeFromActivity:
		return AgeFromActivity, nil
	case AgeFromIdentifier:
		return AgeFromIdentifier, nil
	default:
		return "", fmt.Errorf("unknown age source %q (want %q or %q)", s, AgeFromActivity, AgeFromIdentifier)
	}
}

// IdentifierAge returns the age encoded in id relative to now. ok is false
// when id carries no numeric timestamp suffix.
func IdentifierAge(id string, now time.Time) (age time.Duration, ok bool) {
	i := strings.LastIndexByte(id, '_')
	if i < 0 || i == len(id)-1 {
		return 0, false
	}
	ms, err := strconv.ParseInt(id[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return now.Sub(time.UnixMilli(ms)), true
}

func (m *Manager) age(s *Session, now time.Time) (time.Duration, bool) {
	if m.opts.AgeSource == AgeFromIdentifier {
		return IdentifierAge(s.ID, now)
	}
	return now.Sub(s.LastActivity()), true
}

// ReapIdle evicts every session whose age exceeds the idle timeout and
// returns how many were evicted. Sessions of unknown age are kept.
func (m *Manager) ReapIdle(now time.Time) int {
	evicted := 0
	for _, s := range m.registry.Entries() {
		age, ok := m.age(s, now)
		if !ok || age <= m.opts.IdleTimeout {
			continue
		}
		if m.evict(s, events.TypeEvicted) {
			evicted++
			m.logger.Info("Evicted idle session",
				zap.String("session_id", s.ID),
				zap.Duration("age", age),
			)
		}
	}
	return evicted
}

// StartReaper runs ReapIdle every ReapInterval until ctx is done.
func (m *Manager) StartReaper(ctx context.Context) {
	ticker := time.NewTicker(m.opts.ReapInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.ReapIdle(m.opts.Now()); n > 0 {
					m.logger.Info("Reaper pass complete", zap.Int("evicted", n), zap.Int("active", m.registry.Len()))
				}
			}
		}
	}()
}
