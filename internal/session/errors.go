package session

import (
	"errors"
)

// Kind classifies session failures so callers can branch without matching
// on message text.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindLaunch          Kind = "launch"
	KindNavigation      Kind = "navigation"
	KindSelectorTimeout Kind = "selector_timeout"
	KindEngine          Kind = "engine"
)

//nolint:staticcheck // returned to API clients verbatim
var errNotFound = errors.New("Session not found")

// Error is the error type returned by Manager operations.
type Error struct {
	Kind      Kind
	Op        string
	SessionID string
	Err       error
}

// Error returns the underlying message unchanged.
func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err. Errors that did not originate in this
// package are engine failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindEngine
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

func newError(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, SessionID: id, Err: err}
}

func notFound(op, id string) *Error {
	return newError(KindNotFound, op, id, errNotFound)
}

func validation(op, id, msg string) *Error {
	return newError(KindValidation, op, id, errors.New(msg))
}
