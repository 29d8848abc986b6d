package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default navigation retry settings.
const (
	DefaultMaxAttempts    = 3
	DefaultRetryBackoff   = 2 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// RetryPolicy bounds how often and how long an operation is attempted.
type RetryPolicy struct {
	MaxAttempts    int
	Backoff        time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns 3 attempts, 2s apart, 30s each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		Backoff:        DefaultRetryBackoff,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Do calls fn until it succeeds or the attempts are used up, waiting a fixed
// backoff between attempts. Each call gets its own AttemptTimeout deadline.
// When every attempt fails the error of the last one is returned. onRetry,
// if set, is called after each failed attempt that will be retried.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error, onRetry func(attempt int, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		attemptCtx, cancel := withTimeout(ctx, p.AttemptTimeout)
		defer cancel()
		return struct{}{}, fn(attemptCtx, attempt)
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Backoff)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(time.Duration(attempts) * (p.AttemptTimeout + p.Backoff + time.Second)),
	}
	if onRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, _ time.Duration) {
			onRetry(attempt, err)
		}))
	}

	_, err := backoff.Retry(ctx, op, opts...)
	return err
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
