package httpclient

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy controls how many extra attempts a request gets and when.
// The delay is constant across attempts.
type RetryPolicy struct {
	// Retries is the number of attempts after the first one.
	Retries int
	// Delay is the wait between attempts.
	Delay time.Duration
	// ShouldRetry decides whether a failed attempt is retried. Nil selects DefaultShouldRetry.
	ShouldRetry func(*APIError) bool
}

// DefaultShouldRetry retries network failures and 5xx responses only.
func DefaultShouldRetry(err *APIError) bool {
	if err == nil {
		return false
	}
	return err.Kind == NetworkError || err.Kind == ServerError
}

// AlwaysRetry retries every failure except cancellation, which is never retried.
func AlwaysRetry(*APIError) bool { return true }

// NoRetry is a policy making exactly one attempt.
func NoRetry() *RetryPolicy {
	return &RetryPolicy{}
}

// Validate rejects negative retry counts and delays.
func (p *RetryPolicy) Validate() error {
	if p.Retries < 0 {
		return errors.New("retry policy: retries must not be negative")
	}
	if p.Delay < 0 {
		return errors.New("retry policy: delay must not be negative")
	}
	return nil
}

// Attempts returns the total number of attempts the policy allows.
func (p *RetryPolicy) Attempts() int {
	return p.Retries + 1
}

// allows reports whether a retry follows the failed attempt (zero based).
func (p *RetryPolicy) allows(attempt int, err *APIError) bool {
	if attempt >= p.Retries || err.Kind == CancelError {
		return false
	}
	if p.ShouldRetry == nil {
		return DefaultShouldRetry(err)
	}
	return p.ShouldRetry(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
