// Package ratelimit provides the token bucket that throttles every outbound
// gateway call, queued or not.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultPerSecond is the generic token budget per second.
	DefaultPerSecond = 10

	// windowSettleDivisor sizes the margin a grant stays in the window past
	// one interval (interval/25), so observers timing the calls after Acquire
	// returns never see tokensPerInterval+1 of them inside one interval.
	windowSettleDivisor = 25
)

// ErrExceedsCapacity is returned when a caller asks for more tokens than the
// bucket can ever hold.
var ErrExceedsCapacity = errors.New("ratelimit: request exceeds bucket capacity")

// Limiter is a token bucket holding up to tokensPerInterval tokens and
// refilling continuously at tokensPerInterval/interval. A sliding window in
// front of the bucket keeps the grants in any half-open window of length
// interval at or below tokensPerInterval, so a full bucket followed by its
// refill cannot double the budget. Callers are served in the order their
// Acquire calls reserve tokens.
type Limiter struct {
	limiter  *rate.Limiter
	tokens   int
	interval time.Duration

	window time.Duration

	mu     sync.Mutex
	grants []time.Time // most recent grant times, oldest first, at most tokens long
}

// New creates a limiter granting tokensPerInterval tokens per interval. Non
// positive arguments select DefaultPerSecond tokens per second.
func New(tokensPerInterval int, interval time.Duration) *Limiter {
	if tokensPerInterval <= 0 {
		tokensPerInterval = DefaultPerSecond
	}
	if interval <= 0 {
		interval = time.Second
	}
	every := interval / time.Duration(tokensPerInterval)
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(every), tokensPerInterval),
		tokens:   tokensPerInterval,
		interval: interval,
		window:   interval + interval/windowSettleDivisor,
		grants:   make([]time.Time, 0, tokensPerInterval),
	}
}

// PerSecond creates a limiter granting n tokens per second.
func PerSecond(n int) *Limiter {
	return New(n, time.Second)
}

// Acquire blocks until n tokens are available and debits them. If ctx ends
// first the bucket tokens are returned and ctx.Err() is returned.
func (l *Limiter) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if n > l.tokens {
		return fmt.Errorf("acquire %d tokens from bucket of %d: %w", n, l.tokens, ErrExceedsCapacity)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	r, at, err := l.reserve(now, n)
	if err != nil {
		return err
	}

	delay := at.Sub(now)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		// The bucket tokens come back; the window slots stay booked.
		r.CancelAt(time.Now())
		return ctx.Err()
	}
}

// reserve books n tokens in the bucket and n slots in the window and
// returns when they may be used. Both are booked under one lock so grant
// times never decrease across callers.
func (l *Limiter) reserve(now time.Time, n int) (*rate.Reservation, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := l.limiter.ReserveN(now, n)
	if !r.OK() {
		return nil, time.Time{}, fmt.Errorf("acquire %d tokens: %w", n, ErrExceedsCapacity)
	}

	at := now.Add(r.DelayFrom(now))
	if len(l.grants) > 0 {
		if last := l.grants[len(l.grants)-1]; last.After(at) {
			at = last
		}
	}
	// The grant that must leave the window before n more fit in it.
	if idx := len(l.grants) - l.tokens + n - 1; idx >= 0 {
		if free := l.grants[idx].Add(l.window); free.After(at) {
			at = free
		}
	}

	for range n {
		l.grants = append(l.grants, at)
	}
	if extra := len(l.grants) - l.tokens; extra > 0 {
		l.grants = append(l.grants[:0], l.grants[extra:]...)
	}
	return r, at, nil
}

// Available reports the tokens currently in the bucket. The value is negative
// while reservations are waiting for refill.
func (l *Limiter) Available() float64 {
	return l.limiter.Tokens()
}

// Capacity returns the bucket size.
func (l *Limiter) Capacity() int {
	return l.tokens
}

// Interval returns the refill interval the capacity is expressed against.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
