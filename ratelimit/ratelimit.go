// Package ratelimit implements a fixed-window request limiter. A window is
// [resetAt-window, resetAt); when now passes resetAt the counter restarts at
// zero for a fresh window beginning at now. Every check increments the
// counter before deciding, so rejected calls still consume the window — a
// client that keeps retrying never gets back in early.
package ratelimit

import (
	"fmt"
	"time"
)

// WindowStore is the counter backend. The in-memory store is the default;
// the Redis store coordinates limits across instances. Without it the limiter
// is process-local and approximate when several instances run.
type WindowStore interface {
	// Incr atomically increments the counter for key, starting a new window
	// of the given length when none is active, and returns the post-increment
	// count together with the window's reset time.
	Incr(key string, window time.Duration) (count int, resetAt time.Time, err error)
	// Reset clears the window for key so the next call starts fresh.
	Reset(key string) error
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitedError is returned by WithLimit when the wrapped call is blocked.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Limiter decides whether named actions may proceed.
type Limiter struct {
	store WindowStore
	now   func() time.Time
}

// New creates a Limiter backed by the given store.
func New(store WindowStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

func key(action, identifier string) string {
	return action + ":" + identifier
}

// Check increments the counter for (action, identifier) and reports whether
// the post-increment count fits within max for the window. Errors from the
// store fail open: limiting is protection, not a dependency.
func (l *Limiter) Check(action, identifier string, window time.Duration, max int) Decision {
	count, resetAt, err := l.store.Incr(key(action, identifier), window)
	if err != nil {
		return Decision{Allowed: true, Remaining: max}
	}

	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	if count > max {
		retry := resetAt.Sub(l.now())
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// Reset clears the window for (action, identifier). Used by admins to
// unblock a client early.
func (l *Limiter) Reset(action, identifier string) error {
	return l.store.Reset(key(action, identifier))
}

// WithLimit runs fn only when Check allows; otherwise it returns
// *RateLimitedError without invoking fn.
func (l *Limiter) WithLimit(action, identifier string, window time.Duration, max int, fn func() error) error {
	d := l.Check(action, identifier, window, max)
	if !d.Allowed {
		return &RateLimitedError{RetryAfter: d.RetryAfter}
	}
	return fn()
}
