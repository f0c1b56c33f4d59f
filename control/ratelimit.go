// control/ratelimit.go
//
// Bounded-rate error logging, so a persistently failing poll loop logs at
// most once per window instead of busy-looping the log.

package control

import (
	"sync"
	"time"
)

// ErrorRateLimiter allows at most one Allow() per window to return true.
type ErrorRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
}

// NewErrorRateLimiter builds a limiter admitting at most one event per
// window.
func NewErrorRateLimiter(window time.Duration) *ErrorRateLimiter {
	return &ErrorRateLimiter{window: window}
}

// Allow reports whether the caller should act (e.g. log) now, given the
// window since the last time Allow returned true.
func (l *ErrorRateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Sub(l.last) < l.window {
		return false
	}
	l.last = now
	return true
}
