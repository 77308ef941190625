// Package resilience guards the remote product database call with a
// timeout, a rate limit, and a process-wide circuit breaker.
package resilience

import (
	"sync"
	"time"
)

// Breaker is a consecutive-failure circuit breaker. It opens once the
// failure count inside the rolling window reaches the threshold, half-opens
// after the window elapses, and fully resets on the next success. One
// Breaker is shared by all concurrent requests.
type Breaker struct {
	mu          sync.Mutex
	threshold   int
	window      time.Duration
	failures    int
	lastFailure time.Time
	openedAt    time.Time
	now         func() time.Time
}

// NewBreaker returns a closed breaker. Non-positive settings fall back to
// the stock threshold of 1 failure within 10 seconds.
func NewBreaker(threshold int, window time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &Breaker{threshold: threshold, window: window, now: time.Now}
}

// Allow reports whether a call may proceed. An open breaker lets probe
// calls through again once the window has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openedAt.IsZero() {
		return true
	}
	return b.now().Sub(b.openedAt) >= b.window
}

// Success closes the breaker and clears the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.lastFailure = time.Time{}
	b.openedAt = time.Time{}
}

// Failure records a failed call. Failures older than the window no longer
// count toward the consecutive total.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if !b.lastFailure.IsZero() && now.Sub(b.lastFailure) > b.window {
		b.failures = 0
	}
	b.lastFailure = now
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = now
	}
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	return !b.Allow()
}
