package sink

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by a sink whose breaker is open.
var ErrCircuitOpen = errors.New("sink: circuit open")

// breakerState of a Breaker.
type breakerState int

const (
	breakerClosed   breakerState = iota // deliveries pass through
	breakerOpen                         // deliveries are refused
	breakerHalfOpen                     // one probe at a time
)

// Breaker stops a failing backend from being retried on every event. After
// threshold consecutive failures it opens; once cooldown has passed it lets
// a single probe through and closes again on success.
type Breaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int
	probing   bool
	openedAt  time.Time
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// NewBreaker creates a Breaker. Defaults: 5 failures, 30s cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a delivery may be attempted now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = breakerHalfOpen
		b.probing = true
		return true
	case breakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// Success records a delivered event.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failures = 0
	b.probing = false
}

// Failure records a failed delivery.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if b.state == breakerHalfOpen {
		b.trip()
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.trip()
	}
}

// Release records an attempt abandoned by its caller. It counts neither way,
// but an interrupted probe sends the breaker back to open so the next caller
// after cooldown can probe again.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerHalfOpen && b.probing {
		b.probing = false
		b.state = breakerOpen
	}
}

func (b *Breaker) trip() {
	b.state = breakerOpen
	b.openedAt = b.now()
	b.failures = 0
}

// Open reports whether deliveries are currently refused.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == breakerOpen && b.now().Sub(b.openedAt) < b.cooldown
}
