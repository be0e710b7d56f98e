// Package eventloop is a single-goroutine cooperative scheduler. Posted
// closures and timer callbacks all run on the goroutine executing Run, so
// state touched only from callbacks needs no locking.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop executes posted closures in FIFO order.
type Loop struct {
	queue  chan func()
	done   chan struct{}
	once   sync.Once
	active atomic.Int64
}

// New creates a Loop whose queue holds up to size pending closures before
// Post blocks. Default: 256.
func New(size int) *Loop {
	if size <= 0 {
		size = 256
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post queues fn. It returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Run executes queued closures until ctx is cancelled. A Loop runs once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Active returns the number of timers that are armed and not yet stopped.
func (l *Loop) Active() int { return int(l.active.Load()) }

// Timer is a single-shot or repeating callback delivered through the loop.
// After Stop returns, the callback never runs again.
type Timer struct {
	loop    *Loop
	stopped atomic.Bool
	t       *time.Timer
	quit    chan struct{}
}

// Stop cancels the timer. It returns false if it was already stopped or,
// for a single-shot timer, had already fired.
func (t *Timer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	t.loop.active.Add(-1)
	if t.t != nil {
		t.t.Stop()
	}
	if t.quit != nil {
		close(t.quit)
	}
	return true
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{loop: l}
	l.active.Add(1)
	tm.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if tm.stopped.Swap(true) {
				return
			}
			l.active.Add(-1)
			fn()
		})
	})
	return tm
}

// Every runs fn on the loop every d until the timer is stopped. Ticks that
// arrive while a previous one is still queued are dropped.
func (l *Loop) Every(d time.Duration, fn func()) *Timer {
	tm := &Timer{loop: l, quit: make(chan struct{})}
	l.active.Add(1)

	var queued atomic.Bool
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-tm.quit:
				return
			case <-l.done:
				return
			case <-ticker.C:
				if queued.Swap(true) {
					continue
				}
				l.Post(func() {
					queued.Store(false)
					if tm.stopped.Load() {
						return
					}
					fn()
				})
			}
		}
	}()
	return tm
}
