package handshake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	d       time.Duration
	fn      func()
	repeat  bool
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler records timers; tests fire them by hand.
type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{d: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Every(d time.Duration, fn func()) Timer {
	t := &fakeTimer{d: d, fn: fn, repeat: true}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) fire(repeat bool) {
	for _, t := range s.timers {
		if t.repeat == repeat && !t.stopped {
			if !t.repeat {
				t.stopped = true
			}
			t.fn()
		}
	}
}

func (s *fakeScheduler) active() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type post struct {
	window, text, origin string
}

type fakeTransport struct {
	posts     []post
	listeners map[int]func(Message)
	next      int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{listeners: make(map[int]func(Message))}
}

func (f *fakeTransport) PostMessage(_ context.Context, window, text, origin string) error {
	f.posts = append(f.posts, post{window, text, origin})
	return nil
}

func (f *fakeTransport) Listen(fn func(Message)) func() {
	id := f.next
	f.next++
	f.listeners[id] = fn
	return func() { delete(f.listeners, id) }
}

func (f *fakeTransport) deliver(msg Message) {
	for _, fn := range f.listeners {
		fn(msg)
	}
}

var target = Target{Window: "w7", ID: "yt-iframe-x"}

func TestSession_ReadyCleansUp(t *testing.T) {
	sched := &fakeScheduler{}
	tr := newFakeTransport()
	s := NewSession(Config{}, sched, tr, target)

	var calls int
	var got error
	s.Start(context.Background(), func(err error) { calls++; got = err })

	require.Equal(t, Listening, s.State())
	require.Len(t, tr.posts, 1, "announcement is sent immediately")
	assert.Equal(t, "w7", tr.posts[0].window)
	assert.Equal(t, "*", tr.posts[0].origin)
	assert.JSONEq(t, `{"event":"listening","id":"yt-iframe-x"}`, tr.posts[0].text)
	assert.Equal(t, 2, sched.active())

	sched.fire(true)
	sched.fire(true)
	assert.Len(t, tr.posts, 3, "announcement repeats on the interval")

	tr.deliver(Message{Origin: "https://www.youtube.com", Source: "w7", Data: `{"event":"onReady"}`})

	assert.Equal(t, Ready, s.State())
	assert.Equal(t, 1, calls)
	assert.NoError(t, got)
	assert.Equal(t, 0, sched.active())
	assert.Empty(t, tr.listeners)

	sched.fire(true)
	sched.fire(false)
	assert.Len(t, tr.posts, 3, "no announcements after Ready")
	assert.Equal(t, 1, calls)
}

func TestSession_IgnoresRejectedMessages(t *testing.T) {
	sched := &fakeScheduler{}
	tr := newFakeTransport()
	s := NewSession(Config{}, sched, tr, target)
	s.Start(context.Background(), func(error) {})

	tr.deliver(Message{Origin: "https://www.youtube.com", Source: "w8", Data: `{"event":"onReady"}`})
	tr.deliver(Message{Origin: "https://other.example", Source: "w7", Data: `{"event":"onReady"}`})
	tr.deliver(Message{Origin: "https://www.youtube.com", Source: "w7", Data: `garbage`})

	assert.Equal(t, Listening, s.State())
	assert.Len(t, tr.listeners, 1)
}

func TestSession_TimeoutCleansUp(t *testing.T) {
	sched := &fakeScheduler{}
	tr := newFakeTransport()
	s := NewSession(Config{}, sched, tr, target)

	var calls int
	var got error
	s.Start(context.Background(), func(err error) { calls++; got = err })

	var deadline *fakeTimer
	for _, tm := range sched.timers {
		if !tm.repeat {
			deadline = tm
		}
	}
	require.NotNil(t, deadline)
	assert.Equal(t, 10*time.Second, deadline.d)

	sched.fire(false)

	assert.Equal(t, TimedOut, s.State())
	assert.ErrorIs(t, got, ErrTimeout)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, sched.active())
	assert.Empty(t, tr.listeners)

	tr.deliver(Message{Origin: "https://www.youtube.com", Source: "w7", Data: `{"event":"onReady"}`})
	assert.Equal(t, 1, calls, "late readiness is ignored")
}

func TestSession_DefaultInterval(t *testing.T) {
	sched := &fakeScheduler{}
	s := NewSession(Config{}, sched, newFakeTransport(), target)
	s.Start(context.Background(), func(error) {})

	for _, tm := range sched.timers {
		if tm.repeat {
			assert.Equal(t, 300*time.Millisecond, tm.d)
		}
	}
}

func TestSession_StartTwiceIsNoop(t *testing.T) {
	sched := &fakeScheduler{}
	tr := newFakeTransport()
	s := NewSession(Config{}, sched, tr, target)
	s.Start(context.Background(), func(error) {})
	s.Start(context.Background(), func(error) {})

	assert.Len(t, tr.listeners, 1)
	assert.Len(t, sched.timers, 2)
}
