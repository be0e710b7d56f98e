package handshake

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrTimeout is returned when no accepted readiness message arrives before
// the session deadline.
var ErrTimeout = errors.New("handshake: timed out waiting for player readiness")

// State of a Session.
type State int

const (
	Idle State = iota
	Listening
	Ready
	TimedOut
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Ready:
		return "ready"
	case TimedOut:
		return "timed_out"
	default:
		return "idle"
	}
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks later on the caller's event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Every(d time.Duration, fn func()) Timer
}

// Transport is the cross-window messaging boundary of the host page.
type Transport interface {
	// PostMessage sends text to the window identified by window.
	PostMessage(ctx context.Context, window, text, targetOrigin string) error
	// Listen registers fn for every inbound message and returns a function
	// removing the registration.
	Listen(fn func(Message)) (remove func())
}

// Config tunes a Session. Zero values take the defaults.
type Config struct {
	// Interval between "listening" announcements. Default: 300ms.
	Interval time.Duration
	// Timeout is the deadline for an accepted message. Default: 10s.
	Timeout time.Duration
	// OriginHosts accepted as senders. Default: DefaultOriginHosts.
	OriginHosts []string
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 300 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if len(c.OriginHosts) == 0 {
		c.OriginHosts = DefaultOriginHosts
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session waits for one frame to confirm readiness. All methods must be
// called from the scheduler's event loop.
type Session struct {
	cfg    Config
	sched  Scheduler
	tr     Transport
	target Target

	ctx      context.Context
	state    State
	ticker   Timer
	deadline Timer
	remove   func()
	done     func(error)
}

// NewSession creates an idle session for target.
func NewSession(cfg Config, sched Scheduler, tr Transport, target Target) *Session {
	cfg.defaults()
	return &Session{cfg: cfg, sched: sched, tr: tr, target: target}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Start enters Listening: registers the listener, announces immediately and
// then on every interval, and arms the deadline. done is called exactly
// once, with nil on Ready or ErrTimeout on TimedOut. Start on a session
// that already left Idle is a no-op.
func (s *Session) Start(ctx context.Context, done func(error)) {
	if s.state != Idle {
		return
	}
	s.ctx = ctx
	s.done = done
	s.state = Listening

	s.remove = s.tr.Listen(s.handle)
	s.announce()
	if s.state != Listening {
		return
	}
	s.ticker = s.sched.Every(s.cfg.Interval, s.announce)
	s.deadline = s.sched.AfterFunc(s.cfg.Timeout, s.expire)
}

func (s *Session) announce() {
	if s.state != Listening {
		return
	}
	err := s.tr.PostMessage(s.ctx, s.target.Window, ListeningText(s.target.ID), "*")
	if err != nil {
		s.cfg.Logger.Debug("handshake: announce failed", "frame", s.target.ID, "error", err)
	}
}

func (s *Session) handle(msg Message) {
	if s.state != Listening {
		return
	}
	if !Accept(msg, s.target, s.cfg.OriginHosts) {
		return
	}
	s.finish(Ready, nil)
}

func (s *Session) expire() {
	if s.state != Listening {
		return
	}
	s.finish(TimedOut, ErrTimeout)
}

func (s *Session) finish(state State, err error) {
	s.state = state
	if s.ticker != nil {
		s.ticker.Stop()
	}
	if s.deadline != nil {
		s.deadline.Stop()
	}
	if s.remove != nil {
		s.remove()
		s.remove = nil
	}
	if s.done != nil {
		s.done(err)
	}
}
