package autoplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/nextplay/autoplay/dom"
	"github.com/hazyhaar/nextplay/autoplay/handshake"
	"github.com/hazyhaar/nextplay/autoplay/internal/config"
	"github.com/hazyhaar/nextplay/autoplay/internal/eventloop"
	"github.com/hazyhaar/nextplay/autoplay/internal/metrics"
	"github.com/hazyhaar/nextplay/autoplay/internal/sink"
	"github.com/hazyhaar/nextplay/autoplay/player"
	"github.com/hazyhaar/nextplay/autoplay/report"
	"github.com/hazyhaar/nextplay/idgen"
)

// ErrFrameNotFound is reported when polling reaches its ceiling without a
// player frame.
var ErrFrameNotFound = errors.New("autoplay: player frame not found")

// ErrStopped is returned by TriggerNow once the orchestrator has stopped.
var ErrStopped = errors.New("autoplay: orchestrator stopped")

// Outcome is the result of one trigger evaluation.
type Outcome int

const (
	OutcomeNoop        Outcome = iota // no next control on the page
	OutcomeDebounced                  // control found but clicked too recently
	OutcomeClicked                    // control clicked
	OutcomeClickFailed                // control found but the click did not go through
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDebounced:
		return "debounced"
	case OutcomeClicked:
		return "clicked"
	case OutcomeClickFailed:
		return "click_failed"
	default:
		return "noop"
	}
}

// OrchestratorConfig configures one page's orchestrator.
type OrchestratorConfig struct {
	PageID  string
	Env     Env
	Timing  config.TimingConfig
	Match   config.MatchConfig
	Sink    sink.Sink        // optional
	Metrics *metrics.Metrics // optional
	FrameID idgen.Generator  // default idgen.FrameID
	Now     func() time.Time // default time.Now
	Logger  *slog.Logger
}

// Stats is a point-in-time view of an orchestrator, safe to read from any
// goroutine.
type Stats struct {
	PageID        string    `json:"page_id"`
	InFlight      bool      `json:"in_flight"`
	LastClickAt   time.Time `json:"last_click_at,omitzero"`
	Triggers      uint64    `json:"triggers"`
	Clicks        uint64    `json:"clicks"`
	Debounced     uint64    `json:"debounced"`
	Sequences     uint64    `json:"sequences"`
	Played        uint64    `json:"played"`
	Timeouts      uint64    `json:"handshake_timeouts"`
	FramesMissing uint64    `json:"frames_missing"`
	Failures      uint64    `json:"failures"`
}

type counters struct {
	triggers, clicks, debounced, sequences   atomic.Uint64
	played, timeouts, framesMissing, failures atomic.Uint64
}

// Orchestrator sequences scan → click → locate frame → handshake → command
// for one page. Every decision runs on its event loop, which serialises
// DOM-mutation triggers, timers and inbound messages; at most one
// click-to-play sequence is active at any time.
type Orchestrator struct {
	cfg    OrchestratorConfig
	env    Env
	loop   *eventloop.Loop
	cmd    *player.Commander
	logger *slog.Logger
	events chan report.Event

	// Owned by the loop goroutine.
	ctx          context.Context
	inFlight     bool
	lastClickAt  time.Time
	listeners    map[uint64]func(handshake.Message)
	nextListener uint64

	// Mirrors for readers outside the loop.
	inFlightView  atomic.Bool
	lastClickView atomic.Int64
	pending       atomic.Bool
	stats         counters
}

// NewOrchestrator creates an orchestrator. Call Run to start it.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FrameID == nil {
		cfg.FrameID = idgen.FrameID
	}
	cfg.Timing.ApplyDefaults()
	cfg.Match.ApplyDefaults()

	o := &Orchestrator{
		cfg:       cfg,
		env:       cfg.Env,
		loop:      eventloop.New(0),
		logger:    cfg.Logger.With("page", cfg.PageID),
		events:    make(chan report.Event, 64),
		ctx:       context.Background(),
		listeners: make(map[uint64]func(handshake.Message)),
	}

	o.cmd = player.New(player.Config{
		Handshake: handshake.Config{
			Interval:    cfg.Timing.AnnounceInterval,
			Timeout:     cfg.Timing.HandshakeTimeout,
			OriginHosts: cfg.Match.OriginHosts,
			Logger:      o.logger,
		},
		IDs: cfg.FrameID,
		OnOriginMismatch: func(frameID, param, pageOrigin string) {
			o.report(report.KindOriginMismatch, frameID, fmt.Sprintf("%s != %s", param, pageOrigin))
		},
		Now:    cfg.Now,
		Logger: o.logger,
	}, loopScheduler{o.loop}, pageTransport{o})

	return o
}

// Run evaluates the page once, then serves triggers, timers and messages
// until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	go o.forwardEvents(ctx)
	o.Trigger()
	return o.loop.Run(ctx)
}

// Trigger asks for an evaluation of the page. Triggers arriving while one
// is already queued are merged into it. Safe from any goroutine.
func (o *Orchestrator) Trigger() bool {
	if o.pending.Swap(true) {
		return false
	}
	ok := o.loop.Post(func() {
		o.pending.Store(false)
		o.trigger()
	})
	if !ok {
		o.pending.Store(false)
	}
	return ok
}

// TriggerNow evaluates the page and waits for the outcome.
func (o *Orchestrator) TriggerNow(ctx context.Context) (Outcome, error) {
	res := make(chan Outcome, 1)
	if !o.loop.Post(func() { res <- o.trigger() }) {
		return OutcomeNoop, ErrStopped
	}
	select {
	case out := <-res:
		return out, nil
	case <-o.loop.Done():
		return OutcomeNoop, ErrStopped
	case <-ctx.Done():
		return OutcomeNoop, ctx.Err()
	}
}

// Deliver hands an inbound cross-window message to the active handshake,
// if any. Safe from any goroutine.
func (o *Orchestrator) Deliver(msg handshake.Message) {
	o.loop.Post(func() {
		ids := make([]uint64, 0, len(o.listeners))
		for id := range o.listeners {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if fn, ok := o.listeners[id]; ok {
				fn(msg)
			}
		}
	})
}

// PageID returns the configured page id.
func (o *Orchestrator) PageID() string { return o.cfg.PageID }

// InFlight reports whether a click-to-play sequence is running.
func (o *Orchestrator) InFlight() bool { return o.inFlightView.Load() }

// LastClickAt returns the time of the last click, zero if none.
func (o *Orchestrator) LastClickAt() time.Time {
	ns := o.lastClickView.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Stats returns the current counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		PageID:        o.cfg.PageID,
		InFlight:      o.InFlight(),
		LastClickAt:   o.LastClickAt(),
		Triggers:      o.stats.triggers.Load(),
		Clicks:        o.stats.clicks.Load(),
		Debounced:     o.stats.debounced.Load(),
		Sequences:     o.stats.sequences.Load(),
		Played:        o.stats.played.Load(),
		Timeouts:      o.stats.timeouts.Load(),
		FramesMissing: o.stats.framesMissing.Load(),
		Failures:      o.stats.failures.Load(),
	}
}

func (o *Orchestrator) trigger() Outcome {
	o.stats.triggers.Add(1)

	root, err := o.env.Snapshot(o.ctx)
	if err != nil {
		o.logger.Debug("autoplay: snapshot failed", "error", err)
		return OutcomeNoop
	}
	btn := dom.FindNextControl(root, o.cfg.Match.Label)
	if btn == nil {
		return OutcomeNoop
	}

	now := o.cfg.Now()
	if !o.lastClickAt.IsZero() && now.Sub(o.lastClickAt) < o.cfg.Timing.Debounce {
		o.stats.debounced.Add(1)
		o.cfg.Metrics.Debounce(o.cfg.PageID)
		return OutcomeDebounced
	}
	o.lastClickAt = now
	o.lastClickView.Store(now.UnixNano())

	if err := o.env.Click(o.ctx, btn.Ref); err != nil {
		o.logger.Warn("autoplay: click failed", "ref", btn.Ref, "error", err)
		return OutcomeClickFailed
	}
	o.stats.clicks.Add(1)
	o.cfg.Metrics.Click(o.cfg.PageID)
	o.logger.Info("autoplay: clicked next control", "label", o.cfg.Match.Label)
	o.report(report.KindClick, "", "")

	if !o.inFlight {
		o.setInFlight(true)
		o.stats.sequences.Add(1)
		o.loop.AfterFunc(o.cfg.Timing.Settle, o.locate)
	}
	return OutcomeClicked
}

// locate looks for the player frame right away, then polls until the
// ceiling.
func (o *Orchestrator) locate() {
	if f := o.findFrame(); f != nil {
		o.play(f)
		return
	}

	start := o.cfg.Now()
	var poll *eventloop.Timer
	poll = o.loop.Every(o.cfg.Timing.PollInterval, func() {
		f := o.findFrame()
		if f == nil && o.cfg.Now().Sub(start) <= o.cfg.Timing.PollTimeout {
			return
		}
		poll.Stop()
		if f != nil {
			o.play(f)
			return
		}
		o.logger.Warn("autoplay: player frame not found", "waited", o.cfg.Timing.PollTimeout)
		o.stats.framesMissing.Add(1)
		o.cfg.Metrics.Sequence(o.cfg.PageID, metrics.OutcomeFrameMissing)
		o.report(report.KindFrameMissing, "", ErrFrameNotFound.Error())
		o.setInFlight(false)
	})
}

func (o *Orchestrator) findFrame() *dom.Node {
	root, err := o.env.Snapshot(o.ctx)
	if err != nil {
		o.logger.Debug("autoplay: snapshot failed", "error", err)
		return nil
	}
	return dom.FindPlayerFrame(root, o.cfg.Match.FramePatterns)
}

func (o *Orchestrator) play(f *dom.Node) {
	o.report(report.KindFrameFound, f.Attr("id"), dom.FrameSource(f))

	o.cmd.Play(o.ctx, f, o.env.PageURL(), func(res player.Result) {
		o.cfg.Metrics.Handshake(o.cfg.PageID, res.Waited.Seconds())
		switch {
		case errors.Is(res.Err, handshake.ErrTimeout):
			o.stats.timeouts.Add(1)
			o.cfg.Metrics.Sequence(o.cfg.PageID, metrics.OutcomeTimeout)
			o.report(report.KindHandshakeTimeout, res.FrameID, res.Err.Error())
		case res.Err != nil:
			o.stats.failures.Add(1)
			o.cfg.Metrics.Sequence(o.cfg.PageID, metrics.OutcomeFailed)
			if res.Ready {
				o.report(report.KindReady, res.FrameID, "")
			}
			o.report(report.KindPlayFailed, res.FrameID, res.Err.Error())
		default:
			o.stats.played.Add(1)
			o.cfg.Metrics.Sequence(o.cfg.PageID, metrics.OutcomePlayed)
			o.report(report.KindReady, res.FrameID, "")
			o.report(report.KindPlayed, res.FrameID, "")
		}
		o.setInFlight(false)
	})
}

func (o *Orchestrator) setInFlight(v bool) {
	o.inFlight = v
	o.inFlightView.Store(v)
	o.cfg.Metrics.SetInFlight(o.cfg.PageID, v)
}

// report queues an event for the sink without blocking the loop.
func (o *Orchestrator) report(kind report.Kind, frameID, detail string) {
	if o.cfg.Sink == nil {
		return
	}
	ev := report.Event{
		ID:      idgen.New(),
		Kind:    kind,
		PageID:  o.cfg.PageID,
		PageURL: o.env.PageURL(),
		FrameID: frameID,
		Detail:  detail,
		At:      o.cfg.Now(),
	}
	select {
	case o.events <- ev:
	default:
		o.logger.Debug("autoplay: report queue full, event dropped", "kind", kind)
	}
}

func (o *Orchestrator) forwardEvents(ctx context.Context) {
	if o.cfg.Sink == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-o.events:
			if err := o.cfg.Sink.Send(ctx, ev); err != nil {
				o.logger.Debug("autoplay: report failed", "kind", ev.Kind, "error", err)
			}
		}
	}
}
