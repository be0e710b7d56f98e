// Package bridge connects one rod page to the orchestrator: an injected
// agent serialises the DOM, clicks and labels elements by reference, posts
// to frame windows, and relays mutations and inbound messages through a
// CDP binding.
package bridge

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/nextplay/autoplay/dom"
	"github.com/hazyhaar/nextplay/autoplay/handshake"
)

//go:embed bridge.js
var agentJS string

// Binding is the name of the CDP binding the agent calls.
const Binding = "__nextplay_binding"

// ErrStaleRef is returned when a reference no longer resolves to a
// connected element or known window.
var ErrStaleRef = errors.New("bridge: stale reference")

// Event kinds sent by the agent.
const (
	KindMutation = "mutation"
	KindMessage  = "message"
)

// Event is one decoded binding payload.
type Event struct {
	Kind    string
	Message handshake.Message // set for KindMessage
}

type wireEvent struct {
	Kind   string          `json:"kind"`
	Origin string          `json:"origin"`
	Source string          `json:"source"`
	Text   *string         `json:"text"`
	Data   json.RawMessage `json:"data"`
}

// decodeEvent parses a binding payload. Textual message data stays text;
// structured data is decoded to Go values.
func decodeEvent(payload string) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return Event{}, fmt.Errorf("bridge: decode event: %w", err)
	}
	switch w.Kind {
	case KindMutation:
		return Event{Kind: KindMutation}, nil
	case KindMessage:
		msg := handshake.Message{Origin: w.Origin, Source: w.Source}
		if w.Text != nil {
			msg.Data = *w.Text
		} else if len(w.Data) > 0 {
			var v any
			if err := json.Unmarshal(w.Data, &v); err != nil {
				return Event{}, fmt.Errorf("bridge: decode message data: %w", err)
			}
			msg.Data = v
		}
		return Event{Kind: KindMessage, Message: msg}, nil
	default:
		return Event{}, fmt.Errorf("bridge: unknown event kind %q", w.Kind)
	}
}

// Handlers receive agent events on the bridge's event goroutine.
type Handlers struct {
	OnMutation func()
	OnMessage  func(handshake.Message)
}

// Bridge implements the orchestrator's page capabilities over CDP.
type Bridge struct {
	page   *rod.Page
	logger *slog.Logger
	cancel context.CancelFunc

	mu       sync.RWMutex
	handlers Handlers
	url      atomic.Value // string
}

// Attach installs the binding and agent on page, for the current document
// and every later navigation, and starts relaying events.
func Attach(ctx context.Context, page *rod.Page, logger *slog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	evCtx, cancel := context.WithCancel(ctx)
	b := &Bridge{page: page, logger: logger, cancel: cancel}
	b.url.Store("")

	if err := (proto.RuntimeAddBinding{Name: Binding}).Call(page); err != nil {
		cancel()
		return nil, fmt.Errorf("bridge: add binding: %w", err)
	}

	wait := page.Context(evCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == Binding {
			b.dispatch(e.Payload)
		}
	})
	go wait()

	if _, err := page.EvalOnNewDocument(agentJS); err != nil {
		cancel()
		return nil, fmt.Errorf("bridge: install agent: %w", err)
	}
	return b, nil
}

// Listen replaces the event handlers.
func (b *Bridge) Listen(h Handlers) {
	b.mu.Lock()
	b.handlers = h
	b.mu.Unlock()
}

func (b *Bridge) dispatch(payload string) {
	ev, err := decodeEvent(payload)
	if err != nil {
		b.logger.Debug("bridge: bad event", "error", err)
		return
	}
	b.mu.RLock()
	h := b.handlers
	b.mu.RUnlock()

	switch ev.Kind {
	case KindMutation:
		if h.OnMutation != nil {
			h.OnMutation()
		}
	case KindMessage:
		if h.OnMessage != nil {
			h.OnMessage(ev.Message)
		}
	}
}

type snapshot struct {
	URL  string   `json:"url"`
	Root dom.Node `json:"root"`
}

// Snapshot serialises the document, open shadow roots included.
func (b *Bridge) Snapshot(ctx context.Context) (*dom.Node, error) {
	res, err := b.page.Context(ctx).Eval(`() => window.__nextplay ? window.__nextplay.snapshot() : ""`)
	if err != nil {
		return nil, fmt.Errorf("bridge: snapshot: %w", err)
	}
	raw := res.Value.Str()
	if raw == "" {
		return nil, fmt.Errorf("bridge: snapshot: agent not installed")
	}
	var s snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("bridge: snapshot: %w", err)
	}
	b.url.Store(s.URL)
	return &s.Root, nil
}

// Click invokes the element's native click behaviour.
func (b *Bridge) Click(ctx context.Context, ref string) error {
	return b.call(ctx, "click", `(ref) => !!window.__nextplay && window.__nextplay.click(ref)`, ref)
}

// SetAttr writes an attribute on the referenced element.
func (b *Bridge) SetAttr(ctx context.Context, ref, name, value string) error {
	return b.call(ctx, "set attribute",
		`(ref, name, value) => !!window.__nextplay && window.__nextplay.setAttr(ref, name, value)`,
		ref, name, value)
}

// PostMessage posts text to a frame window known from a snapshot.
func (b *Bridge) PostMessage(ctx context.Context, window, text, targetOrigin string) error {
	return b.call(ctx, "post message",
		`(id, text, origin) => !!window.__nextplay && window.__nextplay.post(id, text, origin)`,
		window, text, targetOrigin)
}

func (b *Bridge) call(ctx context.Context, op, js string, args ...any) error {
	res, err := b.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return fmt.Errorf("bridge: %s: %w", op, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("bridge: %s: %w", op, ErrStaleRef)
	}
	return nil
}

// PageURL is the document URL seen by the last snapshot.
func (b *Bridge) PageURL() string {
	return b.url.Load().(string)
}

// SetPageURL seeds PageURL before the first snapshot.
func (b *Bridge) SetPageURL(u string) {
	b.url.Store(u)
}

// Close stops relaying events. The page itself is left open.
func (b *Bridge) Close() {
	b.cancel()
}
