package autoplay

import (
	"context"
	"time"

	"github.com/hazyhaar/nextplay/autoplay/dom"
	"github.com/hazyhaar/nextplay/autoplay/handshake"
	"github.com/hazyhaar/nextplay/autoplay/internal/eventloop"
)

// Env is the capability surface of one browser page. The orchestrator never
// touches the browser except through it, so tests can drive a simulated
// page. Inbound cross-window messages enter through Orchestrator.Deliver.
type Env interface {
	// Snapshot serialises the current DOM, open shadow roots included.
	Snapshot(ctx context.Context) (*dom.Node, error)
	// Click invokes the native click behaviour of the referenced element.
	Click(ctx context.Context, ref string) error
	// SetAttr writes an attribute on the referenced element.
	SetAttr(ctx context.Context, ref, name, value string) error
	// PostMessage posts text to the window with the given id.
	PostMessage(ctx context.Context, window, text, targetOrigin string) error
	// PageURL is the current top-level document URL.
	PageURL() string
}

// pageTransport adapts an orchestrator to handshake.Transport and
// player.Env. Listeners live on the event loop.
type pageTransport struct {
	o *Orchestrator
}

func (t pageTransport) PostMessage(ctx context.Context, window, text, targetOrigin string) error {
	return t.o.env.PostMessage(ctx, window, text, targetOrigin)
}

func (t pageTransport) SetAttr(ctx context.Context, ref, name, value string) error {
	return t.o.env.SetAttr(ctx, ref, name, value)
}

func (t pageTransport) Listen(fn func(handshake.Message)) func() {
	o := t.o
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = fn
	return func() { delete(o.listeners, id) }
}

// loopScheduler adapts the event loop to handshake.Scheduler.
type loopScheduler struct {
	l *eventloop.Loop
}

func (s loopScheduler) AfterFunc(d time.Duration, fn func()) handshake.Timer {
	return s.l.AfterFunc(d, fn)
}

func (s loopScheduler) Every(d time.Duration, fn func()) handshake.Timer {
	return s.l.Every(d, fn)
}
