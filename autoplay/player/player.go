// Package player commands a ready embedded player: it labels the frame,
// checks its origin parameter, waits for the readiness handshake, then
// sends mute followed by play.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/nextplay/autoplay/dom"
	"github.com/hazyhaar/nextplay/autoplay/handshake"
	"github.com/hazyhaar/nextplay/idgen"
)

// Env is what the commander needs from the host page.
type Env interface {
	handshake.Transport
	// SetAttr writes an attribute on the element referenced by ref.
	SetAttr(ctx context.Context, ref, name, value string) error
}

// Result describes how one Play call ended.
type Result struct {
	FrameID string
	Ready   bool          // the handshake completed
	Waited  time.Duration // time spent in the handshake
	Err     error         // handshake.ErrTimeout or a send failure
}

// Config for a Commander.
type Config struct {
	Handshake handshake.Config
	// IDs generates frame ids. Default: idgen.FrameID.
	IDs idgen.Generator
	// OnOriginMismatch is called when the frame's origin parameter differs
	// from the page origin. Optional.
	OnOriginMismatch func(frameID, param, pageOrigin string)
	Now              func() time.Time
	Logger           *slog.Logger
}

// Commander plays one frame at a time on behalf of the orchestrator.
type Commander struct {
	cfg   Config
	sched handshake.Scheduler
	env   Env
}

// New creates a Commander.
func New(cfg Config, sched handshake.Scheduler, env Env) *Commander {
	if cfg.IDs == nil {
		cfg.IDs = idgen.FrameID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Handshake.Logger == nil {
		cfg.Handshake.Logger = cfg.Logger
	}
	return &Commander{cfg: cfg, sched: sched, env: env}
}

// Play runs handshake then mute and play against frame. Failures are logged
// and reported through done, which is always called exactly once.
func (c *Commander) Play(ctx context.Context, frame *dom.Node, pageURL string, done func(Result)) {
	log := c.cfg.Logger
	id := c.ensureID(ctx, frame)

	if param, pageOrigin, mismatch := CheckOriginParam(frame.Attr("src"), pageURL); mismatch {
		log.Warn("player: frame origin parameter differs from page origin",
			"frame", id, "param", param, "page_origin", pageOrigin)
		if c.cfg.OnOriginMismatch != nil {
			c.cfg.OnOriginMismatch(id, param, pageOrigin)
		}
	}

	start := c.cfg.Now()
	target := handshake.Target{Window: frame.Window, ID: id}
	sess := handshake.NewSession(c.cfg.Handshake, c.sched, c.env, target)
	sess.Start(ctx, func(err error) {
		res := Result{FrameID: id, Waited: c.cfg.Now().Sub(start)}
		if err != nil {
			log.Warn("player: play failed (handshake)", "frame", id, "error", err)
			res.Err = err
			done(res)
			return
		}
		res.Ready = true

		for _, fn := range []string{handshake.FuncMute, handshake.FuncPlay} {
			if err := c.env.PostMessage(ctx, frame.Window, handshake.CommandText(fn), "*"); err != nil {
				log.Warn("player: command failed", "frame", id, "func", fn, "error", err)
				res.Err = fmt.Errorf("player: send %s: %w", fn, err)
				done(res)
				return
			}
		}
		log.Info("player: play (muted) after onReady", "frame", id, "waited", res.Waited)
		done(res)
	})
}

// ensureID gives the frame an id when it has none. The frame source is
// never touched.
func (c *Commander) ensureID(ctx context.Context, frame *dom.Node) string {
	if id := frame.Attr("id"); id != "" {
		return id
	}
	id := c.cfg.IDs()
	if err := c.env.SetAttr(ctx, frame.Ref, "id", id); err != nil {
		c.cfg.Logger.Debug("player: set frame id failed", "ref", frame.Ref, "error", err)
	}
	if frame.Attrs == nil {
		frame.Attrs = make(map[string]string)
	}
	frame.Attrs["id"] = id
	return id
}

// webOrigin serializes u the way location.origin does: lower-case scheme
// and host, default port omitted.
func webOrigin(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	switch port := u.Port(); {
	case port == "",
		scheme == "https" && port == "443",
		scheme == "http" && port == "80":
	default:
		host += ":" + port
	}
	return scheme + "://" + host
}

// CheckOriginParam resolves src against pageURL and compares its "origin"
// query parameter with the page origin. mismatch is false when either URL
// is unparsable or the parameter is absent.
func CheckOriginParam(src, pageURL string) (param, pageOrigin string, mismatch bool) {
	if src == "" || pageURL == "" {
		return "", "", false
	}
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return "", "", false
	}
	u, err := base.Parse(src)
	if err != nil {
		return "", "", false
	}
	pageOrigin = webOrigin(base)
	param = u.Query().Get("origin")
	if param == "" {
		return "", pageOrigin, false
	}
	return param, pageOrigin, param != pageOrigin
}
