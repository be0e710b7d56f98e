// Package autoplay drives embedded video playback on pages that advance
// through a "next" control: it clicks the control when it appears, finds
// the player frame, performs the readiness handshake and sends mute then
// play. Runner owns the browser and one Orchestrator per page.
package autoplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-rod/rod"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/nextplay/autoplay/internal/bridge"
	"github.com/hazyhaar/nextplay/autoplay/internal/browser"
	"github.com/hazyhaar/nextplay/autoplay/internal/config"
	"github.com/hazyhaar/nextplay/autoplay/internal/metrics"
	"github.com/hazyhaar/nextplay/autoplay/internal/sink"
)

// ErrUnknownPage is returned for a page id the runner does not drive.
var ErrUnknownPage = errors.New("autoplay: unknown page")

// ErrPageExists is returned when attaching an id that is already driven.
var ErrPageExists = errors.New("autoplay: page already attached")

// Runner is the top-level daemon. Create one per process.
type Runner struct {
	cfg      *config.Config
	mgr      *browser.Manager
	sinkR    *sink.Router
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	pages  map[string]*pageRun
	stored map[string]bool // ids that came from the page store
	store  *config.PageStore
}

type pageRun struct {
	cfg    config.PageConfig
	tab    *browser.Tab
	bridge *bridge.Bridge
	orch   *Orchestrator
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a Runner from configuration.
func NewRunner(cfg *Config, logger *slog.Logger, sinks ...Sink) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Mode:             browser.ParseMode(cfg.Browser.Stealth),
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		NavigateTimeout:  cfg.Browser.NavigateTimeout,
		Logger:           logger,
	})

	return &Runner{
		cfg:      cfg,
		mgr:      mgr,
		sinkR:    sink.NewRouter(logger, sinks...),
		registry: reg,
		metrics:  metrics.New(reg),
		logger:   logger,
		ctx:      context.Background(),
		pages:    make(map[string]*pageRun),
		stored:   make(map[string]bool),
	}
}

// Registry is the Prometheus registry holding the runner's metrics.
func (r *Runner) Registry() *prometheus.Registry { return r.registry }

// Start launches the browser and begins driving every configured page.
// Pages that fail to attach are logged and skipped.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	if _, err := r.mgr.Start(ctx); err != nil {
		return fmt.Errorf("autoplay: start browser: %w", err)
	}

	r.mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: r.detachAll,
		AfterRecycle:  func(*rod.Browser) { r.reattachAll(ctx) },
	})

	for _, p := range r.cfg.Pages {
		if err := r.AttachPage(ctx, p); err != nil {
			r.logger.Error("autoplay: failed to attach page", "url", p.URL, "error", err)
		}
	}

	if r.cfg.PagesDB != "" {
		store, err := config.OpenPageStore(r.cfg.PagesDB)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.store = store
		r.mu.Unlock()
		go store.Watch(ctx, config.WatchOptions{Logger: r.logger}, func(pages []config.PageConfig) error {
			r.syncStored(ctx, pages)
			return nil
		})
	}
	return nil
}

// AttachPage opens a tab for p and starts its orchestrator.
func (r *Runner) AttachPage(ctx context.Context, p PageConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attachLocked(ctx, p)
}

func (r *Runner) attachLocked(ctx context.Context, p config.PageConfig) error {
	if _, ok := r.pages[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrPageExists, p.ID)
	}

	tab, err := browser.OpenTab(ctx, r.mgr, p.URL, p.ID)
	if err != nil {
		return fmt.Errorf("autoplay: open tab: %w", err)
	}
	br, err := bridge.Attach(ctx, tab.Page, r.logger)
	if err != nil {
		tab.Close()
		return err
	}
	br.SetPageURL(p.URL)

	orch := NewOrchestrator(OrchestratorConfig{
		PageID:  p.ID,
		Env:     br,
		Timing:  r.cfg.Timing,
		Match:   r.cfg.Match,
		Sink:    r.sinkR,
		Metrics: r.metrics,
		Logger:  r.logger,
	})
	br.Listen(bridge.Handlers{
		OnMutation: func() { orch.Trigger() },
		OnMessage:  orch.Deliver,
	})

	if err := tab.Navigate(ctx, r.mgr); err != nil {
		br.Close()
		tab.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(r.ctx)
	run := &pageRun{cfg: p, tab: tab, bridge: br, orch: orch, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(run.done)
		orch.Run(runCtx)
	}()

	r.pages[p.ID] = run
	r.logger.Info("autoplay: driving page", "url", p.URL, "id", p.ID)
	return nil
}

// DetachPage stops driving a page and closes its tab.
func (r *Runner) DetachPage(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.pages[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPage, id)
	}
	r.stopLocked(id, run)
	return nil
}

func (r *Runner) stopLocked(id string, run *pageRun) {
	run.cancel()
	<-run.done
	run.bridge.Close()
	run.tab.Close()
	delete(r.pages, id)
	r.logger.Info("autoplay: stopped page", "id", id)
}

// Status returns per-page stats ordered by page id.
func (r *Runner) Status() []Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stats, 0, len(r.pages))
	for _, run := range r.pages {
		out = append(out, run.orch.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageID < out[j].PageID })
	return out
}

// TriggerPage evaluates one page immediately.
func (r *Runner) TriggerPage(ctx context.Context, id string) (Outcome, error) {
	r.mu.Lock()
	run, ok := r.pages[id]
	r.mu.Unlock()
	if !ok {
		return OutcomeNoop, fmt.Errorf("%w: %s", ErrUnknownPage, id)
	}
	return run.orch.TriggerNow(ctx)
}

// Stop shuts down every page, the sinks and the browser.
func (r *Runner) Stop() {
	r.detachAll()

	r.mu.Lock()
	if r.store != nil {
		r.store.Close()
		r.store = nil
	}
	r.mu.Unlock()

	r.sinkR.Close()
	r.mgr.Close()
}

func (r *Runner) detachAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, run := range r.pages {
		r.stopLocked(id, run)
	}
}

// reattachAll re-opens every configured and stored page on a fresh browser.
func (r *Runner) reattachAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.desiredLocked(ctx) {
		if err := r.attachLocked(ctx, p); err != nil {
			r.logger.Error("autoplay: reattach failed", "url", p.URL, "error", err)
		}
	}
}

func (r *Runner) desiredLocked(ctx context.Context) []config.PageConfig {
	pages := append([]config.PageConfig(nil), r.cfg.Pages...)
	if r.store == nil {
		return pages
	}
	stored, err := r.store.Active(ctx)
	if err != nil {
		r.logger.Warn("autoplay: list stored pages failed", "error", err)
		return pages
	}
	seen := make(map[string]bool, len(pages))
	for _, p := range pages {
		seen[p.ID] = true
	}
	for _, p := range stored {
		if !seen[p.ID] {
			pages = append(pages, p)
		}
	}
	return pages
}

// syncStored attaches newly stored pages and detaches removed ones.
// Pages from the config file always win an id collision.
func (r *Runner) syncStored(ctx context.Context, stored []config.PageConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fromFile := make(map[string]bool, len(r.cfg.Pages))
	for _, p := range r.cfg.Pages {
		fromFile[p.ID] = true
	}

	want := make(map[string]config.PageConfig, len(stored))
	for _, p := range stored {
		if !fromFile[p.ID] {
			want[p.ID] = p
		}
	}

	for id := range r.stored {
		run, ok := r.pages[id]
		p, keep := want[id]
		if ok && (!keep || p.URL != run.cfg.URL) {
			r.stopLocked(id, run)
		}
		if !keep {
			delete(r.stored, id)
		}
	}
	for id, p := range want {
		if _, ok := r.pages[id]; ok {
			continue
		}
		if err := r.attachLocked(ctx, p); err != nil {
			r.logger.Error("autoplay: attach stored page failed", "url", p.URL, "error", err)
			continue
		}
		r.stored[id] = true
	}
}
