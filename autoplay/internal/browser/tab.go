package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Tab is a stealth page navigated to one configured URL.
type Tab struct {
	Page   *rod.Page
	URL    string
	PageID string

	router *rod.HijackRouter
}

// OpenTab creates a stealth tab, applies resource blocking and navigates.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, pageID string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{Page: page, URL: pageURL, PageID: pageID}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		t.router = applyResourceBlocking(page, mgr.cfg.ResourceBlocking, mgr.cfg.Logger)
	}
	return t, nil
}

// Navigate loads the tab URL and waits for the load event, both bounded by
// the manager's navigate timeout.
func (t *Tab) Navigate(ctx context.Context, mgr *Manager) error {
	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavigateTimeout)
	defer cancel()

	if err := t.Page.Context(navCtx).Navigate(t.URL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", t.URL, err)
	}
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", t.URL, "error", err)
	}
	return nil
}

// Close stops interception and closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		_ = t.router.Stop()
		t.router = nil
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
