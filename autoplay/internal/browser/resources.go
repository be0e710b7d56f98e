package browser

import (
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockSet normalises the configured resource types. Media is dropped: a
// blocked media request would keep the player from ever becoming ready.
func blockSet(types []string, logger *slog.Logger) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "media" {
			logger.Warn("browser: media blocking ignored")
			continue
		}
		if t != "" {
			set[t] = true
		}
	}
	return set
}

// shouldBlock maps a CDP resource type to the config names.
func shouldBlock(set map[string]bool, resType proto.NetworkResourceType) bool {
	switch strings.ToLower(string(resType)) {
	case "image":
		return set["images"]
	case "font":
		return set["fonts"]
	case "stylesheet":
		return set["stylesheets"]
	case "media":
		return false
	default:
		return set[strings.ToLower(string(resType))]
	}
}

// applyResourceBlocking refuses the configured resource types on page.
// It returns the router so the caller can stop it with the tab.
func applyResourceBlocking(page *rod.Page, types []string, logger *slog.Logger) *rod.HijackRouter {
	set := blockSet(types, logger)
	if len(set) == 0 {
		return nil
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(set, h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
