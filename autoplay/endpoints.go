package autoplay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/nextplay/kit"
)

// Controller is what the HTTP and MCP surfaces drive. *Runner implements it.
type Controller interface {
	Status() []Stats
	TriggerPage(ctx context.Context, id string) (Outcome, error)
}

// StatusResponse lists every driven page.
type StatusResponse struct {
	Pages []Stats `json:"pages"`
}

// TriggerRequest names the page to evaluate.
type TriggerRequest struct {
	PageID string `json:"page_id"`
}

// TriggerResponse carries the outcome of one evaluation.
type TriggerResponse struct {
	PageID  string `json:"page_id"`
	Outcome string `json:"outcome"`
}

func statusEndpoint(ctl Controller, logger *slog.Logger) kit.Endpoint {
	ep := func(ctx context.Context, _ any) (any, error) {
		return &StatusResponse{Pages: ctl.Status()}, nil
	}
	return kit.Logging(logger, "status")(ep)
}

func triggerEndpoint(ctl Controller, logger *slog.Logger) kit.Endpoint {
	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*TriggerRequest)
		if r.PageID == "" {
			return nil, fmt.Errorf("autoplay: page_id is required")
		}
		out, err := ctl.TriggerPage(ctx, r.PageID)
		if err != nil {
			return nil, err
		}
		return &TriggerResponse{PageID: r.PageID, Outcome: out.String()}, nil
	}
	return kit.Logging(logger, "trigger")(ep)
}
