// Package sink defines output backends for nextplay report events.
package sink

import (
	"context"

	"github.com/hazyhaar/nextplay/autoplay/report"
)

// Sink delivers report events to a backend (stdout, webhook, SQLite,
// in-process callback).
type Sink interface {
	Send(ctx context.Context, ev report.Event) error
	Close() error
}
