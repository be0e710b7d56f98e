// Package report defines the events nextplay emits while it drives a page.
// Consumers (log shippers, dashboards, the SQLite history) import this
// package to decode them.
package report

import (
	"encoding/json"
	"time"
)

// Kind is the type of a reported event.
type Kind string

const (
	KindClick            Kind = "click"             // the next control was clicked
	KindFrameFound       Kind = "frame_found"       // a player frame candidate was located
	KindFrameMissing     Kind = "frame_missing"     // polling ceiling reached without a frame
	KindReady            Kind = "ready"             // the handshake completed
	KindPlayed           Kind = "played"            // mute and play were sent
	KindHandshakeTimeout Kind = "handshake_timeout" // no readiness before the deadline
	KindOriginMismatch   Kind = "origin_mismatch"   // the frame's origin parameter differs from the page
	KindPlayFailed       Kind = "play_failed"       // commands could not be delivered
)

// Event is one observation. Events are advisory: nothing depends on their
// delivery.
type Event struct {
	ID      string    `json:"id"` // UUIDv7
	Kind    Kind      `json:"kind"`
	PageID  string    `json:"page_id"`
	PageURL string    `json:"page_url,omitempty"`
	FrameID string    `json:"frame_id,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Marshal encodes an event as JSON.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes an event.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
