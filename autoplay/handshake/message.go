// Package handshake implements the cross-window readiness handshake with an
// embedded player frame: classifying inbound messages, deciding whether one
// confirms readiness, and running the per-frame listening session.
package handshake

import (
	"encoding/json"
	"strings"
)

// DefaultOriginHosts are the origin substrings of the video host family.
var DefaultOriginHosts = []string{"youtube.com", "youtube-nocookie.com"}

// Message is one cross-window message received by the host page.
type Message struct {
	Origin string `json:"origin"`
	// Source identifies the sending window; it equals a frame's Window id
	// when the message came from that frame, and is empty otherwise.
	Source string `json:"source"`
	// Data is either serialised text or an already structured value.
	Data any `json:"data"`
}

// Kind classifies a normalised payload.
type Kind int

const (
	Malformed  Kind = iota // not an object after lenient decoding
	Irrelevant             // an object without any readiness marker
	Readiness              // an object carrying a readiness marker
)

func (k Kind) String() string {
	switch k {
	case Readiness:
		return "readiness"
	case Irrelevant:
		return "irrelevant"
	default:
		return "malformed"
	}
}

// Result is the outcome of Normalize.
type Result struct {
	Kind   Kind
	Event  string         // value of the "event" field, if a string
	Fields map[string]any // decoded object; nil when Malformed
}

// Normalize decodes a payload leniently: text is parsed as JSON when it can
// be, structured values are used as-is. Readiness markers are an "event" of
// onReady or infoDelivery, or any non-null "info" field.
func Normalize(data any) Result {
	var v any
	switch d := data.(type) {
	case nil:
		return Result{Kind: Malformed}
	case string:
		if err := json.Unmarshal([]byte(d), &v); err != nil {
			return Result{Kind: Malformed}
		}
	case []byte:
		if err := json.Unmarshal(d, &v); err != nil {
			return Result{Kind: Malformed}
		}
	case json.RawMessage:
		if err := json.Unmarshal(d, &v); err != nil {
			return Result{Kind: Malformed}
		}
	default:
		v = d
	}

	switch obj := v.(type) {
	case map[string]any:
		res := Result{Kind: Irrelevant, Fields: obj}
		res.Event, _ = obj["event"].(string)
		if res.Event == "onReady" || res.Event == "infoDelivery" {
			res.Kind = Readiness
		} else if info, ok := obj["info"]; ok && info != nil {
			res.Kind = Readiness
		}
		return res
	case []any:
		return Result{Kind: Irrelevant}
	default:
		return Result{Kind: Malformed}
	}
}

// OriginAllowed reports whether origin contains one of hosts.
func OriginAllowed(origin string, hosts []string) bool {
	if origin == "" {
		return false
	}
	if len(hosts) == 0 {
		hosts = DefaultOriginHosts
	}
	for _, h := range hosts {
		if h != "" && strings.Contains(origin, h) {
			return true
		}
	}
	return false
}

// Target is the frame a session waits on.
type Target struct {
	Window string // contentWindow id; must be non-empty to accept anything
	ID     string // frame element id, echoed in announcements
}

// Accept reports whether msg confirms that target is ready: the origin
// belongs to hosts, the message comes from the target's own window, and
// the payload carries a readiness marker. Any single mismatch rejects it.
func Accept(msg Message, target Target, hosts []string) bool {
	if !OriginAllowed(msg.Origin, hosts) {
		return false
	}
	if target.Window == "" || msg.Source != target.Window {
		return false
	}
	return Normalize(msg.Data).Kind == Readiness
}

// ListeningText encodes the "listening" announcement. An empty id is sent
// as null.
func ListeningText(id string) string {
	type listening struct {
		Event string  `json:"event"`
		ID    *string `json:"id"`
	}
	m := listening{Event: "listening"}
	if id != "" {
		m.ID = &id
	}
	b, _ := json.Marshal(m)
	return string(b)
}

// Player commands.
const (
	FuncMute = "mute"
	FuncPlay = "playVideo"
)

// CommandText encodes a player command with an empty argument list.
func CommandText(fn string) string {
	type command struct {
		Event string `json:"event"`
		Func  string `json:"func"`
		Args  []any  `json:"args"`
	}
	b, _ := json.Marshal(command{Event: "command", Func: fn, Args: []any{}})
	return string(b)
}
