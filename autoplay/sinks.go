package autoplay

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hazyhaar/nextplay/autoplay/internal/sink"
)

// Sink is the output interface for play reports.
type Sink = sink.Sink

// EventFunc is called for each report event.
type EventFunc = sink.EventFunc

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process sink.
func NewCallbackSink(fn EventFunc) Sink {
	return sink.NewCallback(fn)
}

// OpenSQLiteSink opens the play_events history database at path.
func OpenSQLiteSink(path string) (Sink, error) {
	return sink.OpenSQLite(path)
}

// BuildSinks creates the sinks listed in cfg. An empty list yields stdout.
func BuildSinks(cfgs []SinkConfig, logger *slog.Logger) ([]Sink, error) {
	if len(cfgs) == 0 {
		return []Sink{NewStdoutSink(os.Stdout)}, nil
	}
	out := make([]Sink, 0, len(cfgs))
	for _, c := range cfgs {
		switch c.Type {
		case "stdout", "":
			out = append(out, NewStdoutSink(os.Stdout))
		case "webhook":
			if c.URL == "" {
				closeAll(out)
				return nil, fmt.Errorf("autoplay: webhook sink needs a url")
			}
			out = append(out, NewWebhookSink(c.URL, logger))
		case "sqlite":
			s, err := OpenSQLiteSink(c.Path)
			if err != nil {
				closeAll(out)
				return nil, err
			}
			out = append(out, s)
		default:
			closeAll(out)
			return nil, fmt.Errorf("autoplay: unknown sink type %q", c.Type)
		}
	}
	return out, nil
}

func closeAll(sinks []Sink) {
	for _, s := range sinks {
		s.Close()
	}
}
