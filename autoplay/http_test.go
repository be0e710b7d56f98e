package autoplay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/nextplay/autoplay/internal/metrics"
)

type stubController struct {
	stats    []Stats
	outcomes map[string]Outcome
	err      error
}

func (s *stubController) Status() []Stats { return s.stats }

func (s *stubController) TriggerPage(_ context.Context, id string) (Outcome, error) {
	if s.err != nil {
		return OutcomeNoop, s.err
	}
	out, ok := s.outcomes[id]
	if !ok {
		return OutcomeNoop, ErrUnknownPage
	}
	return out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, ctl Controller, opts HandlerOptions) *httptest.Server {
	t.Helper()
	opts.Logger = quietLogger()
	srv := httptest.NewServer(NewHandler(ctl, opts))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTP_Healthz(t *testing.T) {
	srv := newTestServer(t, &stubController{}, HandlerOptions{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	head, err := http.Head(srv.URL + "/healthz")
	require.NoError(t, err)
	head.Body.Close()
	assert.Equal(t, http.StatusOK, head.StatusCode)
}

func TestHTTP_Status(t *testing.T) {
	clicked := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctl := &stubController{stats: []Stats{
		{PageID: "a", InFlight: true, LastClickAt: clicked, Clicks: 3},
		{PageID: "b"},
	}}
	srv := newTestServer(t, ctl, HandlerOptions{})

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Pages, 2)
	assert.True(t, body.Pages[0].InFlight)
	assert.Equal(t, uint64(3), body.Pages[0].Clicks)
	assert.True(t, clicked.Equal(body.Pages[0].LastClickAt))
}

func TestHTTP_Trigger(t *testing.T) {
	ctl := &stubController{outcomes: map[string]Outcome{"a": OutcomeClicked}}
	srv := newTestServer(t, ctl, HandlerOptions{})

	resp, err := http.Post(srv.URL+"/pages/a/trigger", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body TriggerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, TriggerResponse{PageID: "a", Outcome: "clicked"}, body)

	resp2, err := http.Post(srv.URL+"/pages/zzz/trigger", "application/json", nil)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/pages/a/trigger")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp3.StatusCode)
}

func TestHTTP_TriggerStopped(t *testing.T) {
	srv := newTestServer(t, &stubController{err: ErrStopped}, HandlerOptions{})

	resp, err := http.Post(srv.URL+"/pages/a/trigger", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTP_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Click("a")

	srv := newTestServer(t, &stubController{}, HandlerOptions{Gatherer: reg})
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `nextplay_clicks_total{page="a"} 1`), string(body))
}

func TestHTTP_OptionalRoutesDisabled(t *testing.T) {
	srv := newTestServer(t, &stubController{}, HandlerOptions{})

	for _, path := range []string{"/metrics", "/mcp"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}
