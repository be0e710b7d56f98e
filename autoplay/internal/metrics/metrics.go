// Package metrics exposes nextplay counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sequence outcomes used as the "outcome" label.
const (
	OutcomePlayed       = "played"
	OutcomeTimeout      = "handshake_timeout"
	OutcomeFrameMissing = "frame_missing"
	OutcomeFailed       = "failed"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Clicks           *prometheus.CounterVec
	Debounced        *prometheus.CounterVec
	Sequences        *prometheus.CounterVec
	InFlight         *prometheus.GaugeVec
	HandshakeSeconds *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg when non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextplay_clicks_total",
			Help: "Clicks on the next control.",
		}, []string{"page"}),
		Debounced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextplay_debounced_total",
			Help: "Triggers suppressed by the click debounce window.",
		}, []string{"page"}),
		Sequences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextplay_sequences_total",
			Help: "Completed click-to-play sequences by outcome.",
		}, []string{"page", "outcome"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nextplay_in_flight",
			Help: "1 while a click-to-play sequence is running.",
		}, []string{"page"}),
		HandshakeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nextplay_handshake_seconds",
			Help:    "Time from the first announcement to readiness or timeout.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"page"}),
	}
	if reg != nil {
		reg.MustRegister(m.Clicks, m.Debounced, m.Sequences, m.InFlight, m.HandshakeSeconds)
	}
	return m
}

func (m *Metrics) Click(page string) {
	if m != nil {
		m.Clicks.WithLabelValues(page).Inc()
	}
}

func (m *Metrics) Debounce(page string) {
	if m != nil {
		m.Debounced.WithLabelValues(page).Inc()
	}
}

func (m *Metrics) Sequence(page, outcome string) {
	if m != nil {
		m.Sequences.WithLabelValues(page, outcome).Inc()
	}
}

func (m *Metrics) SetInFlight(page string, v bool) {
	if m == nil {
		return
	}
	g := 0.0
	if v {
		g = 1
	}
	m.InFlight.WithLabelValues(page).Set(g)
}

func (m *Metrics) Handshake(page string, seconds float64) {
	if m != nil {
		m.HandshakeSeconds.WithLabelValues(page).Observe(seconds)
	}
}
