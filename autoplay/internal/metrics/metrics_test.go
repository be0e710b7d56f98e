package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Click("p1")
	m.Click("p1")
	m.Debounce("p1")
	m.Sequence("p1", OutcomePlayed)
	m.SetInFlight("p1", true)
	m.Handshake("p1", 0.3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Clicks.WithLabelValues("p1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Debounced.WithLabelValues("p1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sequences.WithLabelValues("p1", OutcomePlayed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight.WithLabelValues("p1")))

	m.SetInFlight("p1", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight.WithLabelValues("p1")))

	n, err := testutil.GatherAndCount(reg, "nextplay_handshake_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Click("p")
	m.Debounce("p")
	m.Sequence("p", OutcomeFailed)
	m.SetInFlight("p", true)
	m.Handshake("p", 1)
}
