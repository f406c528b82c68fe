package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveRebuild(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRebuild(ResultOK, 20*time.Millisecond, 10, 2, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RebuildsTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.Nodes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Placeholders))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Images))

	// A failed rebuild leaves the gauges describing the last good snapshot.
	m.ObserveRebuild(ResultFailed, time.Millisecond, 0, 0, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RebuildsTotal.WithLabelValues(ResultFailed)))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.Nodes))
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.FileError("read")
	m.FileError("read")
	m.FileError("missing_header")
	m.ImageError()
	m.WatchEvent("write")
	m.Coalesced()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FileErrorsTotal.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FileErrorsTotal.WithLabelValues("missing_header")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WatchEventsTotal.WithLabelValues("write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CoalescedTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRebuild(ResultOK, time.Second, 1, 1, 1)
		m.FileError("read")
		m.ImageError()
		m.WatchEvent("create")
		m.Coalesced()
	})
}
