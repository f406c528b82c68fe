package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "minidosis"

// Rebuild results.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Metrics holds the collectors for graph rebuilds and file watching.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RebuildsTotal    *prometheus.CounterVec
	RebuildDuration  prometheus.Histogram
	Nodes            prometheus.Gauge
	Placeholders     prometheus.Gauge
	Images           prometheus.Gauge
	FileErrorsTotal  *prometheus.CounterVec
	ImageErrorsTotal prometheus.Counter
	WatchEventsTotal *prometheus.CounterVec
	CoalescedTotal   prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RebuildsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilds_total",
			Help:      "Graph rebuilds by result.",
		}, []string{"result"}),
		RebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Wall time of full graph rebuilds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Nodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Nodes in the published snapshot, placeholders included.",
		}),
		Placeholders: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "placeholder_nodes",
			Help:      "Nodes referenced but not defined by any file.",
		}),
		Images: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "images",
			Help:      "Distinct images in the published snapshot.",
		}),
		FileErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_errors_total",
			Help:      "Content files skipped during rebuilds, by failure kind.",
		}, []string{"kind"}),
		ImageErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_errors_total",
			Help:      "Embedded images that could not be read.",
		}),
		WatchEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Filesystem events received by the watcher, by operation.",
		}, []string{"op"}),
		CoalescedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuild_requests_coalesced_total",
			Help:      "Rebuild requests absorbed by an already pending rebuild.",
		}),
	}
}

// ObserveRebuild records a finished rebuild. Gauges are only updated for
// successful rebuilds since a failed one publishes nothing.
func (m *Metrics) ObserveRebuild(result string, d time.Duration, nodes, placeholders, images int) {
	if m == nil {
		return
	}
	m.RebuildsTotal.WithLabelValues(result).Inc()
	m.RebuildDuration.Observe(d.Seconds())
	if result != ResultOK {
		return
	}
	m.Nodes.Set(float64(nodes))
	m.Placeholders.Set(float64(placeholders))
	m.Images.Set(float64(images))
}

func (m *Metrics) FileError(kind string) {
	if m == nil {
		return
	}
	m.FileErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ImageError() {
	if m == nil {
		return
	}
	m.ImageErrorsTotal.Inc()
}

func (m *Metrics) WatchEvent(op string) {
	if m == nil {
		return
	}
	m.WatchEventsTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) Coalesced() {
	if m == nil {
		return
	}
	m.CoalescedTotal.Inc()
}
