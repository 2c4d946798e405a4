package activity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects write-pipeline counters. All methods are nil-safe so the
// logger can run unmetered in tests.
type Metrics struct {
	writes        *prometheus.CounterVec
	failures      prometheus.Counter
	queued        prometheus.Counter
	replayed      prometheus.Counter
	queueDepth    prometheus.Gauge
	appendSeconds prometheus.Histogram
}

// NewMetrics registers activity metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "libris_activity_writes_total",
			Help: "Activity records accepted by the destination store.",
		}, []string{"destination"}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "libris_activity_write_failures_total",
			Help: "Activity writes that failed and were not queueable.",
		}),
		queued: factory.NewCounter(prometheus.CounterOpts{
			Name: "libris_activity_queued_total",
			Help: "Activity writes deferred to the offline queue.",
		}),
		replayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "libris_activity_replayed_total",
			Help: "Offline queue entries replayed through the pipeline.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "libris_activity_queue_depth",
			Help: "Entries currently waiting in the offline queue.",
		}),
		appendSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "libris_activity_append_duration_seconds",
			Help:    "Latency of destination store appends.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

func (m *Metrics) observeWrite(destination string, seconds float64) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(destination).Inc()
	m.appendSeconds.Observe(seconds)
}

func (m *Metrics) incFailures() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

func (m *Metrics) incQueued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

func (m *Metrics) addReplayed(n int) {
	if m == nil {
		return
	}
	m.replayed.Add(float64(n))
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
