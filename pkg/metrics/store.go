package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "guildscore"

// Outcome labels recorded for every store operation.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeInvalidKey  = "invalid_key"
	OutcomeOverflow    = "overflow"
	OutcomeUnavailable = "unavailable"
)

// StoreMetrics records latency and outcomes of score store operations.
type StoreMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewStoreMetrics registers the store metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of score store operations in seconds.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"operation"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Score store operations by outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(duration, total)
	return &StoreMetrics{duration: duration, total: total}
}

// Observe records one finished operation.
func (m *StoreMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	operation = normalizeLabel(operation)
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.total.WithLabelValues(operation, normalizeLabel(outcome)).Inc()
}

// Since is a convenience for defer-style timing:
//
//	defer m.Since("get", time.Now(), &outcome)
func (m *StoreMetrics) Since(operation string, start time.Time, outcome *string) {
	o := OutcomeOK
	if outcome != nil && *outcome != "" {
		o = *outcome
	}
	m.Observe(operation, o, time.Since(start))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
