package metrics

import "github.com/prometheus/client_golang/prometheus"

// ActivityMetrics counts membership and message events applied to the store.
type ActivityMetrics struct {
	events  *prometheus.CounterVec
	awarded prometheus.Counter
}

// NewActivityMetrics registers the activity metrics on the provided registerer.
func NewActivityMetrics(reg prometheus.Registerer) *ActivityMetrics {
	if reg == nil {
		return &ActivityMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activity",
		Name:      "events_total",
		Help:      "Activity events handled by kind and result.",
	}, []string{"event", "result"})
	awarded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activity",
		Name:      "points_awarded_total",
		Help:      "Points awarded for messages.",
	})
	reg.MustRegister(events, awarded)
	return &ActivityMetrics{events: events, awarded: awarded}
}

// IncEvent counts one handled event. result is usually "applied", "skipped" or "failed".
func (m *ActivityMetrics) IncEvent(event, result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(event), normalizeLabel(result)).Inc()
}

// AddAwarded adds awarded points.
func (m *ActivityMetrics) AddAwarded(points int64) {
	if m == nil || m.awarded == nil || points <= 0 {
		return
	}
	m.awarded.Add(float64(points))
}
