package dialer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts manager actions issued on behalf of lines. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	actions *prometheus.CounterVec
	sweeps  prometheus.Counter
}

// NewMetrics registers the dialer metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "astdialer",
			Name:      "actions_total",
			Help:      "Line actions sent to the manager, by verb and outcome.",
		}, []string{"action", "outcome"}),
		sweeps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "astdialer",
			Name:      "hangup_sweeps_total",
			Help:      "Hang-up-all sweeps (k command and teardown).",
		}),
	}
}

func (m *Metrics) observeAction(action string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) observeSweep() {
	if m == nil {
		return
	}
	m.sweeps.Inc()
}
