package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's session counters. A nil *Metrics disables
// instrumentation.
type Metrics struct {
	ActionsTotal      *prometheus.CounterVec
	SessionsActive    prometheus.Gauge
	TerminationsTotal *prometheus.CounterVec
}

// NewMetrics registers the session metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chorus",
			Subsystem: "signaling",
			Name:      "actions_total",
			Help:      "Inbound session actions by action name and outcome.",
		}, []string{"action", "result"}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chorus",
			Subsystem: "signaling",
			Name:      "sessions_active",
			Help:      "Sessions that have been created and not yet ended.",
		}),
		TerminationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chorus",
			Subsystem: "signaling",
			Name:      "terminations_total",
			Help:      "Ended sessions by termination reason.",
		}, []string{"reason"}),
	}
}
