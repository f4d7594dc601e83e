package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the insight cascade collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	results         *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_provider_attempts_total",
				Help: "Total number of provider attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insight_provider_attempt_duration_seconds",
				Help:    "Duration of provider attempts in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"provider"},
		),
		results: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_results_total",
				Help: "Total number of insights returned, by the provider that produced them",
			},
			[]string{"provider"},
		),
	}
}

func (m *Metrics) ObserveAttempt(provider, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider, outcome).Inc()
	m.attemptDuration.WithLabelValues(provider).Observe(latency.Seconds())
}

func (m *Metrics) ObserveResult(provider string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(provider).Inc()
}
