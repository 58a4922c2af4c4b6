package advisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "ipsi"

const (
	resultAnswered = "answered"
	resultFallback = "fallback"
	resultError    = "error"
)

var (
	// turnsTotal counts finished turns.
	// Labels: result (answered, fallback, error)
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "advisor",
			Name:      "turns_total",
			Help:      "Total number of advising turns by result",
		},
		[]string{"result"},
	)

	turnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "advisor",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end duration of an advising turn",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 7, 10, 15, 20, 30, 60},
		},
		[]string{"result"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "advisor",
			Name:      "sessions_active",
			Help:      "Number of sessions held in memory",
		},
	)

	sessionEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "advisor",
			Name:      "session_evictions_total",
			Help:      "Total number of idle sessions evicted",
		},
	)
)

func recordTurn(result string, durationSeconds float64) {
	turnsTotal.WithLabelValues(result).Inc()
	turnDuration.WithLabelValues(result).Observe(durationSeconds)
}

func setActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func recordEvictions(n int) {
	sessionEvictionsTotal.Add(float64(n))
}
