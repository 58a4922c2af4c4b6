package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "ipsi"

var (
	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "retrieval",
			Name:      "search_duration_seconds",
			Help:      "Duration of filtered searches including query embedding",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"status"},
	)

	// searchMatches is the number of matches used as grounding.
	searchMatches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "retrieval",
			Name:      "matches",
			Help:      "Number of matches per search",
			Buckets:   []float64{1, 2, 3, 4, 5, 10},
		},
	)

	fallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "retrieval",
			Name:      "fallbacks_total",
			Help:      "Searches that matched nothing and fell back to general advice",
		},
	)
)

func RecordSearch(durationSeconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	searchDuration.WithLabelValues(status).Observe(durationSeconds)
}

func RecordMatches(n int) {
	searchMatches.Observe(float64(n))
}

func RecordFallback() {
	fallbacksTotal.Inc()
}
