package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "ipsi"

var (
	// catalogBuildsTotal counts snapshot builds.
	// Labels: status (ok, empty, unavailable), source (scan, cache)
	catalogBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "catalog",
			Name:      "builds_total",
			Help:      "Total number of catalog snapshot builds",
		},
		[]string{"status", "source"},
	)

	catalogBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "catalog",
			Name:      "build_duration_seconds",
			Help:      "Duration of a full corpus metadata scan",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	catalogInstitutions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "catalog",
			Name:      "institutions",
			Help:      "Number of distinct institutions in the current snapshot",
		},
	)

	catalogTracks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "catalog",
			Name:      "tracks",
			Help:      "Number of canonical tracks in the current snapshot",
		},
	)
)

// RecordBuildDuration records how long a corpus scan took.
func RecordBuildDuration(seconds float64) {
	catalogBuildDuration.Observe(seconds)
}

func recordSnapshot(snap Snapshot, source string) {
	catalogBuildsTotal.WithLabelValues(string(snap.Status), source).Inc()
	catalogInstitutions.Set(float64(len(snap.Institutions)))
	catalogTracks.Set(float64(len(snap.Tracks)))
}
