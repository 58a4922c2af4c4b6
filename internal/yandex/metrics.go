package yandex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transcriptionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ipsi",
			Subsystem: "speech",
			Name:      "transcription_duration_seconds",
			Help:      "Duration of SpeechKit transcriptions",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 10, 20},
		},
		[]string{"status"},
	)
)

func recordTranscription(durationSeconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	transcriptionDuration.WithLabelValues(status).Observe(durationSeconds)
}
