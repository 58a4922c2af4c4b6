package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики для поискового индекса
//
// Метрики позволяют отслеживать:
// - Производительность embedding API
// - Latency и эффективность vector search
// - Размер индекса записей

const (
	namespace = "ipsi"
)

var (
	// === Embedding API Metrics ===

	// embeddingRequestDuration измеряет время генерации embedding запроса.
	// Labels:
	//   - model: название модели
	//   - status: результат запроса (success, error)
	embeddingRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Duration of embedding API requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"model", "status"},
	)

	// embeddingTokensTotal считает использованные токены.
	embeddingTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Total number of tokens used for embeddings",
		},
		[]string{"model"},
	)

	// === Vector Search Metrics ===

	// vectorSearchDuration измеряет время cosine scan по индексу.
	vectorSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vector",
			Name:      "search_duration_seconds",
			Help:      "Duration of vector search operations in seconds",
			// Buckets для in-memory cosine: 1ms - 500ms
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// vectorSearchCandidates - сколько векторов прошло фильтр метаданных.
	vectorSearchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vector",
			Name:      "search_candidates",
			Help:      "Number of vectors passing the metadata filter per search",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	// === Vector Index State Metrics ===

	// vectorIndexSize показывает текущий размер индекса.
	vectorIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vector",
			Name:      "index_size",
			Help:      "Current number of vectors in the index",
		},
	)

	// vectorIndexMemoryBytes показывает приблизительный размер индекса в памяти
	// (только сами вектора, без метаданных).
	vectorIndexMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vector",
			Name:      "index_memory_bytes",
			Help:      "Approximate memory usage of the vector index in bytes",
		},
	)
)

// Константы для статусов
const (
	statusSuccess = "success"
	statusError   = "error"
)

// RecordEmbeddingRequest записывает метрики embedding запроса.
func RecordEmbeddingRequest(model string, durationSeconds float64, success bool, tokens int) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	embeddingRequestDuration.WithLabelValues(model, status).Observe(durationSeconds)
	if success && tokens > 0 {
		embeddingTokensTotal.WithLabelValues(model).Add(float64(tokens))
	}
}

// RecordVectorSearch записывает метрики одного поиска.
func RecordVectorSearch(durationSeconds float64, candidates int) {
	vectorSearchDuration.Observe(durationSeconds)
	vectorSearchCandidates.Observe(float64(candidates))
}

// UpdateVectorIndexMetrics обновляет размер индекса.
func UpdateVectorIndexMetrics(count int, dims int) {
	vectorIndexSize.Set(float64(count))
	vectorIndexMemoryBytes.Set(float64(count * dims * 4))
}
