// Package rag implements the semantic search engine over the admission
// corpus: query embeddings from OpenRouter and an in-memory cosine scan over
// record vectors loaded from SQLite.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/runixer/ipsi/internal/filter"
	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/retrieval"
	"github.com/runixer/ipsi/internal/storage"
)

// RecordSource is the part of the record repository the engine reads.
type RecordSource interface {
	GetRecordsAfterID(ctx context.Context, minID int64) ([]storage.Record, error)
	GetRecordsByIDs(ctx context.Context, ids []int64) ([]storage.Record, error)
}

type vectorItem struct {
	RecordID  int64
	Embedding []float32
	Metadata  map[string]any
}

// Engine is a retrieval.Searcher.
type Engine struct {
	logger         *slog.Logger
	records        RecordSource
	client         openrouter.Client
	model          string
	reloadInterval time.Duration

	vectors     []vectorItem
	maxLoadedID int64
	mu          sync.RWMutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewEngine(logger *slog.Logger, records RecordSource, client openrouter.Client, embeddingModel string, reloadInterval time.Duration) *Engine {
	return &Engine{
		logger:         logger.With("component", "rag"),
		records:        records,
		client:         client,
		model:          embeddingModel,
		reloadInterval: reloadInterval,
		stopChan:       make(chan struct{}),
	}
}

// Start loads the index and launches the incremental reload loop.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Starting search engine...")

	if err := e.ReloadVectors(ctx); err != nil {
		e.logger.Error("failed to load vectors", "error", err)
	}

	if e.reloadInterval > 0 {
		e.wg.Add(1)
		go e.reloadLoop(ctx)
	}
	return nil
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
}

func (e *Engine) reloadLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopChan:
			return
		case <-ticker.C:
			if err := e.LoadNewVectors(ctx); err != nil {
				e.logger.Warn("incremental vector load failed", "error", err)
			}
		}
	}
}

// ReloadVectors replaces the index with every embedded record.
func (e *Engine) ReloadVectors(ctx context.Context) error {
	records, err := e.records.GetRecordsAfterID(ctx, 0)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.vectors = e.vectors[:0]
	e.maxLoadedID = 0
	count := e.appendLocked(records)

	e.logger.Info("Loaded vectors", "records", count, "max_id", e.maxLoadedID)
	e.updateMetricsLocked()
	return nil
}

// LoadNewVectors appends records added since the last load.
func (e *Engine) LoadNewVectors(ctx context.Context) error {
	e.mu.RLock()
	minID := e.maxLoadedID
	e.mu.RUnlock()

	records, err := e.records.GetRecordsAfterID(ctx, minID)
	if err != nil {
		return fmt.Errorf("load new records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Another goroutine may have loaded these while we were fetching
	if minID < e.maxLoadedID {
		e.logger.Debug("Skipping incremental load - already loaded by another goroutine")
		return nil
	}

	count := e.appendLocked(records)
	e.logger.Info("Loaded new vectors", "records", count, "max_id", e.maxLoadedID)
	e.updateMetricsLocked()
	return nil
}

func (e *Engine) appendLocked(records []storage.Record) int {
	count := 0
	for _, r := range records {
		if len(r.Embedding) == 0 {
			continue
		}
		e.vectors = append(e.vectors, vectorItem{
			RecordID:  r.ID,
			Embedding: r.Embedding,
			Metadata:  r.Metadata,
		})
		count++
		if r.ID > e.maxLoadedID {
			e.maxLoadedID = r.ID
		}
	}
	return count
}

func (e *Engine) updateMetricsLocked() {
	dims := 0
	if len(e.vectors) > 0 {
		dims = len(e.vectors[0].Embedding)
	}
	UpdateVectorIndexMetrics(len(e.vectors), dims)
}

// Size returns the number of indexed vectors.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.vectors)
}

type scored struct {
	id    int64
	score float32
}

// Search returns up to limit records matching f, most similar first.
// The query is embedded only when at least one record passes the filter.
func (e *Engine) Search(ctx context.Context, query string, f filter.Filter, limit int) ([]retrieval.Match, error) {
	if limit <= 0 {
		return nil, nil
	}

	candidates := e.candidates(f)
	if len(candidates) == 0 {
		RecordVectorSearch(0, 0)
		return nil, nil
	}

	queryVec, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]scored, 0, len(candidates))
	for _, item := range candidates {
		results = append(results, scored{id: item.RecordID, score: cosineSimilarity(queryVec, item.Embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	RecordVectorSearch(time.Since(start).Seconds(), len(candidates))

	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.id
	}
	records, err := e.records.GetRecordsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	byID := make(map[int64]storage.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	matches := make([]retrieval.Match, 0, len(results))
	for _, r := range results {
		rec, ok := byID[r.id]
		if !ok {
			// Deleted after the index was loaded
			continue
		}
		matches = append(matches, retrieval.Match{
			ID:       rec.ID,
			Document: rec.Document,
			Metadata: rec.Metadata,
			Score:    r.score,
		})
	}
	return matches, nil
}

func (e *Engine) candidates(f filter.Filter) []vectorItem {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if f.IsEmpty() {
		return append([]vectorItem(nil), e.vectors...)
	}

	var out []vectorItem
	for _, item := range e.vectors {
		if f.Match(item.Metadata) {
			out = append(out, item)
		}
	}
	return out
}

func (e *Engine) embed(ctx context.Context, query string) ([]float32, error) {
	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, openrouter.EmbeddingRequest{
		Model:   e.model,
		Input:   []string{query},
		LogMeta: map[string]any{"purpose": "query"},
	})
	if err != nil {
		RecordEmbeddingRequest(e.model, time.Since(start).Seconds(), false, 0)
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		RecordEmbeddingRequest(e.model, time.Since(start).Seconds(), false, 0)
		return nil, errors.New("embed query: empty embedding response")
	}
	RecordEmbeddingRequest(e.model, time.Since(start).Seconds(), true, resp.Usage.TotalTokens)
	return resp.Data[0].Embedding, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB))))
}
