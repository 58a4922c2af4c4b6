// Package retrieval runs the filtered similarity search and turns its
// matches into the grounding context handed to the reasoning call.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/filter"
)

// DefaultLimit is the number of matches requested per question.
const DefaultLimit = 5

// Match is one search result in engine order.
type Match struct {
	ID       int64
	Document string
	Metadata map[string]any
	Score    float32
}

// Searcher is the semantic search engine.
type Searcher interface {
	Search(ctx context.Context, query string, f filter.Filter, limit int) ([]Match, error)
}

// SearchError wraps a search engine failure with the request that caused it.
type SearchError struct {
	Query  string
	Filter string
	Err    error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed (filter %s): %v", e.Filter, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// Grounding is the conditioned search result for one question.
type Grounding struct {
	Matches  []Match
	Context  string
	Fallback bool
}

// Conditioner searches with a filter and linearizes the matches.
type Conditioner struct {
	logger   *slog.Logger
	searcher Searcher
	fields   catalog.Fields
	limit    int
	fallback string
}

// NewConditioner creates a Conditioner. fallback is the marker line used as
// context when nothing matches.
func NewConditioner(logger *slog.Logger, searcher Searcher, fields catalog.Fields, limit int, fallback string) *Conditioner {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Conditioner{
		logger:   logger.With("component", "retrieval"),
		searcher: searcher,
		fields:   fields,
		limit:    limit,
		fallback: fallback,
	}
}

// Condition searches for query under f. Matches are kept in engine order and
// truncated to the limit; they are never re-ranked. Zero matches yield the
// fallback marker as context.
func (c *Conditioner) Condition(ctx context.Context, query string, f filter.Filter) (Grounding, error) {
	start := time.Now()

	matches, err := c.searcher.Search(ctx, query, f, c.limit)
	if err != nil {
		RecordSearch(time.Since(start).Seconds(), false)
		return Grounding{}, &SearchError{Query: query, Filter: f.String(), Err: err}
	}
	RecordSearch(time.Since(start).Seconds(), true)

	if len(matches) > c.limit {
		matches = matches[:c.limit]
	}

	c.logger.Debug("search completed",
		"filter", f.String(),
		"matches", len(matches),
		"duration", time.Since(start),
	)

	if len(matches) == 0 {
		RecordFallback()
		return Grounding{Context: c.fallback, Fallback: true}, nil
	}

	RecordMatches(len(matches))
	return Grounding{
		Matches: matches,
		Context: Linearize(matches, c.fields),
	}, nil
}

// Linearize renders one "[<institution> <track>] <document>" line per match.
// Line breaks inside documents are flattened so the line count equals the
// match count.
func Linearize(matches []Match, fields catalog.Fields) string {
	var sb strings.Builder
	for i, m := range matches {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%s %s] %s",
			metaString(m.Metadata, fields.Institution),
			metaString(m.Metadata, fields.Track),
			flatten(m.Document),
		)
	}
	return sb.String()
}

func metaString(metadata map[string]any, key string) string {
	v, ok := metadata[key]
	if !ok || v == nil {
		return "-"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func flatten(doc string) string {
	return strings.TrimSpace(lineBreaks.Replace(doc))
}
