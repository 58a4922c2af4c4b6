// Package filter compiles a user's institution/track selection into a
// structured metadata filter for the similarity search.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/runixer/ipsi/internal/catalog"
)

// Any is the selection value meaning "no constraint".
const Any = "any"

// ErrUnknownTrack is returned when a canonical track is not in the variant map.
var ErrUnknownTrack = errors.New("unknown track")

// IsAny reports whether a selection value places no constraint.
func IsAny(v string) bool {
	return v == "" || v == Any
}

// Term constrains one metadata field to equal one of Values.
type Term struct {
	Field  string
	Values []string
}

// Match reports whether metadata satisfies the term. Only string values match.
func (t Term) Match(metadata map[string]any) bool {
	v, ok := metadata[t.Field].(string)
	if !ok {
		return false
	}
	return slices.Contains(t.Values, v)
}

// Where renders the term in wire form: {field: v} or {field: {"$in": [...]}}.
func (t Term) Where() map[string]any {
	if len(t.Values) == 1 {
		return map[string]any{t.Field: t.Values[0]}
	}
	return map[string]any{t.Field: map[string]any{"$in": slices.Clone(t.Values)}}
}

// Filter is either empty, a single term or a conjunction of terms.
type Filter struct {
	Terms []Term
}

func (f Filter) IsEmpty() bool {
	return len(f.Terms) == 0
}

// Match reports whether metadata satisfies every term.
func (f Filter) Match(metadata map[string]any) bool {
	for _, t := range f.Terms {
		if !t.Match(metadata) {
			return false
		}
	}
	return true
}

// Where renders the filter in wire form. It returns nil for an empty filter,
// the bare term for one term and {"$and": [...]} otherwise.
func (f Filter) Where() map[string]any {
	switch len(f.Terms) {
	case 0:
		return nil
	case 1:
		return f.Terms[0].Where()
	default:
		clauses := make([]any, 0, len(f.Terms))
		for _, t := range f.Terms {
			clauses = append(clauses, t.Where())
		}
		return map[string]any{"$and": clauses}
	}
}

func (f Filter) String() string {
	if f.IsEmpty() {
		return "none"
	}
	data, err := json.Marshal(f.Where())
	if err != nil {
		return fmt.Sprintf("%v", f.Terms)
	}
	return string(data)
}

// Selection is what the user picked. Track holds a canonical name.
type Selection struct {
	Institution string
	Track       string
}

// Compiler builds filters against the configured metadata keys.
type Compiler struct {
	InstitutionField string
	TrackField       string
}

// Compile turns a selection into a filter. A track is expanded to every raw
// spelling recorded for its canonical name.
func (c Compiler) Compile(sel Selection, tracks catalog.TrackVariantMap) (Filter, error) {
	var terms []Term

	if !IsAny(sel.Institution) {
		terms = append(terms, Term{Field: c.InstitutionField, Values: []string{sel.Institution}})
	}

	if !IsAny(sel.Track) {
		variants, ok := tracks.Variants(sel.Track)
		if !ok {
			return Filter{}, fmt.Errorf("%w: %q", ErrUnknownTrack, sel.Track)
		}
		terms = append(terms, Term{Field: c.TrackField, Values: slices.Clone(variants)})
	}

	return Filter{Terms: terms}, nil
}

// Describe renders the selection for logs.
func (s Selection) Describe() string {
	parts := []string{"institution=" + orAny(s.Institution), "track=" + orAny(s.Track)}
	return strings.Join(parts, " ")
}

func orAny(v string) string {
	if IsAny(v) {
		return Any
	}
	return v
}
