// Package catalog derives the institution and track options shown to users
// from the metadata of the indexed admission records.
package catalog

import (
	"sort"
	"strings"
	"unicode"
)

// CanonicalTrackName removes every whitespace rune from a raw track name.
// "학생부 종합" and "학생부종합" share the canonical name "학생부종합".
func CanonicalTrackName(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}

// TrackVariantMap maps a canonical track name to the raw spellings found in
// the corpus, in first-seen order and without duplicates.
type TrackVariantMap map[string][]string

// Add records raw under its canonical name. Empty and whitespace-only
// values are ignored.
func (m TrackVariantMap) Add(raw string) {
	canonical := CanonicalTrackName(raw)
	if canonical == "" {
		return
	}
	for _, v := range m[canonical] {
		if v == raw {
			return
		}
	}
	m[canonical] = append(m[canonical], raw)
}

// Canonical returns the canonical names in sorted order.
func (m TrackVariantMap) Canonical() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Variants returns the raw spellings for a canonical name.
func (m TrackVariantMap) Variants(canonical string) ([]string, bool) {
	v, ok := m[canonical]
	if !ok || len(v) == 0 {
		return nil, false
	}
	return v, true
}

// Fields names the metadata keys carrying the categorical values.
type Fields struct {
	Institution string
	Track       string
}

// Build derives a snapshot from record metadata. Non-string and empty values
// are skipped. Institution names are kept exactly as stored. The returned
// snapshot has StatusEmpty when nothing usable was found and StatusOK otherwise.
func Build(metas []map[string]any, fields Fields) Snapshot {
	institutions := make(map[string]struct{})
	tracks := make(TrackVariantMap)

	for _, meta := range metas {
		if name, ok := meta[fields.Institution].(string); ok && name != "" {
			institutions[name] = struct{}{}
		}
		if raw, ok := meta[fields.Track].(string); ok {
			tracks.Add(raw)
		}
	}

	names := make([]string, 0, len(institutions))
	for name := range institutions {
		names = append(names, name)
	}
	sort.Strings(names)

	status := StatusOK
	if len(names) == 0 && len(tracks) == 0 {
		status = StatusEmpty
	}

	return Snapshot{
		Institutions: names,
		Tracks:       tracks,
		Status:       status,
	}
}
