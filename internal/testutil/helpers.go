package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/config"
	"github.com/runixer/ipsi/internal/i18n"
	"github.com/runixer/ipsi/internal/storage"
)

// TestFields are the metadata keys used by the fixtures.
var TestFields = catalog.Fields{Institution: "학교명", Track: "전형"}

// TestLogger returns a discarding logger for tests.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestConfig returns the embedded defaults with test credentials filled in.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadDefault()
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	cfg.OpenRouter.APIKey = "test-key"
	cfg.Agents.Default.Model = "test-model"
	cfg.Embedding.Model = "test-embedding-model"
	cfg.Database.Path = ":memory:"
	cfg.Catalog.RefreshInterval = ""
	return cfg
}

// TestTranslator creates a translator with minimal English translations.
// Use t.TempDir() automatically cleaned up after test.
func TestTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tmpDir := t.TempDir()
	content := `
advisor:
  greeting: "Hello! Which university are you aiming for?"
  fallback_context: "No matching data"
  error_answer: "Error: %s"
  any_label: "Any"
  quality:
    low: "Low"
    medium: "Medium"
    high: "High"
    top: "Top"
  outcome:
    safe: "Safe"
    appropriate: "Appropriate"
    reach_with_merit: "Reach"
    unfavorable: "Unfavorable"
  track_family:
    holistic: "holistic"
    numeric: "numeric"
  system_prompt: "Target {{.Institution}}/{{.Track}} score={{.Score}} quality={{.Quality}}{{range .Verdicts}}\n{{.Source}} {{.Cut}}={{.Cutoff}} {{.Outcome}}{{end}}\nContext:\n{{.Context}}"
`
	err := os.WriteFile(filepath.Join(tmpDir, "en.yaml"), []byte(content), 0600)
	if err != nil {
		t.Fatalf("failed to write test translations: %v", err)
	}

	tr, err := i18n.NewTranslatorFromFS(os.DirFS(tmpDir), "en")
	if err != nil {
		t.Fatalf("failed to create test translator: %v", err)
	}
	return tr
}

// TestStore opens an initialized in-memory record store.
func TestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(TestLogger(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedRecords inserts records and returns their ids in order.
func SeedRecords(t *testing.T, store *storage.SQLiteStore, records []storage.Record) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		id, err := store.AddRecord(context.Background(), r)
		if err != nil {
			t.Fatalf("failed to add record: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

// Ptr returns a pointer to the given value. Useful for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
