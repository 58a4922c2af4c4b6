package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/storage"
)

// AssertRecordCount asserts the number of records in the store.
func AssertRecordCount(t *testing.T, store *storage.SQLiteStore, expected int) {
	t.Helper()
	v, err := store.GetCorpusVersion(context.Background())
	if err != nil {
		t.Fatalf("failed to read corpus version: %v", err)
	}
	if v.Count != int64(expected) {
		t.Errorf("expected %d records, got %d", expected, v.Count)
	}
}

// AssertSystemPromptContains asserts that the first message is a system
// message containing substr.
func AssertSystemPromptContains(t *testing.T, msgs []openrouter.Message, substr string) {
	t.Helper()
	if len(msgs) == 0 || msgs[0].Role != openrouter.RoleSystem {
		t.Fatalf("expected a leading system message, got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, substr) {
		t.Errorf("system prompt does not contain %q:\n%s", substr, msgs[0].Content)
	}
}

// AssertLogContains asserts that the log contains an entry with the given level and message.
func AssertLogContains(t *testing.T, logs []LogEntry, level string, msg string) {
	t.Helper()
	for _, entry := range logs {
		if (level == "" || strings.EqualFold(entry.Level, level)) &&
			strings.Contains(entry.Message, msg) {
			return
		}
	}
	t.Fatalf("no log entry found with level=%q msg containing %q. Entries: %d", level, msg, len(logs))
}

// AssertLogHasField asserts that a log entry exists with the given field value.
func AssertLogHasField(t *testing.T, logs []LogEntry, key string, value interface{}) {
	t.Helper()
	for _, entry := range logs {
		if v, ok := entry.Fields[key]; ok && fmt.Sprint(v) == fmt.Sprint(value) {
			return
		}
	}
	t.Fatalf("no log entry found with field %q=%v. Entries: %d", key, value, len(logs))
}

// AssertNoErrorLogs asserts that no ERROR level logs were captured.
func AssertNoErrorLogs(t *testing.T, logs []LogEntry) {
	t.Helper()
	for _, entry := range logs {
		if strings.EqualFold(entry.Level, "error") {
			t.Errorf("found error log: %s (fields: %v)", entry.Message, entry.Fields)
		}
	}
}
