package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogCapture captures slog JSON output for testing. It is safe for use by
// concurrent handlers.
type LogCapture struct {
	mu      sync.Mutex
	entries []LogEntry
	logger  *slog.Logger
}

// LogEntry represents a parsed log entry.
type LogEntry struct {
	Level   string                 `json:"level"`
	Message string                 `json:"msg"`
	Time    time.Time              `json:"time"`
	Fields  map[string]interface{} `json:"-"`
}

// NewLogCapture creates a new log capture at debug level.
func NewLogCapture() *LogCapture {
	lc := &LogCapture{}
	lc.logger = slog.New(slog.NewJSONHandler(lc, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return lc
}

// Logger returns the slog.Logger that writes to this capture.
func (lc *LogCapture) Logger() *slog.Logger {
	return lc.logger
}

func parseEntry(p []byte) LogEntry {
	var raw map[string]interface{}
	if err := json.Unmarshal(p, &raw); err != nil {
		return LogEntry{}
	}

	entry := LogEntry{Fields: make(map[string]interface{})}
	for k, v := range raw {
		switch k {
		case slog.LevelKey:
			entry.Level, _ = v.(string)
		case slog.MessageKey:
			entry.Message, _ = v.(string)
		case slog.TimeKey:
			if s, ok := v.(string); ok {
				entry.Time, _ = time.Parse(time.RFC3339Nano, s)
			}
		default:
			entry.Fields[k] = v
		}
	}
	return entry
}

// Write implements io.Writer. The JSON handler emits one record per call.
func (lc *LogCapture) Write(p []byte) (int, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for _, line := range bytes.Split(p, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) > 0 {
			lc.entries = append(lc.entries, parseEntry(line))
		}
	}
	return len(p), nil
}

// Entries returns a copy of all captured log entries.
func (lc *LogCapture) Entries() []LogEntry {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := make([]LogEntry, len(lc.entries))
	copy(out, lc.entries)
	return out
}

// Find returns entries matching the specified level and message substring.
func (lc *LogCapture) Find(level string, msgSubstring string) []LogEntry {
	var results []LogEntry
	for _, entry := range lc.Entries() {
		if (level == "" || strings.EqualFold(entry.Level, level)) &&
			(msgSubstring == "" || strings.Contains(entry.Message, msgSubstring)) {
			results = append(results, entry)
		}
	}
	return results
}

// FindByField returns entries containing the specified field value.
func (lc *LogCapture) FindByField(key string, value interface{}) []LogEntry {
	var results []LogEntry
	for _, entry := range lc.Entries() {
		if v, ok := entry.Fields[key]; ok && fmt.Sprint(v) == fmt.Sprint(value) {
			results = append(results, entry)
		}
	}
	return results
}

// HasError returns true if any ERROR level entries were captured.
func (lc *LogCapture) HasError() bool {
	return len(lc.Find("error", "")) > 0
}

func (lc *LogCapture) Clear() {
	lc.mu.Lock()
	lc.entries = nil
	lc.mu.Unlock()
}
