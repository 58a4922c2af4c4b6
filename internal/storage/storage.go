package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one indexed admission record: a document body plus the
// categorical metadata the filter works on.
type Record struct {
	ID        int64
	Document  string
	Metadata  map[string]any
	Embedding []float32
	CreatedAt time.Time
}

// RecordMetadata is the metadata of a single record without its body.
type RecordMetadata struct {
	ID       int64
	Metadata map[string]any
}

// CorpusVersion identifies a state of the records table. Records are
// append-only, so count and max id change together on every insert or delete.
type CorpusVersion struct {
	Count int64
	MaxID int64
}

func (v CorpusVersion) String() string {
	return fmt.Sprintf("%d-%d", v.Count, v.MaxID)
}

type Storage interface {
	RecordRepository
	MaintenanceRepository
}

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	dbPath string // Original path without query params, for file size check
}

func NewSQLiteStore(logger *slog.Logger, path string) (*SQLiteStore, error) {
	originalPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		originalPath = path[:idx]
	}

	// modernc.org/sqlite ignores the _journal_mode query param,
	// so WAL is set via PRAGMA after opening the connection
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One connection avoids "database is locked" with modernc.org/sqlite.
	// The corpus is read-mostly, so this is not a bottleneck.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		logger.Warn("failed to set WAL journal mode", "error", err)
	} else {
		logger.Info("SQLite journal mode set", "mode", journalMode, "path", originalPath)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy timeout", "error", err)
	}

	return &SQLiteStore{db: db, logger: logger, dbPath: originalPath}, nil
}

// Identity names the corpus this store serves. Catalog snapshots are keyed by it.
func (s *SQLiteStore) Identity() string {
	return s.dbPath
}

func (s *SQLiteStore) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return err
	}

	return nil
}

// CheckpointResult contains the result of a WAL checkpoint operation.
type CheckpointResult struct {
	Busy         int // 0 = success, 1 = blocked by reader
	Log          int // Total frames in WAL file
	Checkpointed int // Frames actually checkpointed
}

// Checkpoint forces a WAL checkpoint to flush all pending writes to the main database file.
func (s *SQLiteStore) Checkpoint() error {
	var res CheckpointResult
	err := s.db.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&res.Busy, &res.Log, &res.Checkpointed)
	if err != nil {
		return fmt.Errorf("checkpoint query failed: %w", err)
	}

	s.logger.Info("WAL checkpoint result",
		"busy", res.Busy,
		"log_frames", res.Log,
		"checkpointed_frames", res.Checkpointed,
	)

	if res.Busy != 0 {
		return fmt.Errorf("checkpoint blocked by reader (busy=%d)", res.Busy)
	}
	if res.Log > 0 && res.Checkpointed < res.Log {
		return fmt.Errorf("incomplete checkpoint: %d/%d frames", res.Checkpointed, res.Log)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.Checkpoint(); err != nil {
		s.logger.Warn("failed to checkpoint WAL before close", "error", err)
	}
	return s.db.Close()
}
