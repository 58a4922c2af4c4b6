package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

func (s *SQLiteStore) AddRecord(ctx context.Context, record Record) (int64, error) {
	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	var embBytes []byte
	if len(record.Embedding) > 0 {
		embBytes, err = json.Marshal(record.Embedding)
		if err != nil {
			return 0, fmt.Errorf("marshal embedding: %w", err)
		}
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO records (document, metadata, embedding) VALUES (?, ?, ?)",
		record.Document, string(metaBytes), embBytes,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAllMetadata returns the metadata of every record in id order.
// A row whose metadata is not a JSON object fails the whole read:
// callers building options must not silently drop categories.
func (s *SQLiteStore) GetAllMetadata(ctx context.Context) ([]RecordMetadata, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, metadata FROM records ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RecordMetadata
	for rows.Next() {
		var (
			m   RecordMetadata
			raw string
		)
		if err := rows.Scan(&m.ID, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &m.Metadata); err != nil {
			return nil, fmt.Errorf("record %d: malformed metadata: %w", m.ID, err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// GetRecordsAfterID returns records with id > minID that carry an embedding.
// Used for incremental loading of the search index.
func (s *SQLiteStore) GetRecordsAfterID(ctx context.Context, minID int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document, metadata, embedding, created_at FROM records WHERE id > ? AND embedding IS NOT NULL ORDER BY id ASC",
		minID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanRecords(rows)
}

func (s *SQLiteStore) GetRecordsByIDs(ctx context.Context, ids []int64) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		"SELECT id, document, metadata, embedding, created_at FROM records WHERE id IN (%s)",
		strings.Join(placeholders, ","),
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanRecords(rows)
}

func (s *SQLiteStore) GetCorpusVersion(ctx context.Context) (CorpusVersion, error) {
	var v CorpusVersion
	err := s.db.QueryRowContext(ctx, "SELECT count(*), COALESCE(MAX(id), 0) FROM records").Scan(&v.Count, &v.MaxID)
	return v, err
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func (s *SQLiteStore) scanRecords(rows rowScanner) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			r        Record
			meta     string
			embBytes []byte
		)
		if err := rows.Scan(&r.ID, &r.Document, &meta, &embBytes, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			s.logger.Warn("failed to unmarshal record metadata", "id", r.ID, "error", err)
			continue
		}
		if len(embBytes) > 0 {
			if err := json.Unmarshal(embBytes, &r.Embedding); err != nil {
				s.logger.Warn("failed to unmarshal record embedding", "id", r.ID, "error", err)
				continue
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
