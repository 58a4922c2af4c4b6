package storage

import (
	"context"
	"os"
)

// TableSize represents the size of a database table.
type TableSize struct {
	Name  string
	Bytes int64
}

// GetDBSize returns the size of the database file in bytes.
func (s *SQLiteStore) GetDBSize() (int64, error) {
	info, err := os.Stat(s.dbPath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// GetTableSizes returns the size of each table in bytes using SQLite's dbstat virtual table.
func (s *SQLiteStore) GetTableSizes() ([]TableSize, error) {
	query := `
		SELECT name, SUM(pgsize) as size_bytes
		FROM dbstat
		WHERE name NOT LIKE 'sqlite_%'
		GROUP BY name
		ORDER BY size_bytes DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sizes []TableSize
	for rows.Next() {
		var ts TableSize
		if err := rows.Scan(&ts.Name, &ts.Bytes); err != nil {
			return nil, err
		}
		sizes = append(sizes, ts)
	}
	return sizes, rows.Err()
}

// UpdateMetrics refreshes the storage gauges. Errors are logged, not returned:
// a failed size probe must not affect serving.
func (s *SQLiteStore) UpdateMetrics(ctx context.Context) {
	if size, err := s.GetDBSize(); err == nil {
		SetStorageSize(size)
	} else {
		s.logger.Debug("failed to stat database file", "error", err)
	}

	if sizes, err := s.GetTableSizes(); err == nil {
		for _, ts := range sizes {
			SetTableSize(ts.Name, ts.Bytes)
		}
	} else {
		s.logger.Debug("failed to read table sizes", "error", err)
	}

	if v, err := s.GetCorpusVersion(ctx); err == nil {
		SetRecordCount(v.Count)
	} else {
		s.logger.Warn("failed to read corpus version", "error", err)
	}
}
