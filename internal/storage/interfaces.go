package storage

import "context"

// RecordRepository gives read access to the indexed admission corpus.
// Writing is only used by tooling and tests; the advisor never mutates records.
type RecordRepository interface {
	AddRecord(ctx context.Context, record Record) (int64, error)
	GetAllMetadata(ctx context.Context) ([]RecordMetadata, error)
	GetRecordsAfterID(ctx context.Context, minID int64) ([]Record, error)
	GetRecordsByIDs(ctx context.Context, ids []int64) ([]Record, error)
	GetCorpusVersion(ctx context.Context) (CorpusVersion, error)
}

// MaintenanceRepository handles database health operations.
type MaintenanceRepository interface {
	GetDBSize() (int64, error)
	GetTableSizes() ([]TableSize, error)
	Checkpoint() error
}
