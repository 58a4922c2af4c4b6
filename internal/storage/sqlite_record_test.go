package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addRecord(t *testing.T, store *SQLiteStore, doc, school, track string, emb []float32) int64 {
	t.Helper()
	id, err := store.AddRecord(context.Background(), Record{
		Document:  doc,
		Metadata:  map[string]any{"학교명": school, "전형": track},
		Embedding: emb,
	})
	require.NoError(t, err)
	return id
}

func TestAddRecordAndGetAllMetadata(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	id1 := addRecord(t, store, "50% cut 2.3", "서울대", "학생부 종합", []float32{1, 0})
	id2 := addRecord(t, store, "70% cut 2.6", "연세대", "학생부교과", nil)

	metas, err := store.GetAllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)

	assert.Equal(t, id1, metas[0].ID)
	assert.Equal(t, "서울대", metas[0].Metadata["학교명"])
	assert.Equal(t, "학생부 종합", metas[0].Metadata["전형"])
	assert.Equal(t, id2, metas[1].ID)
	assert.Equal(t, "연세대", metas[1].Metadata["학교명"])
}

func TestAddRecord_NilMetadataStoredAsEmptyObject(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.AddRecord(context.Background(), Record{Document: "bare"})
	require.NoError(t, err)

	metas, err := store.GetAllMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Empty(t, metas[0].Metadata)
}

func TestGetAllMetadata_MalformedRowFailsRead(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	addRecord(t, store, "ok", "서울대", "수시", nil)
	_, err := store.db.Exec("INSERT INTO records (document, metadata) VALUES ('broken', '{not json')")
	require.NoError(t, err)

	_, err = store.GetAllMetadata(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed metadata")
}

func TestGetRecordsAfterID(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	id1 := addRecord(t, store, "first", "서울대", "수시", []float32{1, 0})
	addRecord(t, store, "no vector", "서울대", "수시", nil)
	id3 := addRecord(t, store, "third", "고려대", "정시", []float32{0, 1})

	records, err := store.GetRecordsAfterID(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2, "records without embeddings are not indexed")
	assert.Equal(t, id1, records[0].ID)
	assert.Equal(t, []float32{1, 0}, records[0].Embedding)
	assert.Equal(t, id3, records[1].ID)
	assert.False(t, records[1].CreatedAt.IsZero())

	records, err = store.GetRecordsAfterID(ctx, id1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "third", records[0].Document)
}

func TestGetRecordsAfterID_SkipsMalformedRows(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.db.Exec("INSERT INTO records (document, metadata, embedding) VALUES ('bad', 'nope', '[1,0]')")
	require.NoError(t, err)
	addRecord(t, store, "good", "서울대", "수시", []float32{1, 0})

	records, err := store.GetRecordsAfterID(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "good", records[0].Document)
}

func TestGetRecordsByIDs(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	id1 := addRecord(t, store, "a", "서울대", "수시", []float32{1})
	addRecord(t, store, "b", "서울대", "수시", []float32{1})
	id3 := addRecord(t, store, "c", "서울대", "수시", []float32{1})

	records, err := store.GetRecordsByIDs(ctx, []int64{id3, id1})
	require.NoError(t, err)
	require.Len(t, records, 2)

	docs := []string{records[0].Document, records[1].Document}
	assert.ElementsMatch(t, []string{"a", "c"}, docs)

	records, err = store.GetRecordsByIDs(ctx, nil)
	assert.NoError(t, err)
	assert.Nil(t, records)
}

func TestGetCorpusVersion(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	v, err := store.GetCorpusVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CorpusVersion{}, v)
	assert.Equal(t, "0-0", v.String())

	addRecord(t, store, "a", "서울대", "수시", nil)
	id := addRecord(t, store, "b", "서울대", "수시", nil)

	v2, err := store.GetCorpusVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2.Count)
	assert.Equal(t, id, v2.MaxID)
	assert.NotEqual(t, v.String(), v2.String())
}

func TestUpdateMetrics_DoesNotPanicOnMemoryDB(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	addRecord(t, store, "a", "서울대", "수시", nil)
	assert.NotPanics(t, func() { store.UpdateMetrics(context.Background()) })
}
