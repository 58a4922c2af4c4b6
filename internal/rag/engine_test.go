package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/runixer/ipsi/internal/filter"
	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/storage"
	"github.com/runixer/ipsi/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupEngine(t *testing.T) (*Engine, *storage.SQLiteStore, *testutil.MockOpenRouterClient) {
	t.Helper()
	store := testutil.TestStore(t)
	testutil.SeedRecords(t, store, testutil.TestRecords())

	client := new(testutil.MockOpenRouterClient)
	e := NewEngine(testutil.TestLogger(), store, client, "test-embedding-model", 0)
	require.NoError(t, e.ReloadVectors(context.Background()))
	return e, store, client
}

func embeddingFor(client *testutil.MockOpenRouterClient, query string, vec []float32) {
	client.On("CreateEmbeddings", mock.Anything, mock.MatchedBy(func(req openrouter.EmbeddingRequest) bool {
		return req.Model == "test-embedding-model" && len(req.Input) == 1 && req.Input[0] == query
	})).Return(testutil.MockEmbeddingResponse(vec), nil)
}

func institution(name string) filter.Filter {
	return filter.Filter{Terms: []filter.Term{{Field: "학교명", Values: []string{name}}}}
}

func TestSearch_RanksByCosine(t *testing.T) {
	e, _, client := setupEngine(t)
	embeddingFor(client, "종합전형", testutil.AxisX)

	matches, err := e.Search(context.Background(), "종합전형", filter.Filter{}, 3)
	require.NoError(t, err)

	require.Len(t, matches, 3)
	assert.Equal(t, "서울대", matches[0].Metadata["학교명"])
	assert.Equal(t, "학생부종합", matches[0].Metadata["전형"])
	assert.Equal(t, "학생부 종합", matches[1].Metadata["전형"])
	assert.Equal(t, "고려대", matches[2].Metadata["학교명"])
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.GreaterOrEqual(t, matches[1].Score, matches[2].Score)
}

func TestSearch_AppliesFilterBeforeRanking(t *testing.T) {
	e, _, client := setupEngine(t)
	embeddingFor(client, "교과", testutil.AxisX)

	matches, err := e.Search(context.Background(), "교과", institution("연세대"), 5)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "연세대", matches[0].Metadata["학교명"])
	assert.Contains(t, matches[0].Document, "70% cut 1.6")
}

func TestSearch_TrackVariants(t *testing.T) {
	e, _, client := setupEngine(t)
	embeddingFor(client, "서울대 종합", testutil.AxisX)

	f := filter.Filter{Terms: []filter.Term{
		{Field: "학교명", Values: []string{"서울대"}},
		{Field: "전형", Values: []string{"학생부종합", "학생부 종합"}},
	}}
	matches, err := e.Search(context.Background(), "서울대 종합", f, 5)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestSearch_NoCandidatesSkipsEmbedding(t *testing.T) {
	e, _, client := setupEngine(t)

	matches, err := e.Search(context.Background(), "질문", institution("부산대"), 5)
	require.NoError(t, err)

	assert.Empty(t, matches)
	client.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	e, _, client := setupEngine(t)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := e.Search(context.Background(), "질문", filter.Filter{}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSearch_EmptyEmbeddingResponse(t *testing.T) {
	e, _, client := setupEngine(t)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(openrouter.EmbeddingResponse{}, nil)

	_, err := e.Search(context.Background(), "질문", filter.Filter{}, 5)
	assert.Error(t, err)
}

func TestSearch_ZeroLimit(t *testing.T) {
	e, _, _ := setupEngine(t)

	matches, err := e.Search(context.Background(), "질문", filter.Filter{}, 0)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestLoadNewVectors(t *testing.T) {
	e, store, client := setupEngine(t)
	assert.Equal(t, 5, e.Size())

	testutil.SeedRecords(t, store, []storage.Record{
		testutil.TestRecord("부산대", "학생부교과", "부산대 교과 70% cut 2.8", testutil.AxisY),
		{Document: "not embedded yet", Metadata: map[string]any{"학교명": "부산대", "전형": "논술"}},
	})
	require.NoError(t, e.LoadNewVectors(context.Background()))
	assert.Equal(t, 6, e.Size())

	embeddingFor(client, "부산대", testutil.AxisY)
	matches, err := e.Search(context.Background(), "부산대", institution("부산대"), 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "부산대 교과 70% cut 2.8", matches[0].Document)

	// nothing new
	require.NoError(t, e.LoadNewVectors(context.Background()))
	assert.Equal(t, 6, e.Size())
}

func TestReloadVectors_SourceError(t *testing.T) {
	src := new(testutil.MockRecordSource)
	src.On("GetRecordsAfterID", mock.Anything, int64(0)).Return(nil, errors.New("disk I/O error"))

	e := NewEngine(testutil.TestLogger(), src, new(testutil.MockOpenRouterClient), "m", 0)
	assert.Error(t, e.ReloadVectors(context.Background()))
	assert.Equal(t, 0, e.Size())
}

func TestSearch_SkipsRecordsDeletedAfterLoad(t *testing.T) {
	src := new(testutil.MockRecordSource)
	client := new(testutil.MockOpenRouterClient)

	records := []storage.Record{
		{ID: 1, Document: "a", Metadata: map[string]any{"학교명": "서울대"}, Embedding: testutil.AxisX},
		{ID: 2, Document: "b", Metadata: map[string]any{"학교명": "서울대"}, Embedding: testutil.AxisY},
	}
	src.On("GetRecordsAfterID", mock.Anything, int64(0)).Return(records, nil)
	src.On("GetRecordsByIDs", mock.Anything, []int64{1, 2}).Return([]storage.Record{records[1]}, nil)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(testutil.MockEmbeddingResponse(testutil.AxisX), nil)

	e := NewEngine(testutil.TestLogger(), src, client, "m", 0)
	require.NoError(t, e.ReloadVectors(context.Background()))

	matches, err := e.Search(context.Background(), "q", filter.Filter{}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(2), matches[0].ID)
}

func TestStartStop(t *testing.T) {
	store := testutil.TestStore(t)
	e := NewEngine(testutil.TestLogger(), store, new(testutil.MockOpenRouterClient), "m", 10*time.Millisecond)

	require.NoError(t, e.Start(context.Background()))
	testutil.SeedRecords(t, store, testutil.TestRecords()[:1])
	assert.Eventually(t, func() bool { return e.Size() == 1 }, time.Second, 10*time.Millisecond)

	e.Stop()
	e.Stop()
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
