// Package testutil provides centralized test mocks, fixtures, and helpers.
// All test files should import mocks from here instead of defining their own.
package testutil

import (
	"context"

	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/filter"
	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/retrieval"
	"github.com/runixer/ipsi/internal/storage"
	"github.com/stretchr/testify/mock"
)

// MockOpenRouterClient implements openrouter.Client for tests.
type MockOpenRouterClient struct {
	mock.Mock
}

func (m *MockOpenRouterClient) CreateChatCompletion(ctx context.Context, req openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return openrouter.ChatCompletionResponse{}, args.Error(1)
	}
	// Handle both pointer and value returns for compatibility
	if resp, ok := args.Get(0).(*openrouter.ChatCompletionResponse); ok {
		return *resp, args.Error(1)
	}
	return args.Get(0).(openrouter.ChatCompletionResponse), args.Error(1)
}

func (m *MockOpenRouterClient) CreateEmbeddings(ctx context.Context, req openrouter.EmbeddingRequest) (openrouter.EmbeddingResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return openrouter.EmbeddingResponse{}, args.Error(1)
	}
	if resp, ok := args.Get(0).(*openrouter.EmbeddingResponse); ok {
		return *resp, args.Error(1)
	}
	return args.Get(0).(openrouter.EmbeddingResponse), args.Error(1)
}

// MockSearcher implements retrieval.Searcher for tests.
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string, f filter.Filter, limit int) ([]retrieval.Match, error) {
	args := m.Called(ctx, query, f, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Match), args.Error(1)
}

// MockRecordSource implements the read side of storage.RecordRepository
// plus catalog.Source.
type MockRecordSource struct {
	mock.Mock
}

func (m *MockRecordSource) Identity() string {
	return "mock.db"
}

func (m *MockRecordSource) GetAllMetadata(ctx context.Context) ([]storage.RecordMetadata, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.RecordMetadata), args.Error(1)
}

func (m *MockRecordSource) GetCorpusVersion(ctx context.Context) (storage.CorpusVersion, error) {
	args := m.Called(ctx)
	return args.Get(0).(storage.CorpusVersion), args.Error(1)
}

func (m *MockRecordSource) GetRecordsAfterID(ctx context.Context, minID int64) ([]storage.Record, error) {
	args := m.Called(ctx, minID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Record), args.Error(1)
}

func (m *MockRecordSource) GetRecordsByIDs(ctx context.Context, ids []int64) ([]storage.Record, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Record), args.Error(1)
}

// MockCatalog serves a fixed snapshot.
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Snapshot(ctx context.Context) catalog.Snapshot {
	args := m.Called(ctx)
	return args.Get(0).(catalog.Snapshot)
}

func (m *MockCatalog) Refresh(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalog) Invalidate(ctx context.Context) {
	m.Called(ctx)
}

// MockTranscriber implements yandex.Transcriber for tests.
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	args := m.Called(ctx, audio)
	return args.String(0), args.Error(1)
}
