package testutil

import (
	"time"

	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/retrieval"
	"github.com/runixer/ipsi/internal/storage"
)

// Unit vectors along the axes of a three-dimensional test space.
var (
	AxisX = []float32{1, 0, 0}
	AxisY = []float32{0, 1, 0}
	AxisZ = []float32{0, 0, 1}
)

// TestRecord builds an admission record for the given institution and track.
func TestRecord(institution, track, document string, embedding []float32) storage.Record {
	return storage.Record{
		Document:  document,
		Metadata:  map[string]any{"학교명": institution, "전형": track},
		Embedding: embedding,
		CreatedAt: time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC),
	}
}

// TestRecords returns a small corpus with spacing variants of the same track.
func TestRecords() []storage.Record {
	return []storage.Record{
		TestRecord("서울대", "학생부종합", "서울대 학생부종합 50% cut 2.0 70% cut 2.3", AxisX),
		TestRecord("서울대", "학생부 종합", "서울대 일반전형 면접 비중 높음 50% cut 2.1", []float32{0.9, 0.1, 0}),
		TestRecord("연세대", "학생부교과", "연세대 추천형 70% cut 1.6", AxisY),
		TestRecord("고려대", "학생부종합", "고려대 계열적합형 50% cut 2.4", []float32{0.5, 0.5, 0}),
		TestRecord("고려대", "논술", "고려대 논술 최저 기준 있음", AxisZ),
	}
}

// TestSnapshot returns the catalog snapshot of TestRecords.
func TestSnapshot() catalog.Snapshot {
	metas := make([]map[string]any, 0, 5)
	for _, r := range TestRecords() {
		metas = append(metas, r.Metadata)
	}
	return catalog.Build(metas, TestFields)
}

// TestMatch builds a search match.
func TestMatch(id int64, institution, track, document string) retrieval.Match {
	return retrieval.Match{
		ID:       id,
		Document: document,
		Metadata: map[string]any{"학교명": institution, "전형": track},
		Score:    0.9,
	}
}

// TestEmbedding returns a sample embedding vector for testing.
func TestEmbedding() []float32 {
	// A simple 1536-dimensional vector (OpenAI embedding size)
	embedding := make([]float32, 1536)
	for i := range embedding {
		embedding[i] = float32(i) / 1536.0
	}
	return embedding
}

// MockEmbeddingResponse wraps a single vector in an embeddings response.
func MockEmbeddingResponse(vec []float32) openrouter.EmbeddingResponse {
	return openrouter.EmbeddingResponse{
		Data:  []openrouter.EmbeddingObject{{Embedding: vec}},
		Usage: openrouter.Usage{PromptTokens: 8, TotalTokens: 8},
	}
}

// MockChatResponse creates a mock ChatCompletionResponse with the given content.
// Token counts are set to reasonable defaults (150/30/180).
func MockChatResponse(content string) openrouter.ChatCompletionResponse {
	return MockChatResponseWithTokens(content, 150, 30)
}

// MockChatResponseWithTokens creates a mock ChatCompletionResponse with the given content
// and token counts. TotalTokens is calculated automatically.
func MockChatResponseWithTokens(content string, promptTokens, completionTokens int) openrouter.ChatCompletionResponse {
	return openrouter.ChatCompletionResponse{
		Choices: []openrouter.Choice{{
			Message:      openrouter.ResponseMessage{Role: openrouter.RoleAssistant, Content: content},
			FinishReason: "stop",
		}},
		Usage: openrouter.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}
