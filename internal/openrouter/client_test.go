package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestCreateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test_api_key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test_model", req["model"])
		assert.Equal(t, 0.2, req["temperature"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
			Model: "test_model",
			Choices: []Choice{
				{Message: ResponseMessage{Role: RoleAssistant, Content: "Hello from mock server!"}},
			},
			Usage: Usage{PromptTokens: 100, CompletionTokens: 23, TotalTokens: 123},
		})
	}))
	defer server.Close()

	client, err := NewClientWithBaseURL(testLogger(), "test_api_key", "", server.URL+"/api/v1")
	require.NoError(t, err)

	temperature := 0.2
	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{
		Model:       "test_model",
		Messages:    []Message{{Role: RoleUser, Content: "Hello"}},
		Temperature: &temperature,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello from mock server!", resp.Content())
	assert.Equal(t, 100, resp.Usage.PromptTokens)
	assert.Equal(t, 23, resp.Usage.CompletionTokens)
	assert.Equal(t, 123, resp.Usage.TotalTokens)
}

func TestCreateChatCompletion_OmitsUnsetTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, has := req["temperature"]
		assert.False(t, has)
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{})
	}))
	defer server.Close()

	client, err := NewClientWithBaseURL(testLogger(), "k", "", server.URL)
	require.NoError(t, err)

	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "", resp.Content())
}

func TestCreateChatCompletion_NonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClientWithBaseURL(testLogger(), "k", "", server.URL)
	require.NoError(t, err)

	_, err = client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestCreateChatCompletion_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []Choice{{Message: ResponseMessage{Content: "recovered"}}},
		})
	}))
	defer server.Close()

	client, err := NewClientWithBaseURL(testLogger(), "k", "", server.URL)
	require.NoError(t, err)

	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content())
	assert.Equal(t, int32(2), calls.Load())
}

func TestCreateChatCompletion_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClientWithBaseURL(testLogger(), "k", "", server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = client.CreateChatCompletion(ctx, ChatCompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCreateEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"서울대 수시"}, req.Input)

		_ = json.NewEncoder(w).Encode(EmbeddingResponse{
			Data:  []EmbeddingObject{{Embedding: []float32{0.1, 0.2, 0.3}}},
			Usage: Usage{TotalTokens: 4},
		})
	}))
	defer server.Close()

	client, err := NewClientWithBaseURL(testLogger(), "k", "", server.URL)
	require.NoError(t, err)

	resp, err := client.CreateEmbeddings(context.Background(), EmbeddingRequest{Model: "emb", Input: []string{"서울대 수시"}})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, resp.Data[0].Embedding)
	assert.Equal(t, 4, resp.Usage.TotalTokens)
}

func TestNewClient_InvalidProxy(t *testing.T) {
	_, err := NewClientWithBaseURL(testLogger(), "k", "://bad", "")
	assert.Error(t, err)
}

func TestCalculateBackoff(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := calculateBackoff(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Duration(float64(maxDelay)*(1+jitterFactor)))
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, isRetryableStatusCode(http.StatusTooManyRequests))
	assert.True(t, isRetryableStatusCode(http.StatusGatewayTimeout))
	assert.False(t, isRetryableStatusCode(http.StatusUnauthorized))
	assert.False(t, isRetryableStatusCode(http.StatusOK))
}
