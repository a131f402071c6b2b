package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
	"github.com/intersect-search/intersect/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

// fixedCounter reports a fixed token count for any text.
type fixedCounter struct {
	n   int
	err error
}

func (c fixedCounter) Count(_ string) (int, error) { return c.n, c.err }

// openaiEmbeddingResponse mirrors the OpenAI-compatible API embedding response.
type openaiEmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func embeddingResponse(vec []float32, tokens int) openaiEmbeddingResponse {
	resp := openaiEmbeddingResponse{Object: "list", Model: "test-model"}
	resp.Data = append(resp.Data, struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}{
		Object:    "embedding",
		Embedding: vec,
		Index:     0,
	})
	resp.Usage.PromptTokens = tokens
	resp.Usage.TotalTokens = tokens
	return resp
}

func newTestEmbedder(baseURL string, counter TokenCounter, maxTokens int) *Embedder {
	return NewEmbedder(&Config{
		APIKey:    "test-key",
		BaseURL:   baseURL,
		Model:     "test-model",
		Counter:   counter,
		MaxTokens: maxTokens,
		Provider:  "test",
		Logger:    zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	expectedVec := []float32{0.1, 0.2, 0.3, 0.4}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(embeddingResponse(expectedVec, 10))
	}))
	defer server.Close()

	emb := newTestEmbedder(server.URL, fixedCounter{n: 10}, 8000)

	result, err := emb.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(result.Embedding) != 4 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected embedding: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Errorf("expected 10 total tokens, got %d", result.TotalTokens)
	}
}

func TestEmbedder_RejectsOversizedInput(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(embeddingResponse([]float32{1}, 1))
	}))
	defer server.Close()

	emb := newTestEmbedder(server.URL, fixedCounter{n: 8001}, 8000)

	_, err := emb.Embed(context.Background(), "very long posting")
	if !errors.Is(err, domain.ErrEmbeddingInputTooLong) {
		t.Fatalf("expected ErrEmbeddingInputTooLong, got %v", err)
	}
	if called {
		t.Error("expected no provider call for oversized input")
	}
}

func TestEmbedder_NoCounterSkipsCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(embeddingResponse([]float32{1}, 1))
	}))
	defer server.Close()

	emb := newTestEmbedder(server.URL, nil, 8000)

	if _, err := emb.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail": "upstream unavailable"}`))
	}))
	defer server.Close()

	emb := newTestEmbedder(server.URL, fixedCounter{n: 5}, 8000)

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openaiEmbeddingResponse{Object: "list"})
	}))
	defer server.Close()

	emb := newTestEmbedder(server.URL, fixedCounter{n: 5}, 8000)

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError for empty data, got %v", err)
	}
}
