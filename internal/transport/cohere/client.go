// Package cohere implements the cross-encoder rerank provider over the
// Cohere v2 rerank API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
	"github.com/intersect-search/intersect/internal/metrics"
)

const (
	defaultBaseURL = "https://api.cohere.com"
	defaultModel   = "rerank-v3.5"

	// The v2 rerank endpoint caps the document list per request.
	maxDocuments = 1000
)

// Client calls the Cohere v2 rerank endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *zap.Logger
}

// Config holds the rerank provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a rerank client. The API key is required.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere api key: %w", domain.ErrMissingCredentials)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		logger:     cfg.Logger,
	}, nil
}

// MaxDocuments implements domain.Reranker.
func (c *Client) MaxDocuments() int { return maxDocuments }

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements domain.Reranker. Results carry the provider's relevance
// score and the index of the document in the submitted list.
func (c *Client) Rerank(ctx context.Context, query string, documents []string) ([]domain.RerankResult, error) {
	if len(documents) > maxDocuments {
		return nil, fmt.Errorf("%d documents exceeds limit of %d: %w",
			len(documents), maxDocuments, domain.ErrRerankProviderError)
	}

	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("cohere", c.model, "error").Inc()
		return nil, fmt.Errorf("rerank request: %v: %w", err, domain.ErrRerankProviderError)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RerankRequestsTotal.WithLabelValues("cohere", c.model, "error").Inc()
		return nil, parseAPIError(resp)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("cohere", c.model, "error").Inc()
		return nil, fmt.Errorf("decode rerank response: %v: %w", err, domain.ErrRerankProviderError)
	}

	metrics.RerankRequestsTotal.WithLabelValues("cohere", c.model, "success").Inc()
	metrics.RerankRequestDuration.WithLabelValues("cohere", c.model).Observe(time.Since(start).Seconds())
	metrics.RerankDocumentsTotal.WithLabelValues("cohere", c.model).Add(float64(len(documents)))

	results := make([]domain.RerankResult, len(parsed.Results))
	for i, r := range parsed.Results {
		results[i] = domain.RerankResult{Index: r.Index, Relevance: r.RelevanceScore}
	}
	return results, nil
}

// parseAPIError extracts the "message" field from a Cohere error body.
func parseAPIError(resp *http.Response) error {
	wrap := domain.ErrRerankProviderError

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		return fmt.Errorf("rerank API error %d: %s: %w", resp.StatusCode, parsed.Message, wrap)
	}
	return fmt.Errorf("rerank API error %d: %s: %w", resp.StatusCode, string(body), wrap)
}
