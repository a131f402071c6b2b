// Package permute reorders the top documents with an LLM acting as a
// listwise ranking agent, an experimental alternative to the pairwise
// cross-encoder signal.
package permute

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
)

const systemPrompt = "You are a ranking assistant that orders passages by their relevance to a query."

// Entry is one document in the permuted order.
type Entry struct {
	NewRank     int    `json:"new_rank"`
	OldRank     int    `json:"old_rank"`
	Description string `json:"description"`
}

// Service asks a chat model for a full permutation of the submitted
// documents. Temperature is pinned to zero; the response contract is a JSON
// object with a results array.
type Service struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// New creates the permutation reranker around an existing client. The
// client lifecycle belongs to the composition root.
func New(client *openai.Client, model string, logger *zap.Logger) *Service {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Service{client: client, model: model, logger: logger}
}

// Permute submits the query and the first topK documents and returns the
// model's ordering, sorted by new rank. Malformed model output is an error:
// a fabricated ordering would be worse than none.
func (s *Service) Permute(ctx context.Context, query string, documents []string, topK int) ([]Entry, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topK > 0 && len(documents) > topK {
		documents = documents[:topK]
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(query, documents)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("permutation completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response: %w", domain.ErrRerankProviderError)
	}

	var parsed struct {
		Results []Entry `json:"results"`
	}
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse permutation response: %w: %w", err, domain.ErrRerankProviderError)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("permutation response has no results: %w", domain.ErrRerankProviderError)
	}
	for _, e := range parsed.Results {
		if e.OldRank < 0 || e.OldRank >= len(documents) {
			return nil, fmt.Errorf("old_rank %d outside submitted range %d: %w",
				e.OldRank, len(documents), domain.ErrRerankProviderError)
		}
	}

	sort.SliceStable(parsed.Results, func(i, j int) bool {
		return parsed.Results[i].NewRank < parsed.Results[j].NewRank
	})
	s.logger.Debug("permutation complete",
		zap.Int("submitted", len(documents)),
		zap.Int("returned", len(parsed.Results)),
	)
	return parsed.Results, nil
}

func buildPrompt(query string, documents []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rank the passages below by relevance to this query: %s\n\n", query)
	b.WriteString("Respond with JSON only, shaped as ")
	b.WriteString(`{"results": [{"new_rank": 0, "old_rank": 0, "description": "..."}]}`)
	b.WriteString(", ordered by new_rank.\n\nPassages:\n\n")
	for i, doc := range documents {
		fmt.Fprintf(&b, "[%d] %s\n\n", i, doc)
	}
	return b.String()
}
