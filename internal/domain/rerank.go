package domain

import "context"

// Reranker is the pairwise-relevance provider contract. The returned indexes
// refer to positions in the submitted documents slice, 0-based; the result
// may be a strict subset of the submitted documents, sorted by relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error)
	// MaxDocuments is the provider's per-request document cap. Callers must
	// respect it and surface any truncation instead of hiding it.
	MaxDocuments() int
}

// RerankResult is one scored document from the rerank provider.
type RerankResult struct {
	// Index is the position of the document in the submitted list.
	Index int
	// Relevance is the cross-encoder relevance score, provider scale.
	Relevance float64
}
