package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token usage through the
// decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// EmbedCorpus fills missing record embeddings through the given embedder,
// one blocking call per description. Any provider failure is fatal for the
// whole corpus: a partially embedded corpus cannot be scored consistently.
func EmbedCorpus(ctx context.Context, e Embedder, c Corpus) (Corpus, error) {
	out := c.Clone()
	for i := range out {
		if len(out[i].Embedding()) > 0 {
			continue
		}
		res, err := e.Embed(ctx, out[i].Description())
		if err != nil {
			return nil, fmt.Errorf("embed record %s: %w", out[i].ID(), err)
		}
		out[i].SetEmbedding(res.Embedding)
	}
	return out, nil
}

// EmbedQuery fills the query embedding when absent.
func EmbedQuery(ctx context.Context, e Embedder, q Query) (Query, error) {
	if len(q.Embedding()) > 0 {
		return q, nil
	}
	res, err := e.Embed(ctx, q.Text())
	if err != nil {
		return Query{}, fmt.Errorf("embed query: %w", err)
	}
	return q.WithEmbedding(res.Embedding), nil
}
