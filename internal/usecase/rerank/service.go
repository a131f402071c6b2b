// Package rerank attaches pairwise cross-encoder relevance to a corpus.
package rerank

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
)

// Service calls the external rerank capability and merges its results back
// onto the corpus.
type Service struct {
	provider domain.Reranker
	logger   *zap.Logger
}

// New creates a rerank stage around a provider client. The client's
// lifecycle belongs to the caller, not to this service.
func New(provider domain.Reranker, logger *zap.Logger) *Service {
	return &Service{provider: provider, logger: logger}
}

// Result carries the annotated corpus plus how much of it was submitted, so
// callers can see truncation instead of inferring it from missing scores.
type Result struct {
	Corpus domain.Corpus
	// Submitted is how many documents went to the provider. Less than the
	// corpus size means the provider cap truncated the tail.
	Submitted int
}

// Rerank submits the corpus descriptions, in corpus order, capped at the
// provider's documented limit, and merges the returned scores back by the
// submitted-list position. The merge is a left join: records past the cap or
// absent from the response keep a missing reranker score, never a zero one;
// a silently zeroed score would be indistinguishable from a legitimately
// irrelevant document.
//
// Provider failures of any kind are fatal for this stage. Scores already
// attached by other stages are untouched either way.
func (s *Service) Rerank(ctx context.Context, query string, c domain.Corpus) (Result, error) {
	if len(c) == 0 {
		return Result{Corpus: c.Clone()}, nil
	}

	docs := c.Descriptions()
	limit := s.provider.MaxDocuments()
	if limit > 0 && len(docs) > limit {
		s.logger.Warn("corpus exceeds rerank provider cap, tail will not be scored",
			zap.Int("corpus_size", len(docs)),
			zap.Int("cap", limit),
		)
		docs = docs[:limit]
	}

	results, err := s.provider.Rerank(ctx, query, docs)
	if err != nil {
		return Result{}, fmt.Errorf("rerank %d documents: %w", len(docs), err)
	}

	// Join strictly by position in the submitted list. The position was the
	// key for the whole round trip, so duplicate description texts cannot
	// cross-contaminate scores.
	out := c.Clone()
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(docs) {
			return Result{}, fmt.Errorf("result index %d outside submitted range %d: %w",
				res.Index, len(docs), domain.ErrRerankProviderError)
		}
		out[res.Index].SetScore(domain.SignalReranker, res.Relevance)
	}

	s.logger.Debug("rerank complete",
		zap.Int("submitted", len(docs)),
		zap.Int("scored", len(results)),
	)
	return Result{Corpus: out, Submitted: len(docs)}, nil
}
