// Package semantic scores a corpus by embedding similarity to the query.
package semantic

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
	"github.com/intersect-search/intersect/internal/usecase/rank"
)

// Service computes the semantic relevance signal.
type Service struct {
	logger *zap.Logger
}

// New creates a semantic scorer.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Score attaches the raw dot product of each record embedding with the query
// embedding, then re-sorts the corpus descending by that score and assigns
// the positional semantic rank. The dot product is deliberately not
// cosine-normalized: upstream embeddings are expected to arrive unit-length,
// so the score is a signed float with no fixed range.
//
// Every record must already carry an embedding of the query's
// dimensionality; anything else fails fast.
func (s *Service) Score(q domain.Query, c domain.Corpus) (domain.Corpus, error) {
	if len(c) == 0 {
		return c.Clone(), nil
	}

	qv := q.Embedding()
	if len(qv) == 0 {
		return nil, fmt.Errorf("query: %w", domain.ErrMissingEmbedding)
	}

	out := c.Clone()
	for i := range out {
		rv := out[i].Embedding()
		if len(rv) == 0 {
			return nil, fmt.Errorf("record %s: %w", out[i].ID(), domain.ErrMissingEmbedding)
		}
		if len(rv) != len(qv) {
			return nil, fmt.Errorf("record %s has dim %d, query has dim %d: %w",
				out[i].ID(), len(rv), len(qv), domain.ErrVectorDimMismatch)
		}
		out[i].SetScore(domain.SignalSemantic, dot(qv, rv))
	}

	s.logger.Debug("semantic scoring complete",
		zap.Int("corpus_size", len(out)),
		zap.Int("dimensions", len(qv)),
	)

	// Rank is positional: the record's place after the sort, not a lookup by
	// key. Duplicate scores stay unambiguous that way.
	return rank.Add(out, domain.SignalSemantic)
}

// dot accumulates in float64 so float32 vectors keep comparable precision.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
