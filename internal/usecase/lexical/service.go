// Package lexical scores a corpus against a query by BM25 term overlap.
package lexical

import (
	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
)

// Service computes the lexical relevance signal.
type Service struct {
	logger *zap.Logger
}

// New creates a lexical scorer.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Score attaches a BM25 score to every record, leaving row count and order
// untouched. Every record gets a score: retrieval is over the full corpus,
// never truncated. An empty corpus passes through unchanged and an
// all-stopword query scores every document 0; neither is an error.
func (s *Service) Score(query string, c domain.Corpus) (domain.Corpus, error) {
	if len(c) == 0 {
		return c.Clone(), nil
	}

	docs := make([][]string, len(c))
	for i := range c {
		docs[i] = Tokenize(c[i].Description())
	}
	queryTokens := Tokenize(query)

	idx := newIndex(docs)
	scores := idx.score(queryTokens)

	s.logger.Debug("lexical scoring complete",
		zap.Int("corpus_size", len(c)),
		zap.Int("query_tokens", len(queryTokens)),
	)

	out := c.Clone()
	for i := range out {
		out[i].SetScore(domain.SignalLexical, scores[i])
	}
	return out, nil
}
