package domain

import "fmt"

// Query is the user's free-form text plus its embedding. It is a
// zero-identity pseudo-record: it may be injected into the visualization as
// a synthetic point but never participates in relevance scoring.
type Query struct {
	text      string
	embedding []float32
}

// NewQuery creates a query from raw text.
func NewQuery(text string) (Query, error) {
	if text == "" {
		return Query{}, fmt.Errorf("%w: query text", ErrMissingField)
	}
	return Query{text: text}, nil
}

// Text returns the raw query text.
func (q Query) Text() string { return q.text }

// Embedding returns the query embedding, nil when not yet embedded.
func (q Query) Embedding() []float32 { return q.embedding }

// WithEmbedding returns a copy carrying the given embedding vector.
func (q Query) WithEmbedding(v []float32) Query {
	return Query{text: q.text, embedding: v}
}
