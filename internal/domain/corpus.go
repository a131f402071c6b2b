package domain

import "fmt"

// Corpus is the ordered collection of records in a single pipeline run.
// The order as loaded is the relevance-zero baseline that displacement is
// measured against.
type Corpus []Record

// Clone deep-copies the corpus so each run operates on its own copy.
func (c Corpus) Clone() Corpus {
	out := make(Corpus, len(c))
	for i := range c {
		out[i] = c[i].Clone()
	}
	return out
}

// Descriptions returns the document texts in corpus order.
func (c Corpus) Descriptions() []string {
	out := make([]string, len(c))
	for i := range c {
		out[i] = c[i].Description()
	}
	return out
}

// Validate checks the ingestion contract: every record carries a non-empty
// title and description. Upstream is expected to deliver this already, but
// the scorers assume it, so it is verified once per run.
func (c Corpus) Validate() error {
	for i := range c {
		if c[i].Title() == "" {
			return fmt.Errorf("%w: record %d title", ErrMissingField, i)
		}
		if c[i].Description() == "" {
			return fmt.Errorf("%w: record %d description", ErrMissingField, i)
		}
	}
	return nil
}

// EmbeddingDim returns the dimensionality of the corpus embeddings and
// whether every record carries an embedding of that dimensionality.
func (c Corpus) EmbeddingDim() (int, bool) {
	dim := 0
	for i := range c {
		v := c[i].Embedding()
		if len(v) == 0 {
			return 0, false
		}
		if dim == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return 0, false
		}
	}
	return dim, dim > 0
}
