package lexical

import "math"

// BM25 parameters. Library defaults, documented and deliberately not tuned
// per corpus: term-overlap is one signal among several, not the product.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// index is a per-call inverted index over a tokenized corpus. It is rebuilt
// on every query: corpora are small and real time, so a persisted index
// would buy nothing and cost staleness handling.
type index struct {
	termFreqs []map[string]int // per document
	docLens   []int
	docFreq   map[string]int
	avgLen    float64
}

// newIndex builds the inverted index over tokenized documents.
func newIndex(docs [][]string) *index {
	idx := &index{
		termFreqs: make([]map[string]int, len(docs)),
		docLens:   make([]int, len(docs)),
		docFreq:   make(map[string]int),
	}

	total := 0
	for i, doc := range docs {
		tf := make(map[string]int, len(doc))
		for _, tok := range doc {
			tf[tok]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = len(doc)
		total += len(doc)
		for tok := range tf {
			idx.docFreq[tok]++
		}
	}
	if len(docs) > 0 {
		idx.avgLen = float64(total) / float64(len(docs))
	}
	return idx
}

// score returns the BM25 relevance of the query against every document, in
// document order, Lucene variant:
//
//	idf(t) = ln(1 + (N - df + 0.5) / (df + 0.5))
//	score(q, d) = Σ idf(t) · tf / (tf + k1·(1 − b + b·|d|/avg))
//
// An empty query scores every document 0. Scores are non-negative.
func (idx *index) score(query []string) []float64 {
	n := len(idx.termFreqs)
	scores := make([]float64, n)
	if len(query) == 0 || n == 0 {
		return scores
	}

	for _, term := range query {
		df := idx.docFreq[term]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))

		for i := 0; i < n; i++ {
			tf := float64(idx.termFreqs[i][term])
			if tf == 0 {
				continue
			}
			norm := bm25K1 * (1 - bm25B + bm25B*float64(idx.docLens[i])/idx.avgLen)
			scores[i] += idf * tf / (tf + norm)
		}
	}
	return scores
}
