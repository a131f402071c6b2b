package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Signal identifies one relevance signal attached to a corpus during a run.
type Signal string

const (
	// SignalBaseline is the pre-scoring corpus order, captured as a rank
	// column before any scorer re-sorts the corpus. It carries no score.
	SignalBaseline Signal = "baseline"
	// SignalLexical is BM25 term-overlap relevance.
	SignalLexical Signal = "lexical"
	// SignalSemantic is embedding dot-product similarity.
	SignalSemantic Signal = "semantic"
	// SignalReranker is pairwise cross-encoder relevance.
	SignalReranker Signal = "reranker"
)

// DeltaKey names a rank displacement between two signals.
type DeltaKey struct {
	From Signal
	To   Signal
}

// Meta holds free-form posting metadata. None of it is ever scored.
type Meta struct {
	Employer string
	Location string
	Salary   string
	Posted   time.Time
	Source   string
	URL      string
}

// Record is one job posting flowing through the pipeline. Identity is fixed
// for the whole run; scorers attach scores and ranks but never change the
// title or description once scoring starts. Scores, ranks and deltas are
// present only when a stage produced them; absence is never coerced to zero.
type Record struct {
	id          string
	title       string
	description string
	meta        Meta
	embedding   []float32
	scores      map[Signal]float64
	ranks       map[Signal]int
	deltas      map[DeltaKey]int
}

// NewRecord validates and creates a Record. When id is empty the identity is
// derived from a hash of the description, the only field that is scored.
func NewRecord(id, title, description string, meta Meta) (Record, error) {
	if title == "" {
		return Record{}, fmt.Errorf("%w: title", ErrMissingField)
	}
	if description == "" {
		return Record{}, fmt.Errorf("%w: description", ErrMissingField)
	}
	if id == "" {
		id = contentID(description)
	}
	return Record{id: id, title: title, description: description, meta: meta}, nil
}

// contentID derives a stable identity from the record content when the
// source supplies no natural key.
func contentID(description string) string {
	h := sha256.Sum256([]byte(description))
	return hex.EncodeToString(h[:8])
}

// ID returns the record identity.
func (r *Record) ID() string { return r.id }

// Title returns the posting title.
func (r *Record) Title() string { return r.title }

// Description returns the posting text, the only field scorers read.
func (r *Record) Description() string { return r.description }

// Meta returns the free-form posting metadata.
func (r *Record) Meta() Meta { return r.meta }

// Embedding returns the record's embedding vector, nil when not yet embedded.
func (r *Record) Embedding() []float32 { return r.embedding }

// SetEmbedding attaches an embedding vector.
func (r *Record) SetEmbedding(v []float32) { r.embedding = v }

// Score returns the record's score for a signal, reporting whether that
// signal scored this record.
func (r *Record) Score(sig Signal) (float64, bool) {
	v, ok := r.scores[sig]
	return v, ok
}

// SetScore attaches a score for a signal.
func (r *Record) SetScore(sig Signal, v float64) {
	if r.scores == nil {
		r.scores = make(map[Signal]float64, 3)
	}
	r.scores[sig] = v
}

// Rank returns the record's dense 0-based rank for a signal, reporting
// whether that rank exists.
func (r *Record) Rank(sig Signal) (int, bool) {
	v, ok := r.ranks[sig]
	return v, ok
}

// SetRank attaches a rank for a signal.
func (r *Record) SetRank(sig Signal, v int) {
	if r.ranks == nil {
		r.ranks = make(map[Signal]int, 4)
	}
	r.ranks[sig] = v
}

// Delta returns the signed displacement between two rank columns. Positive
// means the record moved toward rank 0 under the "to" signal.
func (r *Record) Delta(from, to Signal) (int, bool) {
	v, ok := r.deltas[DeltaKey{From: from, To: to}]
	return v, ok
}

// SetDelta attaches a rank displacement.
func (r *Record) SetDelta(from, to Signal, v int) {
	if r.deltas == nil {
		r.deltas = make(map[DeltaKey]int, 3)
	}
	r.deltas[DeltaKey{From: from, To: to}] = v
}

// Clone returns a deep copy. Stages clone before attaching columns so a
// failed stage never leaves a half-written corpus behind.
func (r *Record) Clone() Record {
	c := Record{
		id:          r.id,
		title:       r.title,
		description: r.description,
		meta:        r.meta,
		embedding:   r.embedding,
	}
	if r.scores != nil {
		c.scores = make(map[Signal]float64, len(r.scores))
		for k, v := range r.scores {
			c.scores[k] = v
		}
	}
	if r.ranks != nil {
		c.ranks = make(map[Signal]int, len(r.ranks))
		for k, v := range r.ranks {
			c.ranks[k] = v
		}
	}
	if r.deltas != nil {
		c.deltas = make(map[DeltaKey]int, len(r.deltas))
		for k, v := range r.deltas {
			c.deltas[k] = v
		}
	}
	return c
}
