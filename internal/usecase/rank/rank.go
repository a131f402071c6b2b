// Package rank turns score columns into dense rank columns and computes
// displacement between rank columns. It is the single primitive every signal
// goes through, so tie-break and indexing semantics are identical everywhere.
package rank

import (
	"fmt"
	"sort"

	"github.com/intersect-search/intersect/internal/domain"
)

// Baseline snapshots the current corpus order as the baseline rank column.
// It must run before any signal re-sorts the corpus.
func Baseline(c domain.Corpus) domain.Corpus {
	out := c.Clone()
	for i := range out {
		out[i].SetRank(domain.SignalBaseline, i)
	}
	return out
}

// Add sorts the corpus descending by the signal's score (stable, ties keep
// prior relative order) and writes each record's new position as its dense
// 0-based rank for that signal. Records the signal never scored sort after
// all scored records, keep their relative order, and get no rank.
//
// An empty corpus passes through unchanged. A non-empty corpus where the
// signal scored nothing is a caller bug and returns an error.
func Add(c domain.Corpus, sig domain.Signal) (domain.Corpus, error) {
	if len(c) == 0 {
		return c.Clone(), nil
	}

	scored := 0
	for i := range c {
		if _, ok := c[i].Score(sig); ok {
			scored++
		}
	}
	if scored == 0 {
		return nil, fmt.Errorf("%w %q", domain.ErrMissingScore, sig)
	}

	out := c.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		si, iok := out[i].Score(sig)
		sj, jok := out[j].Score(sig)
		if iok != jok {
			return iok
		}
		if !iok {
			return false
		}
		return si > sj
	})

	for i := 0; i < scored; i++ {
		out[i].SetRank(sig, i)
	}
	return out, nil
}

// Delta writes rankA − rankB for every record carrying both ranks. Positive
// means the record moved up, toward rank 0, under signal b relative to
// signal a. Records missing either rank get no delta. The corpus order is
// untouched; delta is pure arithmetic over already-assigned ranks.
func Delta(c domain.Corpus, a, b domain.Signal) (domain.Corpus, error) {
	hasA, hasB := false, false
	for i := range c {
		if _, ok := c[i].Rank(a); ok {
			hasA = true
		}
		if _, ok := c[i].Rank(b); ok {
			hasB = true
		}
	}
	if len(c) > 0 && !hasA {
		return nil, fmt.Errorf("%w %q", domain.ErrMissingRank, a)
	}
	if len(c) > 0 && !hasB {
		return nil, fmt.Errorf("%w %q", domain.ErrMissingRank, b)
	}

	out := c.Clone()
	for i := range out {
		ra, aok := out[i].Rank(a)
		rb, bok := out[i].Rank(b)
		if !aok || !bok {
			continue
		}
		out[i].SetDelta(a, b, ra-rb)
	}
	return out, nil
}
