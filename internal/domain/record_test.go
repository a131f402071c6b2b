package domain

import "testing"

func TestNewRecord_ContentID(t *testing.T) {
	a, err := NewRecord("", "Engineer", "python backend engineer", Meta{})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	b, err := NewRecord("", "Engineer (repost)", "python backend engineer", Meta{})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if a.ID() == "" {
		t.Fatal("expected derived ID")
	}
	if a.ID() != b.ID() {
		t.Errorf("identical descriptions should derive the same ID: %s vs %s", a.ID(), b.ID())
	}

	c, err := NewRecord("reed-123", "Engineer", "python backend engineer", Meta{})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if c.ID() != "reed-123" {
		t.Errorf("natural key should win, got %s", c.ID())
	}
}

func TestNewRecord_RequiredFields(t *testing.T) {
	if _, err := NewRecord("", "", "desc", Meta{}); err == nil {
		t.Error("expected error for empty title")
	}
	if _, err := NewRecord("", "title", "", Meta{}); err == nil {
		t.Error("expected error for empty description")
	}
}

func TestRecord_MissingScoreIsAbsent(t *testing.T) {
	r, _ := NewRecord("", "t", "d", Meta{})

	if _, ok := r.Score(SignalLexical); ok {
		t.Error("unscored record must report no lexical score")
	}
	if _, ok := r.Rank(SignalSemantic); ok {
		t.Error("unranked record must report no semantic rank")
	}
	if _, ok := r.Delta(SignalBaseline, SignalSemantic); ok {
		t.Error("record without deltas must report no delta")
	}

	r.SetScore(SignalLexical, 0)
	if v, ok := r.Score(SignalLexical); !ok || v != 0 {
		t.Error("an explicit zero score is a real score, not absence")
	}
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	r, _ := NewRecord("", "t", "d", Meta{})
	r.SetScore(SignalLexical, 1.5)
	r.SetRank(SignalLexical, 0)

	c := r.Clone()
	c.SetScore(SignalLexical, 9)
	c.SetRank(SignalSemantic, 3)

	if v, _ := r.Score(SignalLexical); v != 1.5 {
		t.Errorf("clone mutation leaked into original score: %v", v)
	}
	if _, ok := r.Rank(SignalSemantic); ok {
		t.Error("clone mutation leaked a new rank into the original")
	}
}

func TestCorpus_EmbeddingDim(t *testing.T) {
	mk := func(desc string, emb []float32) Record {
		r, _ := NewRecord("", "t", desc, Meta{})
		r.SetEmbedding(emb)
		return r
	}

	c := Corpus{mk("a", []float32{1, 0}), mk("b", []float32{0, 1})}
	if dim, ok := c.EmbeddingDim(); !ok || dim != 2 {
		t.Fatalf("want dim 2, got %d ok=%v", dim, ok)
	}

	c = append(c, mk("c", []float32{1, 2, 3}))
	if _, ok := c.EmbeddingDim(); ok {
		t.Error("mixed dimensionality must not report a dim")
	}

	var missing Corpus
	missing = append(missing, mk("d", nil))
	if _, ok := missing.EmbeddingDim(); ok {
		t.Error("missing embedding must not report a dim")
	}
}
