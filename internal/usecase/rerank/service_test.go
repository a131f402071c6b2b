package rerank

import (
	"context"
	"errors"
	"sort"
	"testing"

	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
)

// fakeReranker scores each submitted document by its word count, so
// identical texts always get identical scores. It returns results sorted by
// relevance like the real provider, optionally only the top n.
type fakeReranker struct {
	max  int
	topN int
	err  error
}

func (f *fakeReranker) MaxDocuments() int { return f.max }

func (f *fakeReranker) Rerank(_ context.Context, _ string, documents []string) ([]domain.RerankResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.RerankResult, 0, len(documents))
	for i, doc := range documents {
		out = append(out, domain.RerankResult{Index: i, Relevance: float64(len(doc))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if f.topN > 0 && len(out) > f.topN {
		out = out[:f.topN]
	}
	return out, nil
}

func corpusFrom(t *testing.T, descriptions ...string) domain.Corpus {
	t.Helper()
	c := make(domain.Corpus, 0, len(descriptions))
	for _, d := range descriptions {
		r, err := domain.NewRecord("", "title", d, domain.Meta{})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		c = append(c, r)
	}
	return c
}

func TestRerank_MergesByPosition(t *testing.T) {
	svc := New(&fakeReranker{max: 100}, zap.NewNop())
	c := corpusFrom(t, "short", "a much longer description here", "mid one")

	res, err := svc.Rerank(context.Background(), "query", c)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if res.Submitted != 3 {
		t.Fatalf("submitted = %d, want 3", res.Submitted)
	}

	for i := range res.Corpus {
		s, ok := res.Corpus[i].Score(domain.SignalReranker)
		if !ok {
			t.Fatalf("record %d missing reranker score", i)
		}
		if want := float64(len(c[i].Description())); s != want {
			t.Errorf("record %d: score %v, want %v (merge must follow position)", i, s, want)
		}
		if res.Corpus[i].ID() != c[i].ID() {
			t.Errorf("rerank must not reorder the corpus")
		}
	}
}

func TestRerank_CapLeavesTailUnscored(t *testing.T) {
	svc := New(&fakeReranker{max: 2}, zap.NewNop())
	c := corpusFrom(t, "first doc", "second doc", "third doc", "fourth doc")

	res, err := svc.Rerank(context.Background(), "query", c)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if res.Submitted != 2 {
		t.Fatalf("submitted = %d, want 2", res.Submitted)
	}

	for i := 0; i < 2; i++ {
		if _, ok := res.Corpus[i].Score(domain.SignalReranker); !ok {
			t.Errorf("record %d inside the cap must be scored", i)
		}
	}
	for i := 2; i < 4; i++ {
		if s, ok := res.Corpus[i].Score(domain.SignalReranker); ok {
			t.Errorf("record %d past the cap must keep a missing score, got %v", i, s)
		}
	}
}

func TestRerank_TopNSubsetLeftJoin(t *testing.T) {
	svc := New(&fakeReranker{max: 100, topN: 1}, zap.NewNop())
	c := corpusFrom(t, "tiny", "the one long winning description")

	res, err := svc.Rerank(context.Background(), "query", c)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if _, ok := res.Corpus[1].Score(domain.SignalReranker); !ok {
		t.Error("top result must carry a score")
	}
	if _, ok := res.Corpus[0].Score(domain.SignalReranker); ok {
		t.Error("document outside the returned subset must keep a missing score")
	}
}

func TestRerank_DuplicateDescriptionsGetEqualScores(t *testing.T) {
	svc := New(&fakeReranker{max: 100}, zap.NewNop())
	c := corpusFrom(t, "same description text", "other text", "same description text")

	res, err := svc.Rerank(context.Background(), "query", c)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	s0, _ := res.Corpus[0].Score(domain.SignalReranker)
	s2, _ := res.Corpus[2].Score(domain.SignalReranker)
	if s0 != s2 {
		t.Errorf("duplicate descriptions scored differently: %v vs %v", s0, s2)
	}
}

func TestRerank_ProviderFailureIsFatal(t *testing.T) {
	boom := errors.New("401 unauthorized")
	svc := New(&fakeReranker{max: 100, err: boom}, zap.NewNop())
	c := corpusFrom(t, "doc")
	c[0].SetScore(domain.SignalLexical, 3.5)

	_, err := svc.Rerank(context.Background(), "query", c)
	if !errors.Is(err, boom) {
		t.Fatalf("provider error must surface, got %v", err)
	}

	// the input corpus and its earlier columns stay valid
	if s, ok := c[0].Score(domain.SignalLexical); !ok || s != 3.5 {
		t.Error("a failed rerank must not touch already-computed columns")
	}
	if _, ok := c[0].Score(domain.SignalReranker); ok {
		t.Error("a failed rerank must not attach partial scores")
	}
}

type badIndexReranker struct{}

func (badIndexReranker) MaxDocuments() int { return 100 }
func (badIndexReranker) Rerank(context.Context, string, []string) ([]domain.RerankResult, error) {
	return []domain.RerankResult{{Index: 7, Relevance: 0.9}}, nil
}

func TestRerank_OutOfRangeIndexIsMalformedPayload(t *testing.T) {
	svc := New(badIndexReranker{}, zap.NewNop())
	c := corpusFrom(t, "only doc")

	_, err := svc.Rerank(context.Background(), "query", c)
	if !errors.Is(err, domain.ErrRerankProviderError) {
		t.Fatalf("want ErrRerankProviderError, got %v", err)
	}
}

func TestRerank_EmptyCorpus(t *testing.T) {
	svc := New(&fakeReranker{max: 100}, zap.NewNop())
	res, err := svc.Rerank(context.Background(), "query", domain.Corpus{})
	if err != nil {
		t.Fatalf("empty corpus must not error: %v", err)
	}
	if len(res.Corpus) != 0 || res.Submitted != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}
