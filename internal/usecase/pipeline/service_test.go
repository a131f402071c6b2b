package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
	"github.com/intersect-search/intersect/internal/usecase/lexical"
	"github.com/intersect-search/intersect/internal/usecase/rerank"
	"github.com/intersect-search/intersect/internal/usecase/semantic"
)

// hashEmbedder produces a deterministic 4-dim vector from the text, so the
// pipeline runs fully offline.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	v := make([]float32, 4)
	for i, r := range text {
		v[i%4] += float32(r%13) / 13
	}
	return domain.EmbeddingResult{Embedding: v, TotalTokens: len(text)}, nil
}

type fakeReranker struct {
	err   error
	empty bool
}

func (fakeReranker) MaxDocuments() int { return 1000 }

func (f fakeReranker) Rerank(_ context.Context, query string, documents []string) ([]domain.RerankResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return []domain.RerankResult{}, nil
	}
	out := make([]domain.RerankResult, len(documents))
	for i, doc := range documents {
		score := 0.0
		for _, w := range strings.Fields(query) {
			if strings.Contains(doc, w) {
				score++
			}
		}
		out[i] = domain.RerankResult{Index: i, Relevance: score}
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

func newService(rr domain.Reranker) *Service {
	logger := zap.NewNop()
	var rrSvc *rerank.Service
	if rr != nil {
		rrSvc = rerank.New(rr, logger)
	}
	return New(hashEmbedder{}, lexical.New(logger), semantic.New(logger), rrSvc, logger)
}

func TestRun_AllSignalsAttached(t *testing.T) {
	svc := newService(fakeReranker{})
	q, _ := domain.NewQuery("python services and data pipelines")
	c := corpusFrom(t,
		"python backend engineer",
		"barista needed, no experience",
		"data engineer building pipelines",
	)

	res, err := svc.Run(context.Background(), q, c)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Corpus) != 3 {
		t.Fatalf("corpus size changed: %d", len(res.Corpus))
	}

	for _, stage := range []Stage{StageLexical, StageSemantic, StageRerank} {
		if !res.Report.Stages[stage].OK {
			t.Errorf("stage %s should have succeeded: %+v", stage, res.Report.Stages[stage])
		}
	}
	if res.Report.RunID == "" {
		t.Error("run must carry an ID")
	}
	if res.Report.RerankSubmitted != 3 {
		t.Errorf("rerank submitted = %d, want 3", res.Report.RerankSubmitted)
	}

	for i := range res.Corpus {
		r := &res.Corpus[i]
		for _, sig := range []domain.Signal{domain.SignalLexical, domain.SignalSemantic, domain.SignalReranker} {
			if _, ok := r.Score(sig); !ok {
				t.Errorf("record %s missing %s score", r.ID(), sig)
			}
			if _, ok := r.Rank(sig); !ok {
				t.Errorf("record %s missing %s rank", r.ID(), sig)
			}
		}
		if _, ok := r.Rank(domain.SignalBaseline); !ok {
			t.Errorf("record %s missing baseline rank", r.ID())
		}
		if _, ok := r.Delta(domain.SignalBaseline, domain.SignalSemantic); !ok {
			t.Errorf("record %s missing baseline-vs-semantic delta", r.ID())
		}
		if _, ok := r.Delta(domain.SignalSemantic, domain.SignalReranker); !ok {
			t.Errorf("record %s missing semantic-vs-reranker delta", r.ID())
		}
		// corpus comes back in semantic order
		if rk, _ := r.Rank(domain.SignalSemantic); rk != i {
			t.Errorf("result not sorted by semantic rank at %d", i)
		}
	}
}

func TestRun_LexicalScenario(t *testing.T) {
	svc := newService(nil)
	q, _ := domain.NewQuery("I love writing python services")
	c := corpusFrom(t,
		"python backend engineer",
		"barista needed, no experience",
	)

	res, err := svc.Run(context.Background(), q, c)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	byDesc := map[string]*domain.Record{}
	for i := range res.Corpus {
		byDesc[res.Corpus[i].Description()] = &res.Corpus[i]
	}
	python := byDesc["python backend engineer"]
	barista := byDesc["barista needed, no experience"]

	sp, _ := python.Score(domain.SignalLexical)
	sb, _ := barista.Score(domain.SignalLexical)
	if sp <= sb {
		t.Errorf("python posting should outscore barista: %v vs %v", sp, sb)
	}
	if r, _ := python.Rank(domain.SignalLexical); r != 0 {
		t.Errorf("python posting lexical rank = %d, want 0", r)
	}
	if r, _ := barista.Rank(domain.SignalLexical); r != 1 {
		t.Errorf("barista lexical rank = %d, want 1", r)
	}
}

func TestRun_RerankFailureIsSkippedAndRecorded(t *testing.T) {
	boom := errors.New("bad credentials")
	svc := newService(fakeReranker{err: boom})
	q, _ := domain.NewQuery("python")
	c := corpusFrom(t, "python engineer", "gardener wanted")

	res, err := svc.Run(context.Background(), q, c)
	if err != nil {
		t.Fatalf("an optional stage failure must not fail the run: %v", err)
	}

	st := res.Report.Stages[StageRerank]
	if st.OK || st.Error == "" {
		t.Errorf("rerank failure must be recorded, got %+v", st)
	}
	for i := range res.Corpus {
		r := &res.Corpus[i]
		if _, ok := r.Score(domain.SignalReranker); ok {
			t.Error("failed rerank must leave no reranker scores")
		}
		// other signals remain intact and usable
		if _, ok := r.Score(domain.SignalLexical); !ok {
			t.Error("lexical column lost after rerank failure")
		}
		if _, ok := r.Score(domain.SignalSemantic); !ok {
			t.Error("semantic column lost after rerank failure")
		}
		if _, ok := r.Delta(domain.SignalBaseline, domain.SignalSemantic); !ok {
			t.Error("deltas lost after rerank failure")
		}
	}
}

func TestRun_RerankWithoutScoresIsSkippedAndRecorded(t *testing.T) {
	svc := newService(fakeReranker{empty: true})
	q, _ := domain.NewQuery("python")
	c := corpusFrom(t, "python engineer", "gardener wanted")

	res, err := svc.Run(context.Background(), q, c)
	if err != nil {
		t.Fatalf("a scoreless rerank response must not fail the run: %v", err)
	}

	st := res.Report.Stages[StageRerank]
	if st.OK || st.Error == "" {
		t.Errorf("scoreless rerank must be recorded as skipped, got %+v", st)
	}
	for i := range res.Corpus {
		r := &res.Corpus[i]
		if _, ok := r.Rank(domain.SignalReranker); ok {
			t.Error("scoreless rerank must leave no reranker ranks")
		}
		if _, ok := r.Score(domain.SignalLexical); !ok {
			t.Error("lexical column lost after scoreless rerank")
		}
		if _, ok := r.Score(domain.SignalSemantic); !ok {
			t.Error("semantic column lost after scoreless rerank")
		}
		if _, ok := r.Delta(domain.SignalLexical, domain.SignalSemantic); !ok {
			t.Error("deltas lost after scoreless rerank")
		}
	}
}

func TestRun_WithoutRerankerConfigured(t *testing.T) {
	svc := newService(nil)
	q, _ := domain.NewQuery("anything at all")
	c := corpusFrom(t, "first posting", "second posting")

	res, err := svc.Run(context.Background(), q, c)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ran := res.Report.Stages[StageRerank]; ran {
		t.Error("disabled rerank stage must not appear in the report")
	}
}

func TestRun_EmptyCorpus(t *testing.T) {
	svc := newService(fakeReranker{})
	q, _ := domain.NewQuery("query")

	res, err := svc.Run(context.Background(), q, domain.Corpus{})
	if err != nil {
		t.Fatalf("empty corpus must not error: %v", err)
	}
	if len(res.Corpus) != 0 {
		t.Fatalf("expected empty corpus, got %d", len(res.Corpus))
	}
	if !res.Report.Stages[StageLexical].OK || !res.Report.Stages[StageSemantic].OK {
		t.Error("scoring stages still succeed on an empty corpus")
	}
}

func TestRun_DescriptionImmutable(t *testing.T) {
	svc := newService(fakeReranker{})
	q, _ := domain.NewQuery("python")
	c := corpusFrom(t, "python engineer", "barista")

	res, err := svc.Run(context.Background(), q, c)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[string]bool{"python engineer": true, "barista": true}
	for i := range res.Corpus {
		if !want[res.Corpus[i].Description()] {
			t.Errorf("description mutated during the run: %q", res.Corpus[i].Description())
		}
	}
	// the input corpus itself is untouched
	if c[0].Description() != "python engineer" || c[1].Description() != "barista" {
		t.Error("input corpus mutated")
	}
	if _, ok := c[0].Score(domain.SignalLexical); ok {
		t.Error("input corpus gained columns; stages must work on copies")
	}
}
