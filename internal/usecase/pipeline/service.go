// Package pipeline runs the multi-signal ranking fusion over one corpus and
// one query: baseline snapshot, lexical, semantic, optional rerank, then
// cross-signal displacement.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
	"github.com/intersect-search/intersect/internal/usecase/lexical"
	"github.com/intersect-search/intersect/internal/usecase/rank"
	"github.com/intersect-search/intersect/internal/usecase/rerank"
	"github.com/intersect-search/intersect/internal/usecase/semantic"
)

// Stage names one pipeline stage in the run report.
type Stage string

const (
	StageLexical  Stage = "lexical"
	StageSemantic Stage = "semantic"
	StageRerank   Stage = "rerank"
)

// Report records which stages ran and how, so partial results are explicit
// rather than inferred from missing columns.
type Report struct {
	RunID  string
	Stages map[Stage]StageStatus
	// RerankSubmitted is how many documents went to the rerank provider;
	// less than the corpus size means the provider cap truncated the tail.
	RerankSubmitted int
}

// StageStatus is the outcome of one stage.
type StageStatus struct {
	OK    bool
	Error string
}

// Result is one completed pipeline run. The corpus comes back sorted by the
// semantic rank, the ordering the caller surfaces first.
type Result struct {
	Corpus domain.Corpus
	Report Report
}

// Service orchestrates the scoring stages. The rerank stage is optional:
// pass a nil service to disable it. Provider clients are owned by the
// composition root, never constructed here.
type Service struct {
	embedder domain.Embedder
	lexical  *lexical.Service
	semantic *semantic.Service
	reranker *rerank.Service
	logger   *zap.Logger
}

// New creates the fusion pipeline.
func New(
	embedder domain.Embedder,
	lex *lexical.Service,
	sem *semantic.Service,
	rr *rerank.Service,
	logger *zap.Logger,
) *Service {
	return &Service{embedder: embedder, lexical: lex, semantic: sem, reranker: rr, logger: logger}
}

// Run executes one synchronous, stage-ordered pass. Each stage fully
// consumes and produces its corpus before the next begins.
//
// Precondition violations (missing fields, dimension mismatches) and
// embedding failures are fatal for the whole run. A failing rerank stage is
// skipped and recorded: lexical and semantic columns already attached stay
// valid, and the report shows which signals succeeded.
func (s *Service) Run(ctx context.Context, q domain.Query, c domain.Corpus) (Result, error) {
	report := Report{
		RunID:  uuid.NewString(),
		Stages: make(map[Stage]StageStatus, 3),
	}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	if err := c.Validate(); err != nil {
		return Result{}, fmt.Errorf("corpus: %w", err)
	}

	// fill missing vectors before any stage needs them
	q, err := domain.EmbedQuery(ctx, s.embedder, q)
	if err != nil {
		return Result{}, err
	}
	cur, err := domain.EmbedCorpus(ctx, s.embedder, c)
	if err != nil {
		return Result{}, err
	}

	// the load order is the relevance-zero baseline; snapshot it before any
	// signal re-sorts the corpus
	cur = rank.Baseline(cur)

	cur, err = s.lexical.Score(q.Text(), cur)
	if err != nil {
		return Result{}, fmt.Errorf("lexical stage: %w", err)
	}
	report.Stages[StageLexical] = StageStatus{OK: true}

	if len(cur) > 0 {
		if cur, err = rank.Add(cur, domain.SignalLexical); err != nil {
			return Result{}, fmt.Errorf("lexical rank: %w", err)
		}
	}

	if s.reranker != nil {
		res, err := s.reranker.Rerank(ctx, q.Text(), cur)
		if err != nil {
			// optional stage: skip, keep what other stages computed
			logger.Error("rerank stage failed, continuing without reranker signal", zap.Error(err))
			report.Stages[StageRerank] = StageStatus{Error: err.Error()}
		} else if !anyScored(res.Corpus, domain.SignalReranker) {
			// a provider may legally score a strict subset; an empty one
			// leaves no column to rank, so treat it like a stage failure
			logger.Warn("rerank returned no scores, continuing without reranker signal")
			report.Stages[StageRerank] = StageStatus{Error: "provider returned no scores"}
			report.RerankSubmitted = res.Submitted
		} else {
			report.Stages[StageRerank] = StageStatus{OK: true}
			report.RerankSubmitted = res.Submitted
			cur = res.Corpus
			if cur, err = rank.Add(cur, domain.SignalReranker); err != nil {
				return Result{}, fmt.Errorf("reranker rank: %w", err)
			}
		}
	}

	// semantic last: the returned corpus ends up in best-fit order
	cur, err = s.semantic.Score(q, cur)
	if err != nil {
		return Result{}, fmt.Errorf("semantic stage: %w", err)
	}
	report.Stages[StageSemantic] = StageStatus{OK: true}

	if len(cur) > 0 {
		if cur, err = s.deltas(cur, report); err != nil {
			return Result{}, err
		}
	}

	logger.Info("pipeline run complete",
		zap.Int("corpus_size", len(cur)),
		zap.Bool("reranked", report.Stages[StageRerank].OK),
	)
	return Result{Corpus: cur, Report: report}, nil
}

// anyScored reports whether at least one record carries a score for sig.
func anyScored(c domain.Corpus, sig domain.Signal) bool {
	for _, rec := range c {
		if _, ok := rec.Score(sig); ok {
			return true
		}
	}
	return false
}

// deltas computes displacement of every successful signal against the
// baseline order, plus the headline lexical-vs-semantic displacement.
func (s *Service) deltas(c domain.Corpus, report Report) (domain.Corpus, error) {
	pairs := [][2]domain.Signal{
		{domain.SignalBaseline, domain.SignalLexical},
		{domain.SignalBaseline, domain.SignalSemantic},
		{domain.SignalLexical, domain.SignalSemantic},
	}
	if report.Stages[StageRerank].OK {
		pairs = append(pairs,
			[2]domain.Signal{domain.SignalBaseline, domain.SignalReranker},
			[2]domain.Signal{domain.SignalSemantic, domain.SignalReranker},
		)
	}

	var err error
	for _, p := range pairs {
		if c, err = rank.Delta(c, p[0], p[1]); err != nil {
			return nil, fmt.Errorf("delta %s vs %s: %w", p[0], p[1], err)
		}
	}
	return c, nil
}
