// Package chi exposes the fusion pipeline over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
	"github.com/intersect-search/intersect/internal/logger"
	"github.com/intersect-search/intersect/internal/metrics"
	"github.com/intersect-search/intersect/internal/usecase/cluster"
	"github.com/intersect-search/intersect/internal/usecase/permute"
	"github.com/intersect-search/intersect/internal/usecase/pipeline"
	"github.com/intersect-search/intersect/internal/version"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search, permute and viz endpoints over one preloaded corpus.
type Server struct {
	corpus        domain.Corpus
	pipeline      *pipeline.Service
	viz           *cluster.Service
	vizDefaults   cluster.Options
	permute       *permute.Service
	embedder      domain.Embedder
	apiKeys       []string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// ServerConfig holds the server's collaborators. Permute is optional.
type ServerConfig struct {
	Corpus      domain.Corpus
	Pipeline    *pipeline.Service
	Viz         *cluster.Service
	VizDefaults cluster.Options
	Permute     *permute.Service
	Embedder    domain.Embedder
	APIKeys     []string
	Logger      *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		corpus:      cfg.Corpus,
		pipeline:    cfg.Pipeline,
		viz:         cfg.Viz,
		vizDefaults: cfg.VizDefaults,
		permute:     cfg.Permute,
		embedder:    cfg.Embedder,
		apiKeys:     cfg.APIKeys,
		logger:      cfg.Logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrMissingField, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, "vector_dim_mismatch"),
		sentinelHandler(domain.ErrMissingEmbedding, http.StatusBadRequest, "missing_embedding"),
		sentinelHandler(domain.ErrClusterConfig, http.StatusBadRequest, "invalid_cluster_config"),
		sentinelHandler(domain.ErrDegenerateEmbedding, http.StatusUnprocessableEntity, "degenerate_embedding"),
		sentinelHandler(domain.ErrEmbeddingInputTooLong, http.StatusRequestEntityTooLarge, "input_too_long"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrRerankProviderError, http.StatusBadGateway, "rerank_provider_error"),
	}
	return s
}

// Router assembles the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/v1/search", s.Search)
	r.Post("/v1/viz", s.Viz)
	r.Post("/v1/permute", s.Permute)

	return r
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResult struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Employer string         `json:"employer,omitempty"`
	Location string         `json:"location,omitempty"`
	URL      string         `json:"url,omitempty"`
	Posted   string         `json:"posted,omitempty"`
	DaysAgo  *int           `json:"days_ago,omitempty"`
	Scores   map[string]any `json:"scores"`
	Ranks    map[string]any `json:"ranks"`
	Deltas   map[string]any `json:"deltas"`
}

type searchResponse struct {
	RunID           string                                  `json:"run_id"`
	Results         []searchResult                          `json:"results"`
	Stages          map[pipeline.Stage]pipeline.StageStatus `json:"stages"`
	RerankSubmitted int                                     `json:"rerank_submitted,omitempty"`
}

// Search handles POST /v1/search: runs the full fusion pipeline for a query.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}

	q, err := domain.NewQuery(req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	result, err := s.pipeline.Run(r.Context(), q, s.corpus)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFrom(result))
}

func searchResponseFrom(result pipeline.Result) searchResponse {
	resp := searchResponse{
		RunID:           result.Report.RunID,
		Results:         make([]searchResult, len(result.Corpus)),
		Stages:          result.Report.Stages,
		RerankSubmitted: result.Report.RerankSubmitted,
	}

	signals := []domain.Signal{
		domain.SignalBaseline, domain.SignalLexical, domain.SignalSemantic, domain.SignalReranker,
	}
	pairs := []domain.DeltaKey{
		{From: domain.SignalBaseline, To: domain.SignalLexical},
		{From: domain.SignalBaseline, To: domain.SignalSemantic},
		{From: domain.SignalLexical, To: domain.SignalSemantic},
		{From: domain.SignalBaseline, To: domain.SignalReranker},
		{From: domain.SignalSemantic, To: domain.SignalReranker},
	}

	for i, rec := range result.Corpus {
		sr := searchResult{
			ID:       rec.ID(),
			Title:    rec.Title(),
			Employer: rec.Meta().Employer,
			Location: rec.Meta().Location,
			URL:      rec.Meta().URL,
			Scores:   make(map[string]any),
			Ranks:    make(map[string]any),
			Deltas:   make(map[string]any),
		}
		if posted := rec.Meta().Posted; !posted.IsZero() {
			sr.Posted = posted.Format("2006-01-02")
			sr.DaysAgo = daysAgo(posted)
		}
		for _, sig := range signals {
			if score, ok := rec.Score(sig); ok {
				sr.Scores[string(sig)] = score
			}
			if rank, ok := rec.Rank(sig); ok {
				sr.Ranks[string(sig)] = rank
			}
		}
		for _, key := range pairs {
			if delta, ok := rec.Delta(key.From, key.To); ok {
				sr.Deltas[string(key.From)+"-"+string(key.To)] = delta
			}
		}
		resp.Results[i] = sr
	}
	return resp
}

// daysAgo is display metadata only, never an input to any scorer.
func daysAgo(posted time.Time) *int {
	d := int(time.Since(posted).Hours() / 24)
	if d < 0 {
		d = 0
	}
	return &d
}

type vizRequest struct {
	Query          string `json:"query"`
	Projection     string `json:"projection,omitempty"`
	Method         string `json:"method,omitempty"`
	Clusters       int    `json:"clusters,omitempty"`
	MinClusterSize int    `json:"min_cluster_size,omitempty"`
}

type vizResponse struct {
	Points   []cluster.Point `json:"points"`
	Clusters int             `json:"clusters"`
}

// Viz handles POST /v1/viz: projects the corpus plus the query into 2-D
// and clusters the result.
func (s *Server) Viz(w http.ResponseWriter, r *http.Request) {
	var req vizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}

	opts := s.vizDefaults
	if req.Projection != "" {
		opts.Projection = cluster.Projection(req.Projection)
	}
	if req.Method != "" {
		opts.Method = cluster.Method(req.Method)
	}
	if req.Clusters > 0 {
		opts.Clusters = req.Clusters
	}
	if req.MinClusterSize > 0 {
		opts.MinClusterSize = req.MinClusterSize
	}

	q, err := domain.NewQuery(req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	q, err = domain.EmbedQuery(r.Context(), s.embedder, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	embedded, err := domain.EmbedCorpus(r.Context(), s.embedder, s.corpus)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	result, err := s.viz.ProjectAndCluster(embedded, q, opts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, vizResponse{Points: result.Points, Clusters: result.Clusters})
}

type permuteRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k,omitempty"`
}

type permuteResponse struct {
	Results []permute.Entry `json:"results"`
}

// Permute handles POST /v1/permute: listwise LLM reordering of the
// submitted documents. Returns 501 when no permute model is configured.
func (s *Server) Permute(w http.ResponseWriter, r *http.Request) {
	if s.permute == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "permute model is not configured")
		return
	}

	var req permuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "documents are required")
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = len(req.Documents)
	}

	entries, err := s.permute.Permute(r.Context(), req.Query, req.Documents, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, permuteResponse{Results: entries})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"corpus":  len(s.corpus),
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrMissingField,
		domain.ErrVectorDimMismatch,
		domain.ErrMissingEmbedding,
		domain.ErrClusterConfig,
		domain.ErrDegenerateEmbedding,
		domain.ErrEmbeddingInputTooLong,
		domain.ErrEmbeddingProviderError,
		domain.ErrRerankProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// requestLogger stashes a request-scoped logger so every log line carries
// the chi request ID.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := s.logger.With(zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
		next.ServeHTTP(w, r.WithContext(logger.ContextWithLogger(r.Context(), l)))
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	l := logger.FromContext(r.Context())
	l.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	l.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
