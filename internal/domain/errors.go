package domain

import "errors"

var (
	// ErrMissingField signals a record or query violating the ingestion contract.
	ErrMissingField = errors.New("missing required field")
	// ErrVectorDimMismatch signals an embedding dimension mismatch between
	// the query and the corpus.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrMissingEmbedding signals a record without an embedding where one is required.
	ErrMissingEmbedding = errors.New("missing embedding")
	// ErrMissingScore signals a rank request for a signal that scored nothing.
	ErrMissingScore = errors.New("no record carries a score for signal")
	// ErrMissingRank signals a delta request over an absent rank column.
	ErrMissingRank = errors.New("no record carries a rank for signal")
	// ErrDegenerateEmbedding signals NaN or Inf embedding components.
	ErrDegenerateEmbedding = errors.New("degenerate embedding")
	// ErrClusterConfig signals a cluster configuration the corpus cannot satisfy.
	ErrClusterConfig = errors.New("invalid cluster configuration")
	// ErrMissingCredentials signals absent provider credentials.
	ErrMissingCredentials = errors.New("missing provider credentials")
	// ErrEmbeddingInputTooLong signals input over the provider token budget,
	// rejected before the provider is called.
	ErrEmbeddingInputTooLong = errors.New("embedding input exceeds token budget")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRerankProviderError signals a rerank provider failure.
	ErrRerankProviderError = errors.New("rerank provider error")
)
