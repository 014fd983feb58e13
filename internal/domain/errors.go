package domain

import "errors"

var (
	// ErrInvalidQuery signals an empty query or invalid pagination parameters.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbeddingUnavailable signals that the embedding provider is unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrIndexUnavailable signals that the vector index is unreachable.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrRerankUnavailable signals a re-ranker failure. Absorbed by the
	// orchestrator; never reaches a caller.
	ErrRerankUnavailable = errors.New("rerank unavailable")
	// ErrExpansionUnavailable signals a query expander failure. Absorbed by
	// the orchestrator; never reaches a caller.
	ErrExpansionUnavailable = errors.New("expansion unavailable")
)
