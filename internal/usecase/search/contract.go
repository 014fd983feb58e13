package search

import (
	"context"

	"github.com/prepgenie/pyqsearch/internal/domain/search/candidate"
	"github.com/prepgenie/pyqsearch/internal/domain/search/filter"
)

// Expander rewrites a raw query to improve embedding recall.
// Expansion failures are soft: the orchestrator falls back to the raw query.
type Expander interface {
	Expand(ctx context.Context, rawQuery string) (string, error)
}

// VectorIndex retrieves the topK nearest stored questions for a vector,
// sorted by similarity descending, below-threshold hits already removed.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, filters filter.Filter, topK int) ([]candidate.Candidate, error)
}

// Reranker reorders a bounded candidate prefix by LLM-judged relevance.
// Rerank failures are soft: the orchestrator keeps similarity ordering.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []candidate.Candidate) ([]candidate.Candidate, error)
}

// ResultCache stores full ranked result sets keyed by query fingerprint.
type ResultCache interface {
	Get(fingerprint string) ([]candidate.Candidate, bool)
	Put(fingerprint string, results []candidate.Candidate)
}
