// Package index adapts the Redis FT.SEARCH store into the vector index
// client consumed by the search orchestrator.
package index

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/prepgenie/pyqsearch/internal/db"
	"github.com/prepgenie/pyqsearch/internal/domain"
	"github.com/prepgenie/pyqsearch/internal/domain/search/candidate"
	"github.com/prepgenie/pyqsearch/internal/domain/search/filter"
)

// MinSimilarity is the floor below which a hit is considered noise and
// dropped before returning.
const MinSimilarity = 0.3

// DefaultIndexName is the FT index holding the question corpus.
const DefaultIndexName = "pyq:questions:idx"

var returnFields = []string{
	"question_id", "question_text", "subject", "year", "paper",
	"marks", "word_limit", "difficulty", "topics", "__embedding_score",
}

// store is the consumer interface for index queries (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the orchestrator's VectorIndex contract.
type Repo struct {
	store     store
	indexName string
	minScore  float64
}

// New creates a vector index adapter.
func New(s store) *Repo {
	return &Repo{store: s, indexName: DefaultIndexName, minScore: MinSimilarity}
}

// WithIndexName overrides the FT index name.
func (r *Repo) WithIndexName(name string) *Repo {
	if name != "" {
		r.indexName = name
	}
	return r
}

// Query runs a KNN search and returns up to topK candidates sorted by
// similarity descending. Hits below the minimum similarity threshold are
// filtered out; an empty corpus or an all-filtered result is an empty slice,
// not an error. Connectivity failures surface as domain.ErrIndexUnavailable.
func (r *Repo) Query(
	ctx context.Context, vector []float32, filters filter.Filter, topK int,
) ([]candidate.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:    r.indexName,
		Filters:      filters,
		Vector:       vector,
		K:            topK,
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: search knn %s: %w", domain.ErrIndexUnavailable, r.indexName, err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	candidates := make([]candidate.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		if entry.Score < r.minScore {
			continue
		}
		candidates = append(candidates, parseEntry(entry))
	}
	return candidates, nil
}

// parseEntry maps a flat hash entry onto a scored candidate.
func parseEntry(entry db.SearchEntry) candidate.Candidate {
	f := entry.Fields

	id := f["question_id"]
	if id == "" {
		id = entry.Key
	}

	meta := candidate.Metadata{
		Subject:    f["subject"],
		Year:       parseInt(f["year"]),
		Paper:      f["paper"],
		Marks:      parseInt(f["marks"]),
		WordLimit:  parseInt(f["word_limit"]),
		Difficulty: f["difficulty"],
		Topics:     parseTopics(f["topics"]),
	}

	return candidate.New(id, f["question_text"], meta, entry.Score)
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// parseTopics splits a comma-separated topics field.
func parseTopics(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	topics := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			topics = append(topics, p)
		}
	}
	return topics
}
