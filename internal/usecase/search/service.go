// Package search orchestrates the retrieval pipeline: cache lookup, query
// expansion, embedding, vector retrieval, best-effort re-ranking, cache
// population, and pagination.
package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/prepgenie/pyqsearch/internal/cache"
	"github.com/prepgenie/pyqsearch/internal/domain"
	"github.com/prepgenie/pyqsearch/internal/domain/search/candidate"
	"github.com/prepgenie/pyqsearch/internal/domain/search/page"
	"github.com/prepgenie/pyqsearch/internal/domain/search/request"
	"github.com/prepgenie/pyqsearch/internal/logger"
	"github.com/prepgenie/pyqsearch/internal/metrics"
)

// Retrieval depth defaults. TopK deliberately exceeds the largest page a
// caller can request so that one cache population serves every page of the
// same logical query.
const (
	DefaultTopK        = 50
	DefaultRerankDepth = 20
)

// Page is one pagination window of a ranked result set.
type Page struct {
	Items   []candidate.Candidate
	HasMore bool
}

// Service coordinates the search pipeline. Soft stages (expansion, rerank)
// degrade in place; hard stages (embedding, index) fail the request. No
// retries happen at this layer.
type Service struct {
	cache       ResultCache
	expander    Expander
	embed       domain.Embedder
	index       VectorIndex
	reranker    Reranker
	topK        int
	rerankDepth int
	group       singleflight.Group
}

// New creates a search orchestrator. reranker may be nil to disable the
// re-ranking stage entirely.
func New(
	rc ResultCache,
	expander Expander,
	embed domain.Embedder,
	index VectorIndex,
	reranker Reranker,
) *Service {
	return &Service{
		cache:       rc,
		expander:    expander,
		embed:       embed,
		index:       index,
		reranker:    reranker,
		topK:        DefaultTopK,
		rerankDepth: DefaultRerankDepth,
	}
}

// WithDepths overrides retrieval and rerank depths.
func (s *Service) WithDepths(topK, rerankDepth int) *Service {
	if topK > 0 {
		s.topK = topK
	}
	if rerankDepth > 0 {
		s.rerankDepth = rerankDepth
	}
	return s
}

// Search answers one validated request: consult the cache by fingerprint,
// run the full pipeline on a miss, and slice out the requested page.
// Concurrent misses on the same fingerprint share a single pipeline
// execution.
func (s *Service) Search(ctx context.Context, req *request.Request) (Page, error) {
	fp := cache.Fingerprint(req.Query(), req.Filters())

	if results, ok := s.cache.Get(fp); ok {
		metrics.ResultCacheTotal.WithLabelValues("hit").Inc()
		metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
		items, hasMore := page.Slice(results, req.Page(), req.Limit(), s.topK)
		return Page{Items: items, HasMore: hasMore}, nil
	}
	metrics.ResultCacheTotal.WithLabelValues("miss").Inc()

	v, err, _ := s.group.Do(fp, func() (any, error) {
		results, err := s.executePipeline(ctx, req)
		if err != nil {
			return nil, err
		}
		s.cache.Put(fp, results)
		return results, nil
	})
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return Page{}, err
	}

	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	results := v.([]candidate.Candidate)
	items, hasMore := page.Slice(results, req.Page(), req.Limit(), s.topK)
	return Page{Items: items, HasMore: hasMore}, nil
}

// executePipeline runs expansion, embedding, retrieval, and re-ranking, and
// assembles the full ranked candidate list for caching.
func (s *Service) executePipeline(ctx context.Context, req *request.Request) ([]candidate.Candidate, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	embedText := s.expandQuery(ctx, req.Query(), log)

	embStart := time.Now()
	emb, err := s.embed.Embed(ctx, embedText)
	if err != nil {
		return nil, err
	}
	metrics.SearchPipelineDuration.WithLabelValues("embed").Observe(time.Since(embStart).Seconds())

	idxStart := time.Now()
	candidates, err := s.index.Query(ctx, emb.Embedding, req.Filters(), s.topK)
	if err != nil {
		return nil, err
	}
	metrics.SearchPipelineDuration.WithLabelValues("index").Observe(time.Since(idxStart).Seconds())

	if len(candidates) == 0 {
		metrics.SearchPipelineDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
		return nil, nil
	}

	candidates = s.rerankPrefix(ctx, req.Query(), candidates, log)
	candidate.SortByEffectiveScore(candidates)

	metrics.SearchPipelineDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	return candidates, nil
}

// expandQuery runs the soft expansion stage. On failure the raw query is
// embedded unmodified; expansion is a recall enhancement, never a hard
// dependency.
func (s *Service) expandQuery(ctx context.Context, rawQuery string, log *zap.Logger) string {
	expStart := time.Now()
	expanded, err := s.expander.Expand(ctx, rawQuery)
	metrics.SearchPipelineDuration.WithLabelValues("expand").Observe(time.Since(expStart).Seconds())
	if err != nil {
		metrics.SearchDegradedTotal.WithLabelValues("expansion").Inc()
		log.Warn("query expansion degraded", zap.Error(err))
		return rawQuery
	}
	return expanded
}

// rerankPrefix runs the soft re-ranking stage over a bounded prefix. On
// failure the similarity-only ordering stands.
func (s *Service) rerankPrefix(
	ctx context.Context, query string, candidates []candidate.Candidate, log *zap.Logger,
) []candidate.Candidate {
	if s.reranker == nil {
		return candidates
	}

	depth := s.rerankDepth
	if depth > len(candidates) {
		depth = len(candidates)
	}

	rrStart := time.Now()
	head, err := s.reranker.Rerank(ctx, query, candidates[:depth])
	metrics.SearchPipelineDuration.WithLabelValues("rerank").Observe(time.Since(rrStart).Seconds())
	if err != nil {
		metrics.SearchDegradedTotal.WithLabelValues("rerank").Inc()
		log.Warn("rerank degraded, keeping similarity order", zap.Error(err))
		return candidates
	}

	merged := make([]candidate.Candidate, 0, len(candidates))
	merged = append(merged, head...)
	merged = append(merged, candidates[depth:]...)
	return merged
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, domain.ErrIndexUnavailable):
		return "index_unavailable"
	default:
		return "error"
	}
}
