package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prepgenie/pyqsearch/internal/domain"
	"github.com/prepgenie/pyqsearch/internal/domain/search/candidate"
	"github.com/prepgenie/pyqsearch/internal/domain/search/filter"
	"github.com/prepgenie/pyqsearch/internal/domain/search/request"
)

// --- Mocks ---

type mockCache struct {
	entries map[string][]candidate.Candidate
	gets    int
	puts    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]candidate.Candidate)}
}

func (m *mockCache) Get(fp string) ([]candidate.Candidate, bool) {
	m.gets++
	r, ok := m.entries[fp]
	return r, ok
}

func (m *mockCache) Put(fp string, results []candidate.Candidate) {
	m.puts++
	m.entries[fp] = results
}

type mockExpander struct {
	expanded string
	err      error
	calls    int
}

func (m *mockExpander) Expand(_ context.Context, rawQuery string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if m.expanded != "" {
		return m.expanded, nil
	}
	return rawQuery, nil
}

type mockEmbedder struct {
	vec      []float32
	err      error
	calls    int
	lastText string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	m.lastText = text
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockIndex struct {
	results  []candidate.Candidate
	err      error
	calls    int
	lastTopK int
}

func (m *mockIndex) Query(
	_ context.Context, _ []float32, _ filter.Filter, topK int,
) ([]candidate.Candidate, error) {
	m.calls++
	m.lastTopK = topK
	return m.results, m.err
}

type mockReranker struct {
	reorder func([]candidate.Candidate) []candidate.Candidate
	err     error
	calls   int
	lastLen int
}

func (m *mockReranker) Rerank(
	_ context.Context, _ string, cs []candidate.Candidate,
) ([]candidate.Candidate, error) {
	m.calls++
	m.lastLen = len(cs)
	if m.err != nil {
		return nil, m.err
	}
	if m.reorder != nil {
		return m.reorder(cs), nil
	}
	return cs, nil
}

func makeCandidates(n int) []candidate.Candidate {
	cs := make([]candidate.Candidate, n)
	for i := 0; i < n; i++ {
		cs[i] = candidate.New(fmt.Sprintf("q%d", i), "text", candidate.Metadata{}, 0.9-float64(i)*0.01)
	}
	return cs
}

func makeRequest(t *testing.T, query string, pageNum, limit int) *request.Request {
	t.Helper()
	r, err := request.New(query, filter.Filter{}, pageNum, limit)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &r
}

// --- Tests ---

func TestSearch_FullPipeline(t *testing.T) {
	rc := newMockCache()
	exp := &mockExpander{expanded: "expanded query text"}
	emb := &mockEmbedder{vec: []float32{0.1, 0.2}}
	idx := &mockIndex{results: makeCandidates(15)}
	rr := &mockReranker{}

	svc := New(rc, exp, emb, idx, rr)
	page, err := svc.Search(context.Background(), makeRequest(t, "test query", 1, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 10 {
		t.Fatalf("expected 10 items, got %d", len(page.Items))
	}
	if !page.HasMore {
		t.Error("15 candidates with limit 10 should report more")
	}
	if exp.calls != 1 || emb.calls != 1 || idx.calls != 1 || rr.calls != 1 {
		t.Errorf("every stage should run once: exp=%d emb=%d idx=%d rr=%d",
			exp.calls, emb.calls, idx.calls, rr.calls)
	}
	if emb.lastText != "expanded query text" {
		t.Errorf("embedding should use the expanded query, got %q", emb.lastText)
	}
	if rc.puts != 1 {
		t.Errorf("pipeline result should be cached once, got %d puts", rc.puts)
	}
}

func TestSearch_CacheHitSkipsPipeline(t *testing.T) {
	rc := newMockCache()
	exp := &mockExpander{}
	emb := &mockEmbedder{vec: []float32{0.1}}
	idx := &mockIndex{results: makeCandidates(15)}

	svc := New(rc, exp, emb, idx, nil)
	req := makeRequest(t, "same query", 1, 10)

	if _, err := svc.Search(context.Background(), req); err != nil {
		t.Fatalf("first search: %v", err)
	}

	// Second page of the same logical query must come from cache.
	req2 := makeRequest(t, "same query", 2, 10)
	page, err := svc.Search(context.Background(), req2)
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if len(page.Items) != 5 {
		t.Errorf("expected 5 items on page 2, got %d", len(page.Items))
	}
	if emb.calls != 1 || idx.calls != 1 {
		t.Errorf("cache hit must not rerun the pipeline: emb=%d idx=%d", emb.calls, idx.calls)
	}
}

func TestSearch_EmbeddingFailureIsFatal(t *testing.T) {
	rc := newMockCache()
	emb := &mockEmbedder{err: fmt.Errorf("%w: timeout", domain.ErrEmbeddingUnavailable)}
	idx := &mockIndex{}

	svc := New(rc, &mockExpander{}, emb, idx, nil)
	_, err := svc.Search(context.Background(), makeRequest(t, "q", 1, 10))
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if idx.calls != 0 {
		t.Error("index must not be queried after an embedding failure")
	}
	if rc.puts != 0 {
		t.Error("failed pipelines must not populate the cache")
	}
}

func TestSearch_IndexFailureIsFatal(t *testing.T) {
	rc := newMockCache()
	idx := &mockIndex{err: fmt.Errorf("%w: down", domain.ErrIndexUnavailable)}

	svc := New(rc, &mockExpander{}, &mockEmbedder{vec: []float32{0.1}}, idx, nil)
	_, err := svc.Search(context.Background(), makeRequest(t, "q", 1, 10))
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	if rc.puts != 0 {
		t.Error("failed pipelines must not populate the cache")
	}
}

func TestSearch_ExpansionFailureFallsBack(t *testing.T) {
	rc := newMockCache()
	exp := &mockExpander{err: errors.New("llm unavailable")}
	emb := &mockEmbedder{vec: []float32{0.1}}
	idx := &mockIndex{results: makeCandidates(3)}

	svc := New(rc, exp, emb, idx, nil)
	page, err := svc.Search(context.Background(), makeRequest(t, "raw query", 1, 10))
	if err != nil {
		t.Fatalf("expansion failure must not fail the request: %v", err)
	}
	if emb.lastText != "raw query" {
		t.Errorf("fallback should embed the raw query, got %q", emb.lastText)
	}
	if len(page.Items) != 3 {
		t.Errorf("expected 3 items, got %d", len(page.Items))
	}
}

func TestSearch_RerankFailureKeepsSimilarityOrder(t *testing.T) {
	rc := newMockCache()
	idx := &mockIndex{results: makeCandidates(5)}
	rr := &mockReranker{err: errors.New("llm unavailable")}

	svc := New(rc, &mockExpander{}, &mockEmbedder{vec: []float32{0.1}}, idx, rr)
	page, err := svc.Search(context.Background(), makeRequest(t, "q", 1, 10))
	if err != nil {
		t.Fatalf("rerank failure must not fail the request: %v", err)
	}
	if len(page.Items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(page.Items))
	}
	if page.Items[0].ID() != "q0" {
		t.Errorf("similarity order should stand, first item %s", page.Items[0].ID())
	}
}

func TestSearch_RerankReordersHead(t *testing.T) {
	rc := newMockCache()
	idx := &mockIndex{results: makeCandidates(5)}
	rr := &mockReranker{reorder: func(cs []candidate.Candidate) []candidate.Candidate {
		// Promote the last candidate of the prefix to the top.
		out := make([]candidate.Candidate, 0, len(cs))
		out = append(out, cs[len(cs)-1].WithRerankScore(1.0))
		for i, c := range cs[:len(cs)-1] {
			out = append(out, c.WithRerankScore(0.9-float64(i)*0.1))
		}
		return out
	}}

	svc := New(rc, &mockExpander{}, &mockEmbedder{vec: []float32{0.1}}, idx, rr)
	page, err := svc.Search(context.Background(), makeRequest(t, "q", 1, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Items[0].ID() != "q4" {
		t.Errorf("rerank promotion should change the order, got %s first", page.Items[0].ID())
	}
}

func TestSearch_RerankDepthClamped(t *testing.T) {
	rc := newMockCache()
	idx := &mockIndex{results: makeCandidates(30)}
	rr := &mockReranker{}

	svc := New(rc, &mockExpander{}, &mockEmbedder{vec: []float32{0.1}}, idx, rr)
	if _, err := svc.Search(context.Background(), makeRequest(t, "q", 1, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rr.lastLen != DefaultRerankDepth {
		t.Errorf("expected rerank prefix of %d, got %d", DefaultRerankDepth, rr.lastLen)
	}

	// Fewer candidates than the depth: rerank all of them.
	rc2 := newMockCache()
	idx2 := &mockIndex{results: makeCandidates(7)}
	rr2 := &mockReranker{}
	svc2 := New(rc2, &mockExpander{}, &mockEmbedder{vec: []float32{0.1}}, idx2, rr2)
	if _, err := svc2.Search(context.Background(), makeRequest(t, "q", 1, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rr2.lastLen != 7 {
		t.Errorf("expected rerank over all 7 candidates, got %d", rr2.lastLen)
	}
}

func TestSearch_EmptyResults(t *testing.T) {
	rc := newMockCache()
	idx := &mockIndex{}
	rr := &mockReranker{}

	svc := New(rc, &mockExpander{}, &mockEmbedder{vec: []float32{0.1}}, idx, rr)
	page, err := svc.Search(context.Background(), makeRequest(t, "q", 1, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 0 || page.HasMore {
		t.Errorf("empty corpus should yield an empty page, got %d items", len(page.Items))
	}
	if rr.calls != 0 {
		t.Error("rerank should be skipped for an empty result set")
	}
	if rc.puts != 1 {
		t.Error("empty result sets are cached too")
	}
}

func TestSearch_NilRerankerSkipsStage(t *testing.T) {
	rc := newMockCache()
	idx := &mockIndex{results: makeCandidates(3)}

	svc := New(rc, &mockExpander{}, &mockEmbedder{vec: []float32{0.1}}, idx, nil)
	page, err := svc.Search(context.Background(), makeRequest(t, "q", 1, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 3 {
		t.Errorf("expected 3 items, got %d", len(page.Items))
	}
}

func TestSearch_TopKForwarded(t *testing.T) {
	rc := newMockCache()
	idx := &mockIndex{}

	svc := New(rc, &mockExpander{}, &mockEmbedder{vec: []float32{0.1}}, idx, nil).
		WithDepths(30, 10)
	if _, err := svc.Search(context.Background(), makeRequest(t, "q", 1, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.lastTopK != 30 {
		t.Errorf("expected topK=30 forwarded to the index, got %d", idx.lastTopK)
	}
}

func TestContextExpander(t *testing.T) {
	got, err := ContextExpander{}.Expand(context.Background(), "land reforms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "previous year exam questions about land reforms" {
		t.Errorf("unexpected expansion: %q", got)
	}
}
