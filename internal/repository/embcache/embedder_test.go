package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/prepgenie/pyqsearch/internal/db"
	"github.com/prepgenie/pyqsearch/internal/domain"
)

type mockKV struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func newMockKV() *mockKV {
	return &mockKV{data: make(map[string][]byte)}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.lastTTL = ttl
	return nil
}

type mockInner struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockInner) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func TestEmbed_MissThenHit(t *testing.T) {
	kv := newMockKV()
	inner := &mockInner{result: domain.EmbeddingResult{
		Embedding:   []float32{0.1, 0.2, 0.3},
		TotalTokens: 7,
	}}
	emb := New(inner, kv, time.Hour, nil, zap.NewNop())

	first, err := emb.Embed(context.Background(), "secularism")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", inner.calls)
	}
	if first.TotalTokens != 7 {
		t.Errorf("miss should carry provider token usage, got %d", first.TotalTokens)
	}
	if kv.lastTTL != time.Hour {
		t.Errorf("expected cache TTL 1h, got %v", kv.lastTTL)
	}

	second, err := emb.Embed(context.Background(), "secularism")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("hit should not call the provider, got %d calls", inner.calls)
	}
	if len(second.Embedding) != 3 || second.Embedding[1] != 0.2 {
		t.Errorf("cached vector mismatch: %v", second.Embedding)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit should report zero tokens, got %d", second.TotalTokens)
	}
}

func TestEmbed_DistinctTexts(t *testing.T) {
	kv := newMockKV()
	inner := &mockInner{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	emb := New(inner, kv, time.Hour, nil, zap.NewNop())

	_, _ = emb.Embed(context.Background(), "first")
	_, _ = emb.Embed(context.Background(), "second")

	if inner.calls != 2 {
		t.Errorf("distinct texts must not share a cache entry, got %d calls", inner.calls)
	}
}

func TestEmbed_StoreFailureIsSoft(t *testing.T) {
	kv := newMockKV()
	kv.getErr = errors.New("connection reset")
	kv.setErr = errors.New("connection reset")
	inner := &mockInner{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	emb := New(inner, kv, time.Hour, nil, zap.NewNop())

	res, err := emb.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("broken cache must degrade to pass-through: %v", err)
	}
	if len(res.Embedding) != 1 {
		t.Errorf("expected provider result, got %v", res.Embedding)
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	kv := newMockKV()
	inner := &mockInner{err: domain.ErrEmbeddingUnavailable}
	emb := New(inner, kv, time.Hour, nil, zap.NewNop())

	_, err := emb.Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("provider error must propagate, got %v", err)
	}
	if len(kv.data) != 0 {
		t.Error("failed embeds must not be cached")
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("element %d mismatch: %f vs %f", i, in[i], out[i])
		}
	}
}

func TestBytesToVector_Invalid(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Error("truncated data must be rejected")
	}
}
