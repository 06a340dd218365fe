package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/db"
	"github.com/kailas-cloud/hybridex/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	// GET → ErrKeyNotFound (cache miss)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	// SET → OK (cache put)
	var setTTL time.Duration
	var setCalled bool
	ms.setFn = func(_ context.Context, _ string, _ []byte, ttl time.Duration) error {
		setCalled = true
		setTTL = ttl
		return nil
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !setCalled {
		t.Fatal("expected SET to be called for cache put")
	}
	if setTTL != time.Hour {
		t.Errorf("expected ttl 1h, got %v", setTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2, 0.3},
	}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})

	// GET → cached bytes
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls != 0 {
		t.Errorf("expected no provider call on hit, got %d", inner.calls)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setCalled bool
	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		setCalled = true
		return nil
	}

	_, err := ce.Embed(context.Background(), "test text")
	if err == nil {
		t.Fatal("expected error from inner embedder")
	}
	if setCalled {
		t.Error("failed embeddings must not be cached")
	}
}

func TestEmbed_StoreFailuresFallThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.7}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(context.Context, string) ([]byte, error) {
		return nil, &db.Error{Op: db.OpGet, Err: context.DeadlineExceeded}
	}
	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		return &db.Error{Op: db.OpSet, Err: context.DeadlineExceeded}
	}

	result, err := ce.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("cache failures should not fail the call: %v", err)
	}
	if result.Embedding[0] != 0.7 || inner.calls != 1 {
		t.Errorf("expected provider result, got %v after %d calls", result.Embedding, inner.calls)
	}
}

func TestEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.2}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(context.Context, string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	result, err := ce.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || result.Embedding[0] != 0.2 {
		t.Errorf("corrupt entry should fall back to the provider")
	}
}

func TestEmbed_CountsHitsAndMisses(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.3}}}
	ms := &mockKVStore{}
	ce := New(inner, ms, "m", 0, counter, zap.NewNop())

	stored := map[string][]byte{}
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		if v, ok := stored[key]; ok {
			return v, nil
		}
		return nil, db.ErrKeyNotFound
	}
	ms.setFn = func(_ context.Context, key string, value []byte, _ time.Duration) error {
		stored[key] = value
		return nil
	}

	for range 3 {
		if _, err := ce.Embed(context.Background(), "same text"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 2 {
		t.Errorf("expected 2 hits, got %v", got)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", inner.calls)
	}
}

func TestCacheKey(t *testing.T) {
	a := New(nil, nil, "model-a", 0, nil, zap.NewNop())
	b := New(nil, nil, "model-b", 0, nil, zap.NewNop())

	key := a.cacheKey("text")
	if !strings.HasPrefix(key, cacheKeyPrefix) {
		t.Errorf("missing prefix: %q", key)
	}
	if key != a.cacheKey("text") {
		t.Error("cache key must be deterministic")
	}
	if key == a.cacheKey("other") {
		t.Error("different texts must not share a key")
	}
	if key == b.cacheKey("text") {
		t.Error("different models must not share a key")
	}
}

func TestHealthCheck_Delegates(t *testing.T) {
	ce, _ := newTestCachedEmbedder(t, &mockEmbedder{})
	if err := ce.HealthCheck(context.Background()); err != nil {
		t.Errorf("embedder without health check should be healthy: %v", err)
	}

	inner := domain.NewInstructionEmbedder(&mockEmbedder{}, "query: ")
	ce = New(inner, &mockKVStore{}, "m", 0, nil, zap.NewNop())
	if err := ce.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("component %d: got %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := bytesToVector([]byte{1}); err == nil {
		t.Error("expected error for truncated data")
	}
}
