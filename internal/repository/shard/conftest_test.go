package shard

import (
	"context"
	"testing"

	"github.com/kailas-cloud/hybridex/internal/db"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn          func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchBM25Fn         func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	supportsTextSearchFn func(ctx context.Context) bool
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchBM25Fn != nil {
		return m.searchBM25Fn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SupportsTextSearch(ctx context.Context) bool {
	if m.supportsTextSearchFn != nil {
		return m.supportsTextSearchFn(ctx)
	}
	return true
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(2, "docs:idx", ms), ms
}

// hybridRequest builds a semantic + keyword request with the semantic vector already set.
func hybridRequest(t *testing.T, spec rank.Spec) request.Request {
	t.Helper()
	semantic, err := request.NewSubQuery(mode.Semantic, "", []float32{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("NewSubQuery: %v", err)
	}
	keyword, err := request.NewSubQuery(mode.Keyword, "", nil, 3)
	if err != nil {
		t.Fatalf("NewSubQuery: %v", err)
	}
	req, err := request.New("red shoes", []request.SubQuery{semantic, keyword}, 10, 0, "", nil, spec)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return req
}

func entry(key string, score float64, fields map[string]string) db.SearchEntry {
	if fields == nil {
		fields = map[string]string{}
	}
	return db.SearchEntry{Key: key, Score: score, Fields: fields}
}
