package db

import (
	"context"
	"time"
)

// Store is one shard's search backend.
type Store interface {
	Pinger
	Searcher
	KV
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// KV provides plain key-value access, used for caching next to the index.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
	SupportsTextSearch(ctx context.Context) bool
}
