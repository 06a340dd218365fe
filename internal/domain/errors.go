package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals a hybrid request that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoShards signals a coordinator with nothing to query.
	ErrNoShards = errors.New("no shards configured")
	// ErrShardFailure signals a shard that could not answer.
	ErrShardFailure = errors.New("shard failure")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingUnavailable signals a semantic sub-query without a vector and no embedder to build one.
	ErrEmbeddingUnavailable = errors.New("query embedding unavailable")
	// ErrKeywordSearchNotSupported signals that the backend lacks keyword search.
	ErrKeywordSearchNotSupported = errors.New("keyword search not supported by backend")
)

// ShardError wraps ErrShardFailure with the failing shard index.
type ShardError struct {
	Shard int
	Err   error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("%s %d: %v", ErrShardFailure.Error(), e.Shard, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *ShardError) Unwrap() []error { return []error{ErrShardFailure, e.Err} }

// NewShardError creates a shard failure error.
func NewShardError(shard int, err error) error {
	return &ShardError{Shard: shard, Err: err}
}
