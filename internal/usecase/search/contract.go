package search

import (
	"context"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/shard"
)

// Shard runs a hybrid request against one shard and returns its sentinel stream.
type Shard interface {
	Shard() int
	Search(ctx context.Context, req request.Request) (*shard.Response, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
