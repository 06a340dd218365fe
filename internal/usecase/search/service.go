package search

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/combination"
	"github.com/kailas-cloud/hybridex/internal/domain/hits"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	"github.com/kailas-cloud/hybridex/internal/domain/shard"
	"github.com/kailas-cloud/hybridex/internal/domain/stream"
	"github.com/kailas-cloud/hybridex/internal/logger"
	"github.com/kailas-cloud/hybridex/internal/metrics"
	"github.com/kailas-cloud/hybridex/internal/usecase/merge"
)

// Options tunes the coordinator.
type Options struct {
	// AllowPartialResults skips failing shards instead of failing the request.
	AllowPartialResults bool
	// ShardTimeout bounds each shard call; zero means no per-shard limit.
	ShardTimeout time.Duration
}

// Service coordinates a hybrid search across shards: it embeds semantic sub-queries,
// fans the request out, folds the shard streams, and combines the groups into one ranking.
type Service struct {
	shards []Shard
	embed  Embedder
	opts   Options
}

// New creates a search coordinator. embed can be nil when every semantic sub-query carries a vector.
func New(shards []Shard, embed Embedder, opts Options) *Service {
	return &Service{shards: shards, embed: embed, opts: opts}
}

// Search runs req on every shard and returns the combined page.
func (s *Service) Search(ctx context.Context, req request.Request) (page *result.Page, err error) {
	start := time.Now()
	technique := req.Technique().String()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.SearchRequestsTotal.WithLabelValues(technique, status).Inc()
		metrics.SearchDuration.WithLabelValues(technique).Observe(time.Since(start).Seconds())
	}()

	if len(s.shards) == 0 {
		return nil, domain.ErrNoShards
	}

	req, err = s.vectorize(ctx, req)
	if err != nil {
		return nil, err
	}

	responses, err := s.fanOut(ctx, req)
	if err != nil {
		return nil, err
	}

	return s.aggregate(ctx, req, responses, false)
}

// Aggregate decodes the shard responses, folds them in ascending shard order, combines
// the per-sub-query groups with the request's technique, and applies from/size.
// Nil responses are ignored. The page also carries the merged result re-encoded as one stream.
func (s *Service) Aggregate(ctx context.Context, req request.Request, responses []*shard.Response) (*result.Page, error) {
	return s.aggregate(ctx, req, responses, true)
}

func (s *Service) aggregate(
	ctx context.Context, req request.Request, responses []*shard.Response, withStream bool,
) (*result.Page, error) {
	log := logger.FromContext(ctx)
	spec := req.Spec()

	ordered := make([]*shard.Response, 0, len(responses))
	for _, r := range responses {
		if r != nil {
			ordered = append(ordered, r)
		}
	}
	slices.SortStableFunc(ordered, func(a, b *shard.Response) int { return a.Shard - b.Shard })

	keys := make(map[int]*shard.Response, len(ordered))
	aggs := make([]*merge.Aggregate, 0, len(ordered))
	for _, resp := range ordered {
		if _, dup := keys[resp.Shard]; dup {
			return nil, fmt.Errorf("%w: duplicate response for shard %d", domain.ErrInvalidRequest, resp.Shard)
		}
		keys[resp.Shard] = resp

		decoded, err := stream.Decode(resp.Stream, resp.TotalHits, spec)
		if err != nil {
			metrics.StreamDecodeErrorsTotal.Inc()
			if !s.opts.AllowPartialResults {
				return nil, domain.NewShardError(resp.Shard, fmt.Errorf("decode stream: %w", err))
			}
			log.Warn("skipping undecodable shard stream", zap.Int("shard", resp.Shard), zap.Error(err))
			continue
		}
		decoded.AssignShard(resp.Shard)
		aggs = append(aggs, merge.NewAggregate(decoded, resp.MaxScore))
	}

	combiner := merge.NewCombiner(spec)
	agg, err := combiner.Fold(aggs)
	if err != nil {
		return nil, fmt.Errorf("fold shard results: %w", err)
	}
	if agg == nil {
		return emptyPage(len(req.SubQueries())), nil
	}

	groups := agg.Result.Groups()
	combined, err := req.Technique().Combine(groups, combination.Options{Weights: req.Weights(), Spec: spec})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	metrics.MergedEntries.Observe(float64(len(combined)))

	subQueryHits := make([]int64, max(len(groups), len(req.SubQueries())))
	for i, g := range groups {
		subQueryHits[i] = int64(len(g.Entries))
	}

	log.Debug("folded shard results",
		zap.Int("shards", len(aggs)),
		zap.Stringer("total_hits", agg.Result.TotalHits()),
		zap.Int("combined", len(combined)),
	)

	window := paginate(combined, req.From(), req.Size())
	out := make([]result.Result, len(window))
	for i, e := range window {
		key, _ := keys[e.Shard].Key(e.Doc)
		out[i] = result.New(key, e.Shard, e.Doc, e.Score, e.Fields)
	}

	page := &result.Page{
		TotalHits:    agg.Result.TotalHits(),
		MaxScore:     agg.MaxScore,
		Hits:         out,
		SubQueryHits: subQueryHits,
	}
	if withStream {
		page.Stream = stream.EncodeResult(agg.Result)
	}
	return page, nil
}

// vectorize embeds the text of semantic sub-queries that arrived without a vector.
// Identical texts are embedded once.
func (s *Service) vectorize(ctx context.Context, req request.Request) (request.Request, error) {
	subQueries := slices.Clone(req.SubQueries())
	cache := make(map[string][]float32)
	changed := false

	for i, sq := range subQueries {
		if sq.Mode() != mode.Semantic || len(sq.Vector()) > 0 {
			continue
		}
		if s.embed == nil {
			return request.Request{}, domain.ErrEmbeddingUnavailable
		}

		vec, ok := cache[sq.Text()]
		if !ok {
			res, err := s.embed.Embed(ctx, sq.Text())
			if err != nil {
				return request.Request{}, fmt.Errorf("vectorize query: %w", err)
			}
			vec = res.Embedding
			cache[sq.Text()] = vec
		}
		subQueries[i] = sq.WithVector(vec)
		changed = true
	}

	if !changed {
		return req, nil
	}
	return req.WithSubQueries(subQueries), nil
}

// fanOut queries every shard concurrently. Responses are indexed like s.shards; a skipped
// shard leaves a nil slot.
func (s *Service) fanOut(ctx context.Context, req request.Request) ([]*shard.Response, error) {
	log := logger.FromContext(ctx)
	responses := make([]*shard.Response, len(s.shards))

	g, gctx := errgroup.WithContext(ctx)
	for i, sh := range s.shards {
		g.Go(func() error {
			label := strconv.Itoa(sh.Shard())

			callCtx := gctx
			if s.opts.ShardTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, s.opts.ShardTimeout)
				defer cancel()
			}

			resp, err := sh.Search(callCtx, req)
			if err == nil {
				metrics.ShardResponsesTotal.WithLabelValues(label, metrics.ShardOK).Inc()
				responses[i] = resp
				return nil
			}

			if s.opts.AllowPartialResults && ctx.Err() == nil {
				metrics.ShardResponsesTotal.WithLabelValues(label, metrics.ShardSkipped).Inc()
				log.Warn("skipping failed shard", zap.Int("shard", sh.Shard()), zap.Error(err))
				return nil
			}
			metrics.ShardResponsesTotal.WithLabelValues(label, metrics.ShardError).Inc()
			return domain.NewShardError(sh.Shard(), err)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already a ShardError
	}
	return responses, nil
}

func paginate(entries []rank.Entry, from, size int) []rank.Entry {
	if from >= len(entries) {
		return nil
	}
	end := min(from+size, len(entries))
	return entries[from:end]
}

func emptyPage(subQueries int) *result.Page {
	return &result.Page{
		TotalHits:    hits.Exactly(0),
		MaxScore:     math.NaN(),
		Hits:         []result.Result{},
		SubQueryHits: make([]int64, subQueries),
	}
}
