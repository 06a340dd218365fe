package shard

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/kailas-cloud/hybridex/internal/db"
	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/hits"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	domshard "github.com/kailas-cloud/hybridex/internal/domain/shard"
	"github.com/kailas-cloud/hybridex/internal/domain/stream"
)

// store is the consumer interface for shard queries (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SupportsTextSearch(ctx context.Context) bool
}

// Repo runs the sub-queries of a hybrid request against one shard and
// encodes the answer as a sentinel stream.
type Repo struct {
	shard       int
	index       string
	vectorField string
	textField   string
	store       store
}

// New creates a shard repository for the given shard index and search index name.
func New(shard int, index string, s store) *Repo {
	return &Repo{shard: shard, index: index, store: s}
}

// WithFields overrides the index's vector and text field names. Empty names keep the store defaults.
func (r *Repo) WithFields(vector, text string) *Repo {
	r.vectorField = vector
	r.textField = text
	return r
}

// Shard returns the shard index.
func (r *Repo) Shard() int { return r.shard }

// Search executes every sub-query in declaration order. Each sub-query becomes one group of
// the stream, ordered by the request's ranking mode with ties broken by ascending doc id.
// Semantic sub-queries must already carry a vector.
func (r *Repo) Search(ctx context.Context, req request.Request) (*domshard.Response, error) {
	spec := req.Spec()
	order := spec.Comparator()
	fields := spec.Fields()
	returnFields := make([]string, len(fields))
	for i, f := range fields {
		returnFields[i] = f.Name
	}

	interner := domshard.NewInterner()
	subQueries := req.SubQueries()
	groups := make([][]rank.Entry, 0, len(subQueries))
	exact := true
	var largest int64

	for i, sq := range subQueries {
		sr, err := r.run(ctx, sq, returnFields)
		if err != nil {
			return nil, fmt.Errorf("shard %d sub-query %d: %w", r.shard, i, err)
		}

		group, err := toEntries(sr, interner, fields)
		if err != nil {
			return nil, fmt.Errorf("shard %d sub-query %d: %w", r.shard, i, err)
		}
		slices.SortStableFunc(group, func(a, b rank.Entry) int {
			if c := order(a, b); c != 0 {
				return c
			}
			return cmp.Compare(a.Doc, b.Doc)
		})
		groups = append(groups, group)

		if sr.Total > len(sr.Entries) {
			exact = false
		}
		largest = max(largest, int64(sr.Total))
	}

	keys := interner.Keys()
	value := max(largest, int64(len(keys)))
	total := hits.Exactly(value)
	if !exact {
		total = hits.AtLeastOf(value)
	}

	return &domshard.Response{
		Shard:     r.shard,
		Stream:    stream.Encode(groups),
		TotalHits: total,
		MaxScore:  bestScore(groups),
		Keys:      keys,
	}, nil
}

func (r *Repo) run(ctx context.Context, sq request.SubQuery, returnFields []string) (*db.SearchResult, error) {
	switch sq.Mode() {
	case mode.Semantic:
		if len(sq.Vector()) == 0 {
			return nil, domain.ErrEmbeddingUnavailable
		}
		sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
			IndexName:    r.index,
			VectorField:  r.vectorField,
			Vector:       sq.Vector(),
			K:            sq.K(),
			ReturnFields: returnFields,
		})
		if err != nil {
			return nil, fmt.Errorf("search knn: %w", err)
		}
		return sr, nil
	case mode.Keyword:
		if !r.store.SupportsTextSearch(ctx) {
			return nil, domain.ErrKeywordSearchNotSupported
		}
		sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
			IndexName:    r.index,
			TextField:    r.textField,
			Query:        sq.Text(),
			TopK:         sq.K(),
			ReturnFields: returnFields,
		})
		if err != nil {
			return nil, fmt.Errorf("search bm25: %w", err)
		}
		return sr, nil
	default:
		return nil, fmt.Errorf("unknown sub-query mode %q", sq.Mode())
	}
}

// toEntries converts store hits into ranked entries, parsing one sort value per field.
// A missing field becomes a null value.
func toEntries(sr *db.SearchResult, interner *domshard.Interner, fields []rank.SortField) ([]rank.Entry, error) {
	if sr == nil {
		return []rank.Entry{}, nil
	}

	entries := make([]rank.Entry, 0, len(sr.Entries))
	for _, hit := range sr.Entries {
		doc := interner.ID(hit.Key)
		if len(fields) == 0 {
			entries = append(entries, rank.NewScored(doc, hit.Score))
			continue
		}

		values := make([]rank.Value, len(fields))
		for i, f := range fields {
			v, err := rank.ParseValue(f.Kind, hit.Fields[f.Name])
			if err != nil {
				return nil, fmt.Errorf("document %s field %s: %w", hit.Key, f.Name, err)
			}
			values[i] = v
		}
		entries = append(entries, rank.NewSorted(doc, hit.Score, values...))
	}
	return entries, nil
}

func bestScore(groups [][]rank.Entry) float64 {
	best := math.NaN()
	for _, g := range groups {
		for _, e := range g {
			if math.IsNaN(best) || e.Score > best {
				best = e.Score
			}
		}
	}
	return best
}
