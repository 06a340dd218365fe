package request

import (
	"fmt"

	"github.com/kailas-cloud/hybridex/internal/domain/combination"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 10
	MaxTopK        = 500
	DefaultSize    = 10
	MaxSize        = 100
	MaxSubQueries  = 5
)

// SubQuery is one independently ranked query of a hybrid request.
type SubQuery struct {
	kind   mode.Mode
	text   string
	vector []float32
	k      int
}

// NewSubQuery validates one sub-query. Text may be empty when the request query should be
// used instead; k <= 0 selects DefaultTopK.
func NewSubQuery(kind mode.Mode, text string, vector []float32, k int) (SubQuery, error) {
	if !kind.IsValid() {
		return SubQuery{}, fmt.Errorf("invalid sub-query mode: %q", kind)
	}
	if len(text) > MaxQueryLength {
		return SubQuery{}, fmt.Errorf("sub-query text too long (max %d chars)", MaxQueryLength)
	}
	if kind == mode.Keyword && len(vector) > 0 {
		return SubQuery{}, fmt.Errorf("keyword sub-query does not take a vector")
	}
	if k <= 0 {
		k = DefaultTopK
	}
	if k > MaxTopK {
		k = MaxTopK
	}
	return SubQuery{kind: kind, text: text, vector: vector, k: k}, nil
}

// Mode returns the retrieval strategy.
func (q *SubQuery) Mode() mode.Mode { return q.kind }

// Text returns the query text.
func (q *SubQuery) Text() string { return q.text }

// Vector returns the caller-supplied query vector (nil when it must be embedded).
func (q *SubQuery) Vector() []float32 { return q.vector }

// K returns the number of candidates to retrieve per shard.
func (q *SubQuery) K() int { return q.k }

// WithVector returns a copy with the vector set.
func (q SubQuery) WithVector(v []float32) SubQuery {
	q.vector = v
	return q
}

// Request is a validated hybrid search query.
type Request struct {
	query      string
	subQueries []SubQuery
	size       int
	from       int
	technique  combination.Technique
	weights    []float64
	spec       rank.Spec
}

// New validates and normalizes hybrid search parameters.
// Without sub-queries the request runs the default pair: semantic then keyword over query.
// Sub-queries without text inherit query. Defaults: size=10, technique=arithmetic_mean.
func New(
	query string,
	subQueries []SubQuery,
	size, from int,
	technique string,
	weights []float64,
	spec rank.Spec,
) (Request, error) {
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if len(subQueries) == 0 {
		if query == "" {
			return Request{}, fmt.Errorf("query is required")
		}
		semantic, _ := NewSubQuery(mode.Semantic, "", nil, DefaultTopK)
		keyword, _ := NewSubQuery(mode.Keyword, "", nil, DefaultTopK)
		subQueries = []SubQuery{semantic, keyword}
	}
	if len(subQueries) > MaxSubQueries {
		return Request{}, fmt.Errorf("too many sub-queries (max %d)", MaxSubQueries)
	}

	resolved := make([]SubQuery, len(subQueries))
	for i, sq := range subQueries {
		if sq.text == "" {
			sq.text = query
		}
		if sq.text == "" && !(sq.kind == mode.Semantic && len(sq.vector) > 0) {
			return Request{}, fmt.Errorf("sub-query %d: text or vector is required", i)
		}
		resolved[i] = sq
	}

	r, err := NewAggregation(size, from, technique, weights, spec)
	if err != nil {
		return Request{}, err
	}
	if len(weights) > 0 && len(weights) != len(resolved) {
		return Request{}, fmt.Errorf("got %d weights for %d sub-queries", len(weights), len(resolved))
	}
	r.query = query
	r.subQueries = resolved
	return r, nil
}

// NewAggregation validates the combination parameters of a request whose shard streams
// were produced elsewhere. It carries no sub-queries; weights are matched against the
// decoded groups instead.
func NewAggregation(size, from int, technique string, weights []float64, spec rank.Spec) (Request, error) {
	tech, err := combination.Parse(technique)
	if err != nil {
		return Request{}, err //nolint:wrapcheck // sentinel is already descriptive
	}
	for i, w := range weights {
		if w < 0 {
			return Request{}, fmt.Errorf("weight %d must not be negative", i)
		}
	}

	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	if from < 0 {
		return Request{}, fmt.Errorf("from must not be negative")
	}

	return Request{
		size:      size,
		from:      from,
		technique: tech,
		weights:   weights,
		spec:      spec,
	}, nil
}

// Query returns the request-level query text.
func (r *Request) Query() string { return r.query }

// SubQueries returns the sub-queries in declaration order.
func (r *Request) SubQueries() []SubQuery { return r.subQueries }

// Size returns the maximum number of hits to return.
func (r *Request) Size() int { return r.size }

// From returns the number of combined hits to skip.
func (r *Request) From() int { return r.from }

// Technique returns the score combination technique.
func (r *Request) Technique() combination.Technique { return r.technique }

// Weights returns per-sub-query weights (empty means equal weights).
func (r *Request) Weights() []float64 { return r.weights }

// Spec returns the ranking mode.
func (r *Request) Spec() rank.Spec { return r.spec }

// WithSubQueries returns a copy with the sub-queries replaced (same count expected).
func (r Request) WithSubQueries(subQueries []SubQuery) Request {
	r.subQueries = subQueries
	return r
}
