package chi

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/kailas-cloud/hybridex/internal/domain/hits"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	"github.com/kailas-cloud/hybridex/internal/domain/shard"
	"github.com/kailas-cloud/hybridex/internal/domain/stream"
)

func specFromDTO(fields []SortField) (rank.Spec, error) {
	if len(fields) == 0 {
		return rank.ByRelevance(), nil
	}
	out := make([]rank.SortField, len(fields))
	for i, f := range fields {
		kind, err := rank.ParseKind(f.Type)
		if err != nil {
			return rank.Spec{}, fmt.Errorf("sort field %q: %w", f.Field, err)
		}
		out[i] = rank.SortField{Name: f.Field, Kind: kind, Order: rank.Order(f.Order)}
	}
	spec, err := rank.BySort(out...)
	if err != nil {
		return rank.Spec{}, fmt.Errorf("sort: %w", err)
	}
	return spec, nil
}

func searchRequestFromDTO(req *SearchRequest) (request.Request, error) {
	spec, err := specFromDTO(req.Sort)
	if err != nil {
		return request.Request{}, err
	}

	subQueries := make([]request.SubQuery, len(req.SubQueries))
	for i, sq := range req.SubQueries {
		q, err := request.NewSubQuery(mode.Mode(sq.Kind), sq.Text, sq.Vector, sq.K)
		if err != nil {
			return request.Request{}, fmt.Errorf("sub_queries[%d]: %w", i, err)
		}
		subQueries[i] = q
	}

	r, err := request.New(req.Query, subQueries, req.Size, req.From, req.Technique, req.Weights, spec)
	if err != nil {
		return request.Request{}, fmt.Errorf("build request: %w", err)
	}
	return r, nil
}

func aggregateRequestFromDTO(req *AggregateRequest) (request.Request, []*shard.Response, error) {
	spec, err := specFromDTO(req.Sort)
	if err != nil {
		return request.Request{}, nil, err
	}

	r, err := request.NewAggregation(req.Size, req.From, req.Technique, req.Weights, spec)
	if err != nil {
		return request.Request{}, nil, fmt.Errorf("build request: %w", err)
	}

	responses := make([]*shard.Response, len(req.Shards))
	for i := range req.Shards {
		resp, err := shardResponseFromDTO(&req.Shards[i], spec)
		if err != nil {
			return request.Request{}, nil, fmt.Errorf("shards[%d]: %w", i, err)
		}
		responses[i] = resp
	}
	return r, responses, nil
}

func shardResponseFromDTO(s *ShardResult, spec rank.Spec) (*shard.Response, error) {
	relation := hits.Relation(s.Total.Relation)
	if relation == "" {
		relation = hits.Exact
	}
	if !relation.IsValid() {
		return nil, fmt.Errorf("invalid total relation %q", s.Total.Relation)
	}
	if s.Total.Value < 0 {
		return nil, fmt.Errorf("total must not be negative")
	}

	elems := make([]stream.Element, len(s.Stream))
	for i, el := range s.Stream {
		e, err := elementFromDTO(el, spec)
		if err != nil {
			return nil, fmt.Errorf("stream[%d]: %w", i, err)
		}
		elems[i] = e
	}

	return &shard.Response{
		Shard:     s.Shard,
		Stream:    elems,
		TotalHits: hits.TotalHits{Value: s.Total.Value, Relation: relation},
		MaxScore:  floatOrNaN(s.MaxScore),
		Keys:      s.Keys,
	}, nil
}

func elementFromDTO(el Element, spec rank.Spec) (stream.Element, error) {
	switch el.Type {
	case "boundary":
		return stream.Boundary(), nil
	case "delimiter":
		return stream.Delimiter(), nil
	case "entry":
	default:
		return stream.Element{}, fmt.Errorf("unknown element type %q", el.Type)
	}

	score := floatOrNaN(el.Score)
	if el.Sort == nil {
		return stream.Of(rank.NewScored(el.Doc, score)), nil
	}

	fields := spec.Fields()
	values := make([]rank.Value, len(el.Sort))
	for i, raw := range el.Sort {
		kind := rank.KindString
		if i < len(fields) {
			kind = fields[i].Kind
		}
		v, err := valueFromJSON(kind, raw)
		if err != nil {
			return stream.Element{}, fmt.Errorf("sort[%d]: %w", i, err)
		}
		values[i] = v
	}
	return stream.Of(rank.NewSorted(el.Doc, score, values...)), nil
}

// valueFromJSON accepts JSON numbers (decoded with UseNumber), strings and null.
func valueFromJSON(kind rank.Kind, raw any) (rank.Value, error) {
	switch v := raw.(type) {
	case nil:
		return rank.Null(), nil
	case json.Number:
		return rank.ParseValue(kind, v.String()) //nolint:wrapcheck // already descriptive
	case string:
		return rank.ParseValue(kind, v) //nolint:wrapcheck // already descriptive
	default:
		return rank.Value{}, fmt.Errorf("unsupported sort value %v", raw)
	}
}

func pageToDTO(p *result.Page) SearchResponse {
	items := make([]Hit, len(p.Hits))
	for i := range p.Hits {
		items[i] = hitToDTO(&p.Hits[i])
	}
	subQueryHits := p.SubQueryHits
	if subQueryHits == nil {
		subQueryHits = []int64{}
	}
	return SearchResponse{
		Total:        totalToDTO(p.TotalHits),
		MaxScore:     nanToNil(p.MaxScore),
		Hits:         items,
		SubQueryHits: subQueryHits,
		Stream:       streamToDTO(p.Stream),
	}
}

func streamToDTO(elems []stream.Element) []Element {
	if elems == nil {
		return nil
	}
	out := make([]Element, len(elems))
	for i, el := range elems {
		e, ok := el.Entry()
		if !ok {
			out[i] = Element{Type: el.Kind().String()}
			continue
		}
		shard := e.Shard
		out[i] = Element{
			Type:  el.Kind().String(),
			Shard: &shard,
			Doc:   e.Doc,
			Score: nanToNil(e.Score),
			Sort:  valuesToAny(e.Fields),
		}
	}
	return out
}

func valuesToAny(vals []rank.Value) []any {
	if vals == nil {
		return nil
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v.Any()
	}
	return out
}

func hitToDTO(r *result.Result) Hit {
	return Hit{
		ID:    r.ID(),
		Shard: r.Shard(),
		Doc:   r.Doc(),
		Score: nanToNil(r.Score()),
		Sort:  valuesToAny(r.Sort()),
	}
}

func totalToDTO(t hits.TotalHits) TotalHits {
	relation := t.Relation
	if relation == "" {
		relation = hits.Exact
	}
	return TotalHits{Value: t.Value, Relation: string(relation)}
}

func floatOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// nanToNil maps NaN and infinities to JSON null.
func nanToNil(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
