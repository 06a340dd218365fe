package merge

import (
	"errors"
	"fmt"
	"math"

	"github.com/kailas-cloud/hybridex/internal/domain/compound"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
)

// ErrGroupCountMismatch signals two results built from hybrid queries with different sub-query counts.
var ErrGroupCountMismatch = errors.New("sub-query group count mismatch")

// Aggregate is a compound result folded across shards together with the best score seen.
type Aggregate struct {
	Result   *compound.Result
	MaxScore float64
}

// NewAggregate pairs a decoded shard result with the shard's best score.
func NewAggregate(r *compound.Result, maxScore float64) *Aggregate {
	return &Aggregate{Result: r, MaxScore: maxScore}
}

// Combiner folds shard results for one search request. The ranking mode is fixed at construction.
type Combiner struct {
	spec  rank.Spec
	order rank.Comparator
}

// NewCombiner builds the comparator for spec once; reuse the combiner for every shard of the request.
func NewCombiner(spec rank.Spec) *Combiner {
	return &Combiner{spec: spec, order: spec.Comparator()}
}

// Merge folds incoming into agg and returns the aggregate. agg is mutated in place;
// incoming must not be reused afterwards. A nil agg adopts incoming as is.
//
// A side with zero total hits contributes only its relation: its entries are ignored,
// but a gte zero still turns the aggregate total into a lower bound.
func (c *Combiner) Merge(agg, incoming *Aggregate) (*Aggregate, error) {
	if incoming == nil || incoming.Result == nil {
		return agg, nil
	}
	if agg == nil || agg.Result == nil {
		if err := c.check(incoming.Result); err != nil {
			return nil, fmt.Errorf("incoming result: %w", err)
		}
		return incoming, nil
	}

	total := agg.Result.TotalHits().Add(incoming.Result.TotalHits())
	if incoming.Result.TotalHits().IsZero() {
		agg.Result.SetTotalHits(total)
		return agg, nil
	}
	if err := c.check(incoming.Result); err != nil {
		return nil, fmt.Errorf("incoming result: %w", err)
	}
	if agg.Result.TotalHits().IsZero() {
		incoming.Result.SetTotalHits(total)
		return incoming, nil
	}

	groups, err := c.mergeGroups(agg.Result.Groups(), incoming.Result.Groups())
	if err != nil {
		return nil, err
	}

	agg.Result.SetGroups(groups)
	agg.Result.SetTotalHits(total)
	agg.MaxScore = maxScore(agg.MaxScore, incoming.MaxScore)
	return agg, nil
}

// Fold merges results in the order given. Pass shards sorted by shard index for
// reproducible entry order.
func (c *Combiner) Fold(results []*Aggregate) (*Aggregate, error) {
	var agg *Aggregate
	for i, r := range results {
		next, err := c.Merge(agg, r)
		if err != nil {
			return nil, fmt.Errorf("fold result %d: %w", i, err)
		}
		agg = next
	}
	return agg, nil
}

func (c *Combiner) mergeGroups(source, increment []compound.Group) ([]compound.Group, error) {
	switch {
	case len(increment) == 0:
		return source, nil
	case len(source) == 0:
		return increment, nil
	case len(source) != len(increment):
		return nil, fmt.Errorf("%w: %d vs %d", ErrGroupCountMismatch, len(source), len(increment))
	}

	out := make([]compound.Group, len(source))
	for i := range source {
		out[i] = compound.NewGroup(Merge(source[i].Entries, increment[i].Entries, c.order))
	}
	return out, nil
}

func (c *Combiner) check(r *compound.Result) error {
	for gi, g := range r.Groups() {
		for _, e := range g.Entries {
			if err := c.spec.Check(e); err != nil {
				return fmt.Errorf("group %d: %w", gi, err)
			}
		}
	}
	return nil
}

// maxScore ignores NaN, which field-sorted shards report when they do not track scores.
func maxScore(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	default:
		return math.Max(a, b)
	}
}
