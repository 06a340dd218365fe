// Package combination turns per-sub-query ranked lists into one list of combined scores.
package combination

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/kailas-cloud/hybridex/internal/domain/compound"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
)

// ErrUnsupportedTechnique signals an unknown combination technique name.
var ErrUnsupportedTechnique = errors.New("provided combination technique is not supported")

// Technique is a score combination method.
type Technique uint8

// Supported techniques.
const (
	ArithmeticMean Technique = iota + 1
	RRF
)

// Default is used when a request names no technique.
const Default = ArithmeticMean

var techniques = map[string]Technique{
	"arithmetic_mean": ArithmeticMean,
	"rrf":             RRF,
}

// Parse converts a technique name into a Technique. An empty name selects Default.
func Parse(name string) (Technique, error) {
	if name == "" {
		return Default, nil
	}
	t, ok := techniques[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedTechnique, name)
	}
	return t, nil
}

func (t Technique) String() string {
	switch t {
	case ArithmeticMean:
		return "arithmetic_mean"
	case RRF:
		return "rrf"
	default:
		return fmt.Sprintf("technique(%d)", uint8(t))
	}
}

// Options tunes a combination run.
type Options struct {
	// Weights holds one weight per sub-query; empty means all weights are 1.
	Weights []float64
	// Spec orders the combined list. Field sort keeps sort order; relevance orders by combined score.
	Spec rank.Spec
}

type docKey struct {
	shard int
	doc   int
}

type candidate struct {
	entry  rank.Entry
	scores []float64
	ranks  []int
}

// Combine merges the groups of an aggregate into one list of unique documents.
// Entries carry the combined score; ties are broken by shard, then doc.
func (t Technique) Combine(groups []compound.Group, opts Options) ([]rank.Entry, error) {
	weights, err := normalizeWeights(opts.Weights, len(groups))
	if err != nil {
		return nil, err
	}

	order := make([]docKey, 0)
	byKey := make(map[docKey]*candidate)
	for gi, g := range groups {
		for pos, e := range g.Entries {
			k := docKey{shard: e.Shard, doc: e.Doc}
			c, ok := byKey[k]
			if !ok {
				c = &candidate{
					entry:  e.Clone(),
					scores: make([]float64, len(groups)),
					ranks:  make([]int, len(groups)),
				}
				byKey[k] = c
				order = append(order, k)
			}
			if c.ranks[gi] == 0 {
				c.scores[gi] = e.Score
				c.ranks[gi] = pos + 1
			}
		}
	}

	out := make([]rank.Entry, 0, len(order))
	for _, k := range order {
		c := byKey[k]
		e := c.entry
		switch t {
		case ArithmeticMean:
			e.Score = arithmeticMean(c.scores, weights)
		case RRF:
			e.Score = reciprocalRank(c.ranks, weights)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedTechnique, t)
		}
		out = append(out, e)
	}

	primary := rank.ByScore
	if opts.Spec.IsSorted() {
		primary = opts.Spec.Comparator()
	}
	slices.SortFunc(out, func(a, b rank.Entry) int {
		if c := primary(a, b); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Shard, b.Shard); c != 0 {
			return c
		}
		return cmp.Compare(a.Doc, b.Doc)
	})
	return out, nil
}

func normalizeWeights(weights []float64, groups int) ([]float64, error) {
	if len(weights) == 0 {
		out := make([]float64, groups)
		for i := range out {
			out[i] = 1
		}
		return out, nil
	}
	if len(weights) != groups {
		return nil, fmt.Errorf("got %d weights for %d sub-queries", len(weights), groups)
	}
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("weight %d is negative: %g", i, w)
		}
	}
	return weights, nil
}
