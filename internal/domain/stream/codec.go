package stream

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/hybridex/internal/domain/compound"
	"github.com/kailas-cloud/hybridex/internal/domain/hits"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
)

// ErrMalformed signals a flat list that breaks the boundary/delimiter layout.
var ErrMalformed = errors.New("malformed hybrid result stream")

// Encode flattens sub-query groups into one stream. Zero groups encode to an empty stream.
func Encode(groups [][]rank.Entry) []Element {
	if len(groups) == 0 {
		return []Element{}
	}
	size := len(groups) + 1
	for _, g := range groups {
		size += len(g)
	}

	out := make([]Element, 0, size)
	out = append(out, Boundary())
	for i, g := range groups {
		if i > 0 {
			out = append(out, Delimiter())
		}
		for _, e := range g {
			out = append(out, Of(e))
		}
	}
	return append(out, Boundary())
}

// EncodeResult flattens a compound result's groups.
func EncodeResult(r *compound.Result) []Element {
	groups := make([][]rank.Entry, r.Len())
	for i, g := range r.Groups() {
		groups[i] = g.Entries
	}
	return Encode(groups)
}

// Decode splits a flat stream back into per-sub-query groups. A stream shorter than two
// elements holds no groups: the shard matched nothing for any sub-query. Each group gets an
// exact hit count equal to its length; total is kept as the governing count.
func Decode(elems []Element, total hits.TotalHits, spec rank.Spec) (*compound.Result, error) {
	if len(elems) < 2 {
		return compound.New(total, []compound.Group{}), nil
	}
	if elems[0].Kind() != KindBoundary {
		return nil, fmt.Errorf("%w: element 0 is %s, want boundary", ErrMalformed, elems[0].Kind())
	}
	last := len(elems) - 1
	if elems[last].Kind() != KindBoundary {
		return nil, fmt.Errorf("%w: element %d is %s, want closing boundary", ErrMalformed, last, elems[last].Kind())
	}

	var groups []compound.Group
	current := make([]rank.Entry, 0)
	for i := 1; i <= last; i++ {
		el := elems[i]
		switch el.Kind() {
		case KindBoundary:
			if i != last {
				return nil, fmt.Errorf("%w: boundary at element %d before end of stream", ErrMalformed, i)
			}
			groups = append(groups, compound.NewGroup(current))
		case KindDelimiter:
			groups = append(groups, compound.NewGroup(current))
			current = make([]rank.Entry, 0)
		default:
			if err := spec.Check(el.entry); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			current = append(current, el.entry)
		}
	}
	return compound.New(total, groups), nil
}
