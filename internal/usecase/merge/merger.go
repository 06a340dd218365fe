// Package merge folds per-shard hybrid results into one aggregate.
package merge

import (
	"cmp"

	"github.com/kailas-cloud/hybridex/internal/domain/rank"
)

// Merge combines two sequences that are already ordered by order into one ordered sequence.
// Entries order equally are ranked by ascending doc id; when that ties too, source goes first.
// Nothing is deduplicated or truncated.
func Merge(source, increment []rank.Entry, order rank.Comparator) []rank.Entry {
	out := make([]rank.Entry, 0, len(source)+len(increment))
	i, j := 0, 0
	for i < len(source) && j < len(increment) {
		if compare(source[i], increment[j], order) <= 0 {
			out = append(out, source[i])
			i++
		} else {
			out = append(out, increment[j])
			j++
		}
	}
	out = append(out, source[i:]...)
	return append(out, increment[j:]...)
}

func compare(a, b rank.Entry, order rank.Comparator) int {
	if c := order(a, b); c != 0 {
		return c
	}
	return cmp.Compare(a.Doc, b.Doc)
}
