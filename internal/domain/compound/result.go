// Package compound holds the per-sub-query grouped view of one shard's ranked output,
// or of the cross-shard aggregate.
package compound

import (
	"math"

	"github.com/kailas-cloud/hybridex/internal/domain/hits"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
)

// Group is the ranked list of one sub-query.
type Group struct {
	Hits    hits.TotalHits
	Entries []rank.Entry
}

// NewGroup wraps fully retrieved entries; the hit count is exact and equals their number.
func NewGroup(entries []rank.Entry) Group {
	return Group{Hits: hits.Exactly(int64(len(entries))), Entries: entries}
}

// Result is the decoded, per-sub-query grouped form of a ranked list.
// Groups are ordered the way sub-queries were declared in the hybrid query.
type Result struct {
	totalHits hits.TotalHits
	groups    []Group
}

// New creates a result. A nil groups slice means the shard matched nothing.
func New(total hits.TotalHits, groups []Group) *Result {
	return &Result{totalHits: total, groups: groups}
}

// TotalHits returns the governing hit count.
func (r *Result) TotalHits() hits.TotalHits { return r.totalHits }

// SetTotalHits replaces the governing hit count.
func (r *Result) SetTotalHits(t hits.TotalHits) { r.totalHits = t }

// Groups returns the per-sub-query groups. Callers must not modify them.
func (r *Result) Groups() []Group { return r.groups }

// SetGroups replaces the per-sub-query groups.
func (r *Result) SetGroups(groups []Group) { r.groups = groups }

// Len returns the number of sub-query groups.
func (r *Result) Len() int { return len(r.groups) }

// Representative returns a deep copy of the longest group's entries; the first group wins ties.
// The copy is independent of the result and safe to mutate.
func (r *Result) Representative() []rank.Entry {
	longest := -1
	maxLen := -1
	for i, g := range r.groups {
		if len(g.Entries) > maxLen {
			maxLen = len(g.Entries)
			longest = i
		}
	}
	if longest < 0 {
		return []rank.Entry{}
	}
	return rank.CloneAll(r.groups[longest].Entries)
}

// AssignShard stamps every entry with the index of the shard it came from.
func (r *Result) AssignShard(shard int) {
	for gi := range r.groups {
		entries := r.groups[gi].Entries
		for i := range entries {
			entries[i].Shard = shard
		}
	}
}

// MaxScore returns the highest entry score, ignoring NaN. It is NaN when no entry has a score.
func (r *Result) MaxScore() float64 {
	best := math.NaN()
	for _, g := range r.groups {
		for _, e := range g.Entries {
			if math.IsNaN(e.Score) {
				continue
			}
			if math.IsNaN(best) || e.Score > best {
				best = e.Score
			}
		}
	}
	return best
}
