package result

import (
	"github.com/kailas-cloud/hybridex/internal/domain/hits"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
	"github.com/kailas-cloud/hybridex/internal/domain/stream"
)

// Result is a single combined search hit.
type Result struct {
	id    string
	shard int
	doc   int
	score float64
	sort  []rank.Value
}

// New creates a search result.
func New(id string, shard, doc int, score float64, sort []rank.Value) Result {
	return Result{id: id, shard: shard, doc: doc, score: score, sort: sort}
}

// ID returns the document key.
func (r *Result) ID() string { return r.id }

// Shard returns the index of the shard that produced the hit.
func (r *Result) Shard() int { return r.shard }

// Doc returns the shard-local document id.
func (r *Result) Doc() int { return r.doc }

// Score returns the combined score.
func (r *Result) Score() float64 { return r.score }

// Sort returns the sort values (nil in relevance mode).
func (r *Result) Sort() []rank.Value { return r.sort }

// Page is one page of combined hybrid results.
type Page struct {
	TotalHits hits.TotalHits
	// MaxScore is the best raw sub-query score across shards; NaN when no shard tracked scores.
	MaxScore float64
	Hits     []Result
	// SubQueryHits holds, per sub-query, how many entries survived the cross-shard merge.
	SubQueryHits []int64
	// Stream is the merged result re-encoded as one flat stream. Only aggregation fills it.
	Stream []stream.Element
}
