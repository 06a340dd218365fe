package hits

import "fmt"

// Relation tells whether a hit count is precise or a lower bound.
type Relation string

// Relation constants.
const (
	// Exact means the count is precise.
	Exact Relation = "eq"
	// AtLeast means the true count is greater than or equal to the reported value.
	AtLeast Relation = "gte"
)

// IsValid checks if the relation is one of the supported values.
func (r Relation) IsValid() bool {
	return r == Exact || r == AtLeast
}

// TotalHits is a hit count paired with its relation.
type TotalHits struct {
	Value    int64
	Relation Relation
}

// Exactly returns a precise hit count.
func Exactly(n int64) TotalHits {
	return TotalHits{Value: n, Relation: Exact}
}

// AtLeastOf returns a lower-bound hit count.
func AtLeastOf(n int64) TotalHits {
	return TotalHits{Value: n, Relation: AtLeast}
}

// IsZero reports whether nothing matched.
func (t TotalHits) IsZero() bool { return t.Value == 0 }

// IsExact reports whether the count is precise. An empty relation counts as exact.
func (t TotalHits) IsExact() bool { return t.Relation != AtLeast }

// Add sums two counts. Once either side is a lower bound the sum is a lower bound too.
func (t TotalHits) Add(o TotalHits) TotalHits {
	rel := Exact
	if !t.IsExact() || !o.IsExact() {
		rel = AtLeast
	}
	return TotalHits{Value: t.Value + o.Value, Relation: rel}
}

func (t TotalHits) String() string {
	if t.IsExact() {
		return fmt.Sprintf("%d", t.Value)
	}
	return fmt.Sprintf(">=%d", t.Value)
}
