package rank

import (
	"cmp"
	"errors"
	"fmt"
)

// ErrKindMismatch signals an entry whose kind does not match the active ranking mode.
var ErrKindMismatch = errors.New("ranked entry kind mismatch")

// Order is the direction of a sort field.
type Order string

// Sort directions.
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// IsValid checks if the order is one of the supported values.
func (o Order) IsValid() bool {
	return o == Asc || o == Desc
}

// SortField describes one field of a multi-field sort.
type SortField struct {
	Name  string
	Kind  Kind
	Order Order
}

// Comparator orders two entries. A negative result means a ranks before b.
type Comparator func(a, b Entry) int

// Spec is the ranking mode of one search request: relevance order when it has no
// sort fields, multi-field sort order otherwise.
type Spec struct {
	fields []SortField
}

// ByRelevance returns the relevance ranking spec.
func ByRelevance() Spec { return Spec{} }

// BySort validates sort fields and returns a field-sort spec. Fields are listed in
// priority order; an empty order defaults to ascending.
func BySort(fields ...SortField) (Spec, error) {
	if len(fields) == 0 {
		return Spec{}, fmt.Errorf("at least one sort field is required")
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]SortField, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return Spec{}, fmt.Errorf("sort field %d: name is required", i)
		}
		if _, dup := seen[f.Name]; dup {
			return Spec{}, fmt.Errorf("duplicate sort field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Order == "" {
			f.Order = Asc
		}
		if !f.Order.IsValid() {
			return Spec{}, fmt.Errorf("sort field %q: invalid order %q", f.Name, f.Order)
		}
		if f.Kind == KindNull {
			return Spec{}, fmt.Errorf("sort field %q: type is required", f.Name)
		}
		out[i] = f
	}
	return Spec{fields: out}, nil
}

// IsSorted reports whether the spec uses field sort.
func (s Spec) IsSorted() bool { return len(s.fields) > 0 }

// Fields returns a copy of the sort fields.
func (s Spec) Fields() []SortField {
	out := make([]SortField, len(s.fields))
	copy(out, s.fields)
	return out
}

// Check verifies an entry matches the ranking mode.
func (s Spec) Check(e Entry) error {
	if !s.IsSorted() {
		if e.IsSorted() {
			return fmt.Errorf("doc %d: sort values in relevance mode: %w", e.Doc, ErrKindMismatch)
		}
		return nil
	}
	if !e.IsSorted() {
		return fmt.Errorf("doc %d: missing sort values in field sort mode: %w", e.Doc, ErrKindMismatch)
	}
	if len(e.Fields) != len(s.fields) {
		return fmt.Errorf("doc %d: %d sort values for %d sort fields: %w",
			e.Doc, len(e.Fields), len(s.fields), ErrKindMismatch)
	}
	return nil
}

// Comparator builds the rank order for the spec. Build it once per request.
func (s Spec) Comparator() Comparator {
	if !s.IsSorted() {
		return ByScore
	}
	fields := s.Fields()
	return func(a, b Entry) int {
		for i, f := range fields {
			if c := compareField(a.Fields[i], b.Fields[i], f.Order); c != 0 {
				return c
			}
		}
		return 0
	}
}

// ByScore orders entries by descending score. NaN ranks last.
func ByScore(a, b Entry) int {
	return cmp.Compare(b.Score, a.Score)
}

// compareField applies the direction to non-null values; missing values rank last either way.
func compareField(a, b Value, order Order) int {
	switch {
	case a.IsNull() && b.IsNull():
		return 0
	case a.IsNull():
		return 1
	case b.IsNull():
		return -1
	}
	c := compareValues(a, b)
	if order == Desc {
		return -c
	}
	return c
}
