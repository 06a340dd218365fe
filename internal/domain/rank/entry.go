package rank

// Entry is one scored document reference.
// Fields is nil for relevance-ranked entries and holds one value per sort field otherwise.
type Entry struct {
	Doc    int
	Shard  int
	Score  float64
	Fields []Value
}

// NewScored creates a relevance-ranked entry.
func NewScored(doc int, score float64) Entry {
	return Entry{Doc: doc, Score: score}
}

// NewSorted creates a field-sorted entry. A nil values slice is replaced with an empty one
// so the entry still reports as field-sorted.
func NewSorted(doc int, score float64, values ...Value) Entry {
	if values == nil {
		values = []Value{}
	}
	return Entry{Doc: doc, Score: score, Fields: values}
}

// IsSorted reports whether the entry carries sort values.
func (e Entry) IsSorted() bool { return e.Fields != nil }

// Clone returns a copy that shares no memory with e.
func (e Entry) Clone() Entry {
	if e.Fields != nil {
		fields := make([]Value, len(e.Fields))
		copy(fields, e.Fields)
		e.Fields = fields
	}
	return e
}

// CloneAll deep-copies a slice of entries.
func CloneAll(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
