package shard

import (
	"github.com/kailas-cloud/hybridex/internal/domain/hits"
	"github.com/kailas-cloud/hybridex/internal/domain/stream"
)

// Response is what one shard returns for a hybrid query: the flat sentinel stream, the
// shard's total hit count, its best score, and the table resolving shard-local doc ids.
type Response struct {
	Shard     int
	Stream    []stream.Element
	TotalHits hits.TotalHits
	MaxScore  float64
	Keys      []string
}

// Key resolves a shard-local doc id into a document key.
func (r *Response) Key(doc int) (string, bool) {
	if doc < 0 || doc >= len(r.Keys) {
		return "", false
	}
	return r.Keys[doc], true
}

// Interner assigns shard-local doc ids to document keys in first-seen order.
type Interner struct {
	ids  map[string]int
	keys []string
}

// NewInterner creates an empty Interner.
func NewInterner() *Interner {
	return &Interner{ids: make(map[string]int)}
}

// ID returns the doc id for key, assigning the next free id on first sight.
func (in *Interner) ID(key string) int {
	if id, ok := in.ids[key]; ok {
		return id
	}
	id := len(in.keys)
	in.ids[key] = id
	in.keys = append(in.keys, key)
	return id
}

// Keys returns the id-indexed key table.
func (in *Interner) Keys() []string { return in.keys }
