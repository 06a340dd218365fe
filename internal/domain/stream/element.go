// Package stream encodes several sub-query ranked lists into one flat list and back.
//
// A flat list looks like
//
//	Boundary, <group 1>, Delimiter, <group 2>, ..., Delimiter, <group N>, Boundary
//
// Markers are explicit element kinds, so no document score can ever be mistaken for one.
package stream

import "github.com/kailas-cloud/hybridex/internal/domain/rank"

// Kind tags a stream element.
type Kind uint8

// Element kinds.
const (
	KindEntry Kind = iota
	KindBoundary
	KindDelimiter
)

func (k Kind) String() string {
	switch k {
	case KindBoundary:
		return "boundary"
	case KindDelimiter:
		return "delimiter"
	default:
		return "entry"
	}
}

// Element is one item of a flat stream: a boundary, a group delimiter, or a ranked entry.
type Element struct {
	kind  Kind
	entry rank.Entry
}

// Boundary returns the marker that opens and closes a stream.
func Boundary() Element { return Element{kind: KindBoundary} }

// Delimiter returns the marker that separates two sub-query groups.
func Delimiter() Element { return Element{kind: KindDelimiter} }

// Of wraps a ranked entry.
func Of(e rank.Entry) Element { return Element{kind: KindEntry, entry: e} }

// Kind returns the element kind.
func (el Element) Kind() Kind { return el.kind }

// Entry returns the wrapped entry; ok is false for markers.
func (el Element) Entry() (e rank.Entry, ok bool) {
	if el.kind != KindEntry {
		return rank.Entry{}, false
	}
	return el.entry, true
}
