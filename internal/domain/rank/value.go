package rank

import (
	"cmp"
	"fmt"
	"strconv"
)

// Kind is the data type of a sort value.
type Kind uint8

// Sort value kinds.
const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
)

var kindNames = map[string]Kind{
	"int":     KindInt,
	"long":    KindInt,
	"float":   KindFloat,
	"double":  KindFloat,
	"string":  KindString,
	"keyword": KindString,
}

// ParseKind converts a field type name into a Kind.
func ParseKind(name string) (Kind, error) {
	k, ok := kindNames[name]
	if !ok {
		return KindNull, fmt.Errorf("unsupported sort field type %q", name)
	}
	return k, nil
}

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a typed sort value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Null returns a missing value.
func Null() Value { return Value{} }

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a floating point value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String returns a string value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// ParseValue converts raw text into a value of the given kind. Empty text is a missing value.
func ParseValue(k Kind, raw string) (Value, error) {
	if raw == "" {
		return Null(), nil
	}
	switch k {
	case KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Null(), fmt.Errorf("parse int sort value %q: %w", raw, err)
		}
		return Int(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Null(), fmt.Errorf("parse float sort value %q: %w", raw, err)
		}
		return Float(f), nil
	case KindString:
		return String(raw), nil
	default:
		return Null(), nil
	}
}

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is missing.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt returns the integer payload.
func (v Value) AsInt() int64 { return v.i }

// AsFloat returns the floating point payload.
func (v Value) AsFloat() float64 { return v.f }

// AsString returns the string payload.
func (v Value) AsString() string { return v.s }

// Any returns the payload as an untyped value (nil when missing).
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	default:
		return "null"
	}
}

// compareValues orders two non-null values in ascending order.
// Mismatched kinds fall back to kind order so the result stays deterministic.
func compareValues(a, b Value) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case KindInt:
		return cmp.Compare(a.i, b.i)
	case KindFloat:
		return cmp.Compare(a.f, b.f)
	case KindString:
		return cmp.Compare(a.s, b.s)
	default:
		return 0
	}
}
