// Package tuple defines the value and tuple model shared by every
// StreamPref operator: typed attribute values, immutable tuples keyed by
// attribute name, and the per-tick insert/delete deltas the engine consumes.
package tuple

import (
	"fmt"
	"strconv"

	"github.com/streampref/streampref/errors"
)

// Kind identifies the type tag of a Value
type Kind int

const (
	// KindInt is a signed integer value
	KindInt Kind = iota
	// KindFloat is a floating point value
	KindFloat
	// KindString is a text value
	KindString
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a tagged union of integer, float and string. Comparisons are
// defined only between values of the same kind; comparing across kinds is a
// theory evaluation error, never a silent coercion.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Int creates an integer value
func Int(v int64) Value {
	return Value{kind: KindInt, i: v}
}

// Float creates a float value
func Float(v float64) Value {
	return Value{kind: KindFloat, f: v}
}

// String creates a string value
func String(v string) Value {
	return Value{kind: KindString, s: v}
}

// Kind returns the type tag of the value
func (v Value) Kind() Kind {
	return v.kind
}

// Int64 returns the integer payload (zero for other kinds)
func (v Value) Int64() int64 { return v.i }

// Float64 returns the float payload (zero for other kinds)
func (v Value) Float64() float64 { return v.f }

// Text returns the string payload (empty for other kinds)
func (v Value) Text() string { return v.s }

// Equal reports whether two values have the same kind and payload
func (v Value) Equal(o Value) bool {
	return v == o
}

// Compare orders two values of the same kind. It returns a negative,
// zero or positive result like strings.Compare. A kind mismatch returns
// a wrapped ErrTheoryEvaluation.
func (v Value) Compare(o Value) (int, error) {
	if v.kind != o.kind {
		return 0, fmt.Errorf("cannot compare %s with %s: %w",
			v.kind, o.kind, errors.ErrTheoryEvaluation)
	}
	switch v.kind {
	case KindInt:
		switch {
		case v.i < o.i:
			return -1, nil
		case v.i > o.i:
			return 1, nil
		}
	case KindFloat:
		switch {
		case v.f < o.f:
			return -1, nil
		case v.f > o.f:
			return 1, nil
		}
	case KindString:
		switch {
		case v.s < o.s:
			return -1, nil
		case v.s > o.s:
			return 1, nil
		}
	}
	return 0, nil
}

// Format returns a stable textual form used in signatures and logs
func (v Value) Format() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}
