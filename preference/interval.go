// Package preference implements conditional preference theories: rules
// built from interval predicates, dominance testing between tuples, theory
// consistency checking, and the temporal rule layer that evaluates
// history-dependent conditions against an entity's sequence.
package preference

import (
	"github.com/streampref/streampref/tuple"
)

// Interval is a contiguous range of attribute values. Both bounds are
// optional; a point interval (left == right, both closed) represents an
// equality predicate. All predicate forms of the query language reduce to
// an interval: `a = 5`, `a < 5`, `1 <= a < 9` and so on.
type Interval struct {
	hasLeft     bool
	hasRight    bool
	left        tuple.Value
	right       tuple.Value
	leftClosed  bool
	rightClosed bool
}

// Exactly creates a point interval for an equality predicate
func Exactly(v tuple.Value) Interval {
	return Interval{
		hasLeft: true, hasRight: true,
		left: v, right: v,
		leftClosed: true, rightClosed: true,
	}
}

// LessThan creates the interval for `attr < v`
func LessThan(v tuple.Value) Interval {
	return Interval{hasRight: true, right: v}
}

// AtMost creates the interval for `attr <= v`
func AtMost(v tuple.Value) Interval {
	return Interval{hasRight: true, right: v, rightClosed: true}
}

// GreaterThan creates the interval for `attr > v`
func GreaterThan(v tuple.Value) Interval {
	return Interval{hasLeft: true, left: v}
}

// AtLeast creates the interval for `attr >= v`
func AtLeast(v tuple.Value) Interval {
	return Interval{hasLeft: true, left: v, leftClosed: true}
}

// Between creates a bounded interval `lo OP attr OP hi`. Closed flags
// select between < and <= on each side. A degenerate closed interval with
// lo == hi collapses to a point interval.
func Between(lo tuple.Value, loClosed bool, hi tuple.Value, hiClosed bool) Interval {
	iv := Interval{
		hasLeft: true, hasRight: true,
		left: lo, right: hi,
		leftClosed: loClosed, rightClosed: hiClosed,
	}
	if lo.Equal(hi) && loClosed && hiClosed {
		return Exactly(lo)
	}
	return iv
}

// IsPoint reports whether the interval holds a single value
func (iv Interval) IsPoint() bool {
	return iv.hasLeft && iv.hasRight && iv.left.Equal(iv.right) &&
		iv.leftClosed && iv.rightClosed
}

// Equal reports structural interval equality
func (iv Interval) Equal(o Interval) bool {
	return iv == o
}

// Consistent reports whether the interval can contain any value
func (iv Interval) Consistent() (bool, error) {
	if !iv.hasLeft || !iv.hasRight {
		return true, nil
	}
	cmp, err := iv.left.Compare(iv.right)
	if err != nil {
		return false, err
	}
	if cmp > 0 {
		return false, nil
	}
	if cmp == 0 && !(iv.leftClosed && iv.rightClosed) {
		return false, nil
	}
	return true, nil
}

// Contains reports whether a value lies inside the interval
func (iv Interval) Contains(v tuple.Value) (bool, error) {
	if iv.hasLeft {
		cmp, err := iv.left.Compare(v)
		if err != nil {
			return false, err
		}
		if cmp > 0 || (cmp == 0 && !iv.leftClosed) {
			return false, nil
		}
	}
	if iv.hasRight {
		cmp, err := iv.right.Compare(v)
		if err != nil {
			return false, err
		}
		if cmp < 0 || (cmp == 0 && !iv.rightClosed) {
			return false, nil
		}
	}
	return true, nil
}

// leftInside reports whether other's left limit falls strictly inside iv.
// Used by SplitBy to detect overlap.
func (iv Interval) leftInside(other Interval) (bool, error) {
	if !other.hasLeft {
		return false, nil
	}
	// iv must extend to the left of other's left limit.
	if iv.hasLeft {
		cmp, err := iv.left.Compare(other.left)
		if err != nil {
			return false, err
		}
		if cmp > 0 {
			return false, nil
		}
		if cmp == 0 && !(iv.leftClosed && !other.leftClosed) {
			return false, nil
		}
	}
	// iv must extend to other's left limit on the right.
	if iv.hasRight {
		cmp, err := iv.right.Compare(other.left)
		if err != nil {
			return false, err
		}
		if cmp < 0 {
			return false, nil
		}
		if cmp == 0 && !(iv.rightClosed && other.leftClosed) {
			return false, nil
		}
	}
	return true, nil
}

// rightInside reports whether other's right limit falls strictly inside iv
func (iv Interval) rightInside(other Interval) (bool, error) {
	if !other.hasRight {
		return false, nil
	}
	if iv.hasRight {
		cmp, err := iv.right.Compare(other.right)
		if err != nil {
			return false, err
		}
		if cmp < 0 {
			return false, nil
		}
		if cmp == 0 && !(iv.rightClosed && !other.rightClosed) {
			return false, nil
		}
	}
	if iv.hasLeft {
		cmp, err := iv.left.Compare(other.right)
		if err != nil {
			return false, err
		}
		if cmp > 0 {
			return false, nil
		}
		if cmp == 0 && !(iv.leftClosed && other.rightClosed) {
			return false, nil
		}
	}
	return true, nil
}

// SplitBy splits the interval where other's limits fall inside it,
// producing disjoint pieces. An empty result means no overlap requiring a
// split. Theory construction uses this to rewrite overlapping rule
// intervals into disjoint ones.
func (iv Interval) SplitBy(other Interval) ([]Interval, error) {
	if iv.Equal(other) {
		return nil, nil
	}
	if ok, err := iv.leftInside(other); err != nil {
		return nil, err
	} else if ok {
		lower := Interval{
			hasLeft: iv.hasLeft, left: iv.left, leftClosed: iv.leftClosed,
			hasRight: true, right: other.left, rightClosed: !other.leftClosed,
		}
		upper := Interval{
			hasLeft: true, left: other.left, leftClosed: other.leftClosed,
			hasRight: iv.hasRight, right: iv.right, rightClosed: iv.rightClosed,
		}
		return []Interval{normalize(lower), normalize(upper)}, nil
	}
	if ok, err := iv.rightInside(other); err != nil {
		return nil, err
	} else if ok {
		lower := Interval{
			hasLeft: iv.hasLeft, left: iv.left, leftClosed: iv.leftClosed,
			hasRight: true, right: other.right, rightClosed: other.rightClosed,
		}
		upper := Interval{
			hasLeft: true, left: other.right, leftClosed: !other.rightClosed,
			hasRight: iv.hasRight, right: iv.right, rightClosed: iv.rightClosed,
		}
		return []Interval{normalize(lower), normalize(upper)}, nil
	}
	return nil, nil
}

func normalize(iv Interval) Interval {
	if iv.hasLeft && iv.hasRight && iv.left.Equal(iv.right) &&
		iv.leftClosed && iv.rightClosed {
		return Exactly(iv.left)
	}
	return iv
}

// Format renders the interval as a predicate over the given attribute,
// e.g. "speed=3" or "1<speed<=9". Used in signatures and error messages.
func (iv Interval) Format(attr string) string {
	switch {
	case iv.IsPoint():
		return attr + "=" + iv.left.Format()
	case !iv.hasLeft && iv.hasRight:
		op := "<"
		if iv.rightClosed {
			op = "<="
		}
		return attr + op + iv.right.Format()
	case iv.hasLeft && !iv.hasRight:
		op := ">"
		if iv.leftClosed {
			op = ">="
		}
		return attr + op + iv.left.Format()
	case !iv.hasLeft && !iv.hasRight:
		return attr
	default:
		lop := "<"
		if iv.leftClosed {
			lop = "<="
		}
		rop := "<"
		if iv.rightClosed {
			rop = "<="
		}
		return iv.left.Format() + lop + attr + rop + iv.right.Format()
	}
}
