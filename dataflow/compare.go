package dataflow

import (
	"cmp"
	"strings"
)

// Compare compares two values and returns:
//
//	-1 if left < right
//	 0 if left == right
//	 1 if left > right
//
// Values of different kinds order by kind (bool < string < float < tuple <
// relation) and are never coerced into each other. Floats follow cmp.Compare:
// NaN sorts before every other float and all NaNs are equal, which keeps the
// order total. A nil Value sorts before everything.
func Compare(left, right Value) int {
	if left == nil || right == nil {
		switch {
		case left == nil && right == nil:
			return 0
		case left == nil:
			return -1
		default:
			return 1
		}
	}

	if lk, rk := left.Kind(), right.Kind(); lk != rk {
		return cmp.Compare(lk, rk)
	}

	switch l := left.(type) {
	case Bool:
		r := right.(Bool)
		switch {
		case l == r:
			return 0
		case !bool(l):
			return -1
		default:
			return 1
		}
	case String:
		return strings.Compare(string(l), string(right.(String)))
	case Float:
		return cmp.Compare(float64(l), float64(right.(Float)))
	case Tuple:
		return CompareTuples(l, right.(Tuple))
	case *Relation:
		return compareRelations(l, right.(*Relation))
	}
	return 0
}

// Equal reports whether two values are structurally equal.
func Equal(left, right Value) bool {
	return Compare(left, right) == 0
}

// CompareTuples orders tuples lexicographically; a proper prefix sorts first.
func CompareTuples(left, right Tuple) int {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		if c := Compare(left[i], right[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(left), len(right))
}

// comparePrefix compares the first len(prefix) columns of row against prefix.
// The caller guarantees len(row) >= len(prefix).
func comparePrefix(row, prefix Tuple) int {
	return CompareTuples(row[:len(prefix)], prefix)
}

// ComparePrefix compares the leading columns of row against prefix. Rows
// shorter than the prefix are a shape error.
func ComparePrefix(row, prefix Tuple) (int, error) {
	if len(row) < len(prefix) {
		return 0, shapeErrorf("row of arity %d is shorter than key of arity %d", len(row), len(prefix))
	}
	return comparePrefix(row, prefix), nil
}

// compareRelations orders relations by their sorted tuples, then by size.
func compareRelations(left, right *Relation) int {
	if left == right {
		return 0
	}
	lt, rt := left.Tuples(), right.Tuples()
	n := len(lt)
	if len(rt) < n {
		n = len(rt)
	}
	for i := 0; i < n; i++ {
		if c := CompareTuples(lt[i], rt[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(lt), len(rt))
}
