package dataflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind identifies the variant of a Value. Kinds are ordered: values of a lower
// kind sort before values of a higher kind.
type Kind byte

const (
	KindBool Kind = iota
	KindString
	KindFloat
	KindTuple
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindTuple:
		return "tuple"
	case KindRelation:
		return "relation"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Value is a totally ordered, immutable datum. The set of implementations is
// closed: Bool, String, Float, Tuple and *Relation.
type Value interface {
	Kind() Kind
	String() string
	isValue()
}

// Bool is a boolean Value.
type Bool bool

// String is a string Value.
type String string

// Float is a 64-bit floating point Value. All numbers are Floats.
type Float float64

// Tuple is a fixed-arity ordered sequence of Values. A Tuple is both a row of a
// Relation and, nested inside another Tuple, a Value of its own.
type Tuple []Value

func (Bool) Kind() Kind      { return KindBool }
func (String) Kind() Kind    { return KindString }
func (Float) Kind() Kind     { return KindFloat }
func (Tuple) Kind() Kind     { return KindTuple }
func (*Relation) Kind() Kind { return KindRelation }

func (Bool) isValue()      {}
func (String) isValue()    {}
func (Float) isValue()     {}
func (Tuple) isValue()     {}
func (*Relation) isValue() {}

func (b Bool) String() string {
	return strconv.FormatBool(bool(b))
}

func (s String) String() string {
	return strconv.Quote(string(s))
}

func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Arity returns the number of columns of the tuple.
func (t Tuple) Arity() int {
	return len(t)
}

// Equal reports whether two tuples are structurally equal.
func (t Tuple) Equal(other Tuple) bool {
	return CompareTuples(t, other) == 0
}

// Index returns the i-th element of a Tuple-valued Value. Indexing any other
// variant, or indexing out of range, is a shape error.
func Index(v Value, i int) (Value, error) {
	t, ok := v.(Tuple)
	if !ok {
		return nil, shapeErrorf("cannot index %s value %s", kindOf(v), v)
	}
	if i < 0 || i >= len(t) {
		return nil, shapeErrorf("index %d out of range for tuple of arity %d", i, len(t))
	}
	return t[i], nil
}

// ValueOf converts a Go value into a Value. Integers become Floats.
func ValueOf(x interface{}) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case float64:
		return Float(v), nil
	case float32:
		return Float(v), nil
	case int:
		return Float(v), nil
	case int64:
		return Float(v), nil
	case int32:
		return Float(v), nil
	case uint64:
		return Float(v), nil
	case []interface{}:
		return NewTuple(v...)
	case nil:
		return nil, errors.New("cannot convert nil to a value")
	default:
		return nil, errors.Newf("cannot convert %T to a value", x)
	}
}

// NewTuple builds a Tuple from Go values using ValueOf.
func NewTuple(xs ...interface{}) (Tuple, error) {
	t := make(Tuple, len(xs))
	for i, x := range xs {
		v, err := ValueOf(x)
		if err != nil {
			return nil, errors.Wrapf(err, "tuple element %d", i)
		}
		t[i] = v
	}
	return t, nil
}

// MustTuple is like NewTuple but panics on unsupported values. Intended for
// tests and literal data.
func MustTuple(xs ...interface{}) Tuple {
	t, err := NewTuple(xs...)
	if err != nil {
		panic(err)
	}
	return t
}

// AsFloat returns the numeric content of a Float value.
func AsFloat(v Value) (float64, error) {
	f, ok := v.(Float)
	if !ok {
		return 0, shapeErrorf("expected float, got %s value %s", kindOf(v), v)
	}
	return float64(f), nil
}

// AsString returns the content of a String value.
func AsString(v Value) (string, error) {
	s, ok := v.(String)
	if !ok {
		return "", shapeErrorf("expected string, got %s value %s", kindOf(v), v)
	}
	return string(s), nil
}

func kindOf(v Value) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}
