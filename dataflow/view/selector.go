package view

import (
	"fmt"

	"github.com/wbrown/janus-flow/dataflow"
)

// RowSelector reads the upstream relations and yields zero or more rows.
// Selectors must be pure: evaluation order between selectors is unspecified.
type RowSelector interface {
	Select(inputs []*dataflow.Relation) ([]dataflow.Tuple, error)
}

// RowSelectorFunc adapts a function to RowSelector.
type RowSelectorFunc func(inputs []*dataflow.Relation) ([]dataflow.Tuple, error)

// Select calls f(inputs).
func (f RowSelectorFunc) Select(inputs []*dataflow.Relation) ([]dataflow.Tuple, error) {
	return f(inputs)
}

// IndexSelect projects every tuple of one upstream relation onto a list of its
// columns. A nil Columns selects whole tuples.
type IndexSelect struct {
	Input   int
	Columns []int
}

// Select implements RowSelector.
func (s IndexSelect) Select(inputs []*dataflow.Relation) ([]dataflow.Tuple, error) {
	if s.Input < 0 || s.Input >= len(inputs) {
		return nil, dataflow.ShapeErrorf("selector reads input %d of %d", s.Input, len(inputs))
	}
	rel := inputs[s.Input]
	if s.Columns == nil {
		return rel.Tuples(), nil
	}
	rows := make([]dataflow.Tuple, 0, rel.Len())
	var err error
	rel.Ascend(func(t dataflow.Tuple) bool {
		row := make(dataflow.Tuple, len(s.Columns))
		for i, col := range s.Columns {
			if col < 0 || col >= len(t) {
				err = dataflow.ShapeErrorf("selector column %d out of range for tuple %s", col, t)
				return false
			}
			row[i] = t[col]
		}
		rows = append(rows, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s IndexSelect) String() string {
	if s.Columns == nil {
		return fmt.Sprintf("input %d", s.Input)
	}
	return fmt.Sprintf("input %d %v", s.Input, s.Columns)
}

// Ref names one value available at a leaf of an enumeration: either a position
// in the bound state or an entry of the view's constant pool.
type Ref struct {
	Const bool
	Index int
}

// StateRef refers to position i of the bound state.
func StateRef(i int) Ref { return Ref{Index: i} }

// ConstRef refers to entry i of the constant pool.
func ConstRef(i int) Ref { return Ref{Const: true, Index: i} }

// StateRefs returns state references for positions 0..n-1.
func StateRefs(n int) []Ref {
	refs := make([]Ref, n)
	for i := range refs {
		refs[i] = StateRef(i)
	}
	return refs
}

func (r Ref) String() string {
	if r.Const {
		return fmt.Sprintf("const[%d]", r.Index)
	}
	return fmt.Sprintf("$%d", r.Index)
}

// Resolve looks the reference up.
func (r Ref) Resolve(constants, state []dataflow.Value) (dataflow.Value, error) {
	src, what := state, "bound state"
	if r.Const {
		src, what = constants, "constant pool"
	}
	if r.Index < 0 || r.Index >= len(src) {
		return nil, dataflow.ShapeErrorf("%s refers past %s of width %d", r, what, len(src))
	}
	return src[r.Index], nil
}

func (r Ref) validate(constants []dataflow.Value) error {
	if r.Index < 0 {
		return dataflow.ShapeErrorf("%s has negative index", r)
	}
	if r.Const && r.Index >= len(constants) {
		return dataflow.ShapeErrorf("%s refers past constant pool of size %d", r, len(constants))
	}
	return nil
}

func resolveAll(refs []Ref, constants, state []dataflow.Value) ([]dataflow.Value, error) {
	out := make([]dataflow.Value, len(refs))
	for i, r := range refs {
		v, err := r.Resolve(constants, state)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// OutputSelector builds one output tuple from the bound state, extracting
// referenced positions and injecting constants.
type OutputSelector []Ref

// Select applies the selector to the bound state.
func (s OutputSelector) Select(constants, state []dataflow.Value) (dataflow.Tuple, error) {
	vals, err := resolveAll(s, constants, state)
	if err != nil {
		return nil, err
	}
	return dataflow.Tuple(vals), nil
}

func (s OutputSelector) validate(constants []dataflow.Value) error {
	for _, r := range s {
		if err := r.validate(constants); err != nil {
			return err
		}
	}
	return nil
}

// ScalarRef indexes the scalar scope of an aggregate group: the aggregate's
// constants followed by the values of the outer tuple.
type ScalarRef int

// Resolve returns the referenced scalar.
func (r ScalarRef) Resolve(constants []dataflow.Value, outer dataflow.Tuple) (dataflow.Value, error) {
	i := int(r)
	switch {
	case i < 0:
		return nil, dataflow.ShapeErrorf("scalar reference %d is negative", i)
	case i < len(constants):
		return constants[i], nil
	case i-len(constants) < len(outer):
		return outer[i-len(constants)], nil
	}
	return nil, dataflow.ShapeErrorf("scalar reference %d past %d constants and outer tuple %s", i, len(constants), outer)
}

func resolveScalars(refs []ScalarRef, constants []dataflow.Value, outer dataflow.Tuple) ([]dataflow.Value, error) {
	out := make([]dataflow.Value, len(refs))
	for i, r := range refs {
		v, err := r.Resolve(constants, outer)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
