package view

import (
	"fmt"

	"github.com/wbrown/janus-flow/dataflow"
)

// JoinSource is one binding step of a join: an upstream relation or a
// primitive generating rows from the state bound so far.
type JoinSource interface {
	fmt.Stringer
	isJoinSource()
}

// RelationSource iterates the tuples of upstream input Input in sorted order.
type RelationSource struct {
	Input int
}

// PrimitiveSource calls a primitive with arguments resolved against the
// current state and the join's constants.
type PrimitiveSource struct {
	Primitive *Primitive
	Args      []Ref
}

func (RelationSource) isJoinSource()  {}
func (PrimitiveSource) isJoinSource() {}

func (s RelationSource) String() string {
	return fmt.Sprintf("input %d", s.Input)
}

func (s PrimitiveSource) String() string {
	return fmt.Sprintf("%s%v", s.Primitive, s.Args)
}

// Join enumerates bindings of its sources in declared order, nested-loop
// style, pruning with the constraints of each step as soon as that step binds.
// Every complete binding is projected through Select into the output.
//
// The declared order is the evaluation order; nothing is reordered.
type Join struct {
	Constants []dataflow.Value
	Sources   []JoinSource
	// Constraints[i] is checked right after Sources[i] binds. It may be
	// shorter than Sources; missing steps have no constraints.
	Constraints [][]Constraint
	Select      OutputSelector
}

// Kind implements View.
func (*Join) Kind() Kind { return KindJoin }

// Validate implements View.
func (j *Join) Validate(inputs int) error {
	if len(j.Constraints) > len(j.Sources) {
		return dataflow.ShapeErrorf("join has %d constraint steps for %d sources", len(j.Constraints), len(j.Sources))
	}
	for i, src := range j.Sources {
		switch s := src.(type) {
		case RelationSource:
			if s.Input < 0 || s.Input >= inputs {
				return dataflow.ShapeErrorf("join source %d reads input %d of %d", i, s.Input, inputs)
			}
		case PrimitiveSource:
			if err := validateJoinPrimitive(s.Primitive); err != nil {
				return err
			}
			for _, r := range s.Args {
				if err := r.validate(j.Constants); err != nil {
					return err
				}
			}
		default:
			return dataflow.ShapeErrorf("join source %d has unknown type %T", i, src)
		}
	}
	for _, step := range j.Constraints {
		for _, c := range step {
			if err := c.validate(); err != nil {
				return err
			}
		}
	}
	return j.Select.validate(j.Constants)
}

func (j *Join) run(fields []string, inputs []*dataflow.Relation) (*dataflow.Relation, error) {
	if err := j.Validate(len(inputs)); err != nil {
		return nil, err
	}
	levels := make([]level, len(j.Sources))
	for i, src := range j.Sources {
		if i < len(j.Constraints) {
			levels[i].constraints = j.Constraints[i]
		}
		switch s := src.(type) {
		case RelationSource:
			levels[i].candidates = fixed(inputs[s.Input].Tuples())
		case PrimitiveSource:
			levels[i].candidates = j.generator(s)
		}
	}

	out := dataflow.NewBuilder(fields...)
	err := enumerate(levels, make([]dataflow.Value, 0, 16), func(state []dataflow.Value) error {
		row, err := j.Select.Select(j.Constants, state)
		if err != nil {
			return err
		}
		_, err = out.Add(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Build(), nil
}

// generator materializes the primitive's rows for the current binding. The
// rows are owned by the enumeration, never aliased to state.
func (j *Join) generator(s PrimitiveSource) func([]dataflow.Value) ([]dataflow.Tuple, error) {
	return func(state []dataflow.Value) ([]dataflow.Tuple, error) {
		args, err := resolveAll(s.Args, j.Constants, state)
		if err != nil {
			return nil, err
		}
		return s.Primitive.rows(args)
	}
}
