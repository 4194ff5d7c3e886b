// Package view defines the four kinds of dataflow views and how each one
// computes its output relation from the outputs of its upstream nodes.
package view

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow"
)

// Kind identifies a view variant.
type Kind int

const (
	KindTable Kind = iota
	KindUnion
	KindJoin
	KindAggregate
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindUnion:
		return "union"
	case KindJoin:
		return "join"
	case KindAggregate:
		return "aggregate"
	default:
		return fmt.Sprintf("view(%d)", int(k))
	}
}

// View is a pure function from upstream relations to a derived relation. The
// set of views is closed: *Table, *Union, *Join and *Aggregate.
type View interface {
	Kind() Kind
	// Validate checks the definition against the number of upstream inputs
	// it will be given.
	Validate(inputs int) error
	isView()
}

func (*Table) isView()     {}
func (*Union) isView()     {}
func (*Join) isView()      {}
func (*Aggregate) isView() {}

// Run evaluates v against its previous output and the current upstream
// outputs. The boolean is false for tables, which are never recomputed; old
// is then returned unchanged. The new relation keeps old's display fields.
func Run(v View, old *dataflow.Relation, inputs []*dataflow.Relation) (*dataflow.Relation, bool, error) {
	var (
		out *dataflow.Relation
		err error
	)
	switch v := v.(type) {
	case *Table:
		return old, false, nil
	case *Union:
		out, err = v.run(old.Fields(), inputs)
	case *Join:
		out, err = v.run(old.Fields(), inputs)
	case *Aggregate:
		out, err = v.run(old.Fields(), inputs)
	default:
		return nil, false, errors.AssertionFailedf("unknown view type %T", v)
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "%s view", v.Kind())
	}
	return out, true, nil
}

// Shaper validates or reshapes a tuple written to a table.
type Shaper func(dataflow.Tuple) (dataflow.Tuple, error)

// Table is a base relation mutated only by external writers.
type Table struct {
	// Fields are the display names of the columns.
	Fields []string
	// Arity, when positive, is enforced on every written tuple.
	Arity int
	// Insert and Remove optionally shape tuples before they are written.
	Insert Shaper
	Remove Shaper
}

// Kind implements View.
func (*Table) Kind() Kind { return KindTable }

// Validate implements View. Tables have no inputs.
func (t *Table) Validate(inputs int) error {
	if inputs != 0 {
		return dataflow.ShapeErrorf("table has %d inputs, expected none", inputs)
	}
	if t.Arity > 0 && len(t.Fields) > 0 && len(t.Fields) != t.Arity {
		return dataflow.ShapeErrorf("table declares %d fields for arity %d", len(t.Fields), t.Arity)
	}
	return nil
}

// ShapeInsert prepares a tuple for insertion.
func (t *Table) ShapeInsert(tuple dataflow.Tuple) (dataflow.Tuple, error) {
	return t.shape(t.Insert, tuple)
}

// ShapeRemove prepares a tuple for removal.
func (t *Table) ShapeRemove(tuple dataflow.Tuple) (dataflow.Tuple, error) {
	return t.shape(t.Remove, tuple)
}

func (t *Table) shape(fn Shaper, tuple dataflow.Tuple) (dataflow.Tuple, error) {
	if fn != nil {
		var err error
		if tuple, err = fn(tuple); err != nil {
			return nil, err
		}
	}
	if t.Arity > 0 && len(tuple) != t.Arity {
		return nil, dataflow.ShapeErrorf("tuple %s has arity %d, table expects %d", tuple, len(tuple), t.Arity)
	}
	// Writers keep ownership of what they pass in.
	owned := make(dataflow.Tuple, len(tuple))
	copy(owned, tuple)
	return owned, nil
}
