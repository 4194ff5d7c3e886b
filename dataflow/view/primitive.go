package view

import (
	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow"
)

// Primitive is an opaque external function. It can serve as a join row
// generator (Rows), as an aggregate reducer (Reduce), or both; a nil function
// means the primitive does not support that role.
//
// Both functions receive arguments already resolved by the evaluator. They
// must be pure and total, including over empty groups: the evaluator may call
// them in any order and any number of times.
type Primitive struct {
	Name   string
	Rows   func(args []dataflow.Value) ([]dataflow.Tuple, error)
	Reduce func(args []dataflow.Value, group []dataflow.Tuple) (dataflow.Value, error)
}

func (p *Primitive) String() string {
	if p == nil {
		return "<nil primitive>"
	}
	return p.Name
}

func (p *Primitive) rows(args []dataflow.Value) ([]dataflow.Tuple, error) {
	rows, err := p.Rows(args)
	if err != nil {
		return nil, errors.Wrapf(err, "primitive %s", p.Name)
	}
	return rows, nil
}

func (p *Primitive) reduce(args []dataflow.Value, group []dataflow.Tuple) (dataflow.Value, error) {
	v, err := p.Reduce(args, group)
	if err != nil {
		return nil, errors.Wrapf(err, "primitive %s", p.Name)
	}
	if v == nil {
		return nil, errors.Newf("primitive %s reduced to nil", p.Name)
	}
	return v, nil
}

func validateJoinPrimitive(p *Primitive) error {
	if p == nil || p.Rows == nil {
		return dataflow.ShapeErrorf("primitive %s cannot be used as a join source", p)
	}
	return nil
}

func validateReducer(p *Primitive) error {
	if p == nil || p.Reduce == nil {
		return dataflow.ShapeErrorf("primitive %s cannot be used as a reducer", p)
	}
	return nil
}
