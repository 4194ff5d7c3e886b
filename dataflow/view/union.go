package view

import (
	"github.com/wbrown/janus-flow/dataflow"
)

// Union is the set union of one row selector per upstream input.
type Union struct {
	Selectors []RowSelector
}

// Kind implements View.
func (*Union) Kind() Kind { return KindUnion }

// Validate implements View.
func (u *Union) Validate(inputs int) error {
	if len(u.Selectors) != inputs {
		return dataflow.ShapeErrorf("union has %d selectors for %d inputs", len(u.Selectors), inputs)
	}
	for i, s := range u.Selectors {
		if s == nil {
			return dataflow.ShapeErrorf("union selector %d is nil", i)
		}
		if err := validateSelectorInputs(s, inputs); err != nil {
			return err
		}
	}
	return nil
}

func (u *Union) run(fields []string, inputs []*dataflow.Relation) (*dataflow.Relation, error) {
	if err := u.Validate(len(inputs)); err != nil {
		return nil, err
	}
	out := dataflow.NewBuilder(fields...)
	for _, sel := range u.Selectors {
		rows, err := sel.Select(inputs)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if _, err := out.Add(row); err != nil {
				return nil, err
			}
		}
	}
	return out.Build(), nil
}
