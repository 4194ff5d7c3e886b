package view

import (
	"github.com/wbrown/janus-flow/dataflow"
)

// level is one step of a backtracking enumeration: a source of candidate rows
// and the constraints checked as soon as a candidate is bound.
type level struct {
	candidates  func(state []dataflow.Value) ([]dataflow.Tuple, error)
	constraints []Constraint
}

// fixed returns a candidate source that ignores the bound state.
func fixed(rows []dataflow.Tuple) func([]dataflow.Value) ([]dataflow.Tuple, error) {
	return func([]dataflow.Value) ([]dataflow.Tuple, error) {
		return rows, nil
	}
}

// enumerate binds each level's candidates left to right, appending their values
// to state, and calls leaf once every level is bound. A candidate that fails
// its level's constraints is pruned without descending further.
//
// Levels only ever write past the width they were entered with, so
// re-slicing state back to that width undoes a binding.
func enumerate(levels []level, state []dataflow.Value, leaf func(state []dataflow.Value) error) error {
	if len(levels) == 0 {
		return leaf(state)
	}
	lv := levels[0]
	rows, err := lv.candidates(state)
	if err != nil {
		return err
	}
	width := len(state)
	for _, row := range rows {
		state = append(state[:width], row...)
		ok, err := allSatisfied(lv.constraints, state)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := enumerate(levels[1:], state, leaf); err != nil {
			return err
		}
	}
	return nil
}
