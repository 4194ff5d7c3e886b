package view

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow"
)

// Op is a binary comparison operator.
type Op int

const (
	EQ Op = iota
	NEQ
	LT
	GT
	LTE
	GTE
)

var opNames = [...]string{EQ: "=", NEQ: "!=", LT: "<", GT: ">", LTE: "<=", GTE: ">="}

func (op Op) String() string {
	if op < EQ || op > GTE {
		return fmt.Sprintf("op(%d)", int(op))
	}
	return opNames[op]
}

// ParseOp accepts either the symbol (<=) or the name (lte) of an operator.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(s) {
	case "=", "==", "eq":
		return EQ, nil
	case "!=", "not=", "neq":
		return NEQ, nil
	case "<", "lt":
		return LT, nil
	case ">", "gt":
		return GT, nil
	case "<=", "lte":
		return LTE, nil
	case ">=", "gte":
		return GTE, nil
	}
	return 0, errors.Newf("unknown comparison operator %q", s)
}

// Apply compares two values under the total value order.
func (op Op) Apply(left, right dataflow.Value) bool {
	c := dataflow.Compare(left, right)
	switch op {
	case EQ:
		return c == 0
	case NEQ:
		return c != 0
	case LT:
		return c < 0
	case GT:
		return c > 0
	case LTE:
		return c <= 0
	case GTE:
		return c >= 0
	}
	return false
}

// Constraint is a binary predicate over two positions of the join state.
type Constraint struct {
	Left  int
	Op    Op
	Right int
}

func (c Constraint) String() string {
	return fmt.Sprintf("$%d %s $%d", c.Left, c.Op, c.Right)
}

// Satisfied evaluates the constraint against the bound state. Both positions
// must already be bound.
func (c Constraint) Satisfied(state []dataflow.Value) (bool, error) {
	if c.Left < 0 || c.Left >= len(state) || c.Right < 0 || c.Right >= len(state) {
		return false, dataflow.ShapeErrorf("constraint %s refers past bound state of width %d", c, len(state))
	}
	return c.Op.Apply(state[c.Left], state[c.Right]), nil
}

func (c Constraint) validate() error {
	if c.Op < EQ || c.Op > GTE {
		return dataflow.ShapeErrorf("constraint %s has unknown operator", c)
	}
	if c.Left < 0 || c.Right < 0 {
		return dataflow.ShapeErrorf("constraint %s has negative position", c)
	}
	return nil
}

// allSatisfied reports whether every constraint holds for state.
func allSatisfied(constraints []Constraint, state []dataflow.Value) (bool, error) {
	for _, c := range constraints {
		ok, err := c.Satisfied(state)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
