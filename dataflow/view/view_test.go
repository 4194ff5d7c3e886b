package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/janus-flow/dataflow"
)

var (
	tup = dataflow.MustTuple
	rel = dataflow.MustRelation
)

// Test primitives. They are deliberately tiny; the real catalogue lives in the
// primitive package.
var (
	countPrimitive = &Primitive{
		Name: "count",
		Reduce: func(_ []dataflow.Value, group []dataflow.Tuple) (dataflow.Value, error) {
			return dataflow.Float(len(group)), nil
		},
	}
	// lastColumns collects the last column of every row of the window.
	lastColumns = &Primitive{
		Name: "last-columns",
		Reduce: func(_ []dataflow.Value, group []dataflow.Tuple) (dataflow.Value, error) {
			out := make(dataflow.Tuple, len(group))
			for i, row := range group {
				out[i] = row[len(row)-1]
			}
			return out, nil
		},
	}
	addPrimitive = &Primitive{
		Name: "add",
		Rows: func(args []dataflow.Value) ([]dataflow.Tuple, error) {
			a, err := dataflow.AsFloat(args[0])
			if err != nil {
				return nil, err
			}
			b, err := dataflow.AsFloat(args[1])
			if err != nil {
				return nil, err
			}
			return []dataflow.Tuple{{dataflow.Float(a + b)}}, nil
		},
	}
)

func run(t *testing.T, v View, inputs ...*dataflow.Relation) *dataflow.Relation {
	t.Helper()
	require.NoError(t, v.Validate(len(inputs)))
	out, recomputed, err := Run(v, dataflow.NewRelation(), inputs)
	require.NoError(t, err)
	require.True(t, recomputed)
	return out
}

func TestConstraintOps(t *testing.T) {
	state := []dataflow.Value{dataflow.Float(1), dataflow.Float(2), dataflow.Float(1)}
	tests := []struct {
		op         Op
		left, righ int
		want       bool
	}{
		{EQ, 0, 2, true},
		{EQ, 0, 1, false},
		{NEQ, 0, 1, true},
		{LT, 0, 1, true},
		{LT, 0, 2, false},
		{GT, 1, 0, true},
		{LTE, 0, 2, true},
		{GTE, 0, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			ok, err := Constraint{Left: tt.left, Op: tt.op, Right: tt.righ}.Satisfied(state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	_, err := Constraint{Left: 0, Op: EQ, Right: 3}.Satisfied(state)
	assert.True(t, dataflow.IsShapeError(err))
}

func TestParseOp(t *testing.T) {
	for s, want := range map[string]Op{"=": EQ, "not=": NEQ, "lt": LT, ">": GT, "<=": LTE, "GTE": GTE} {
		got, err := ParseOp(s)
		require.NoError(t, err)
		assert.Equal(t, want, got, s)
	}
	_, err := ParseOp("~")
	assert.Error(t, err)
}

func TestTableIsNeverRecomputed(t *testing.T) {
	old := rel(tup("a"))
	out, recomputed, err := Run(&Table{}, old, nil)
	require.NoError(t, err)
	assert.False(t, recomputed)
	assert.Same(t, old, out)

	assert.Error(t, (&Table{}).Validate(1))
}

func TestTableShaping(t *testing.T) {
	table := &Table{
		Arity: 2,
		Insert: func(t dataflow.Tuple) (dataflow.Tuple, error) {
			return append(dataflow.Tuple{dataflow.String("k")}, t...), nil
		},
	}
	in := tup(1)
	shaped, err := table.ShapeInsert(in)
	require.NoError(t, err)
	assert.Equal(t, tup("k", 1), shaped)

	_, err = table.ShapeRemove(in)
	assert.True(t, dataflow.IsShapeError(err), "remove has no shaper, arity 1 is rejected")
}

func TestRunKeepsDisplayFields(t *testing.T) {
	u := &Union{Selectors: []RowSelector{IndexSelect{Input: 0}}}
	out, _, err := Run(u, dataflow.NewRelation("from", "to"), []*dataflow.Relation{rel(tup("a", "b"))})
	require.NoError(t, err)
	assert.Equal(t, []string{"from", "to"}, out.Fields())
}
