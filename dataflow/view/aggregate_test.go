package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/janus-flow/dataflow"
)

func ref(i int) *ScalarRef {
	r := ScalarRef(i)
	return &r
}

func TestAggregate(t *testing.T) {
	// (group, seq, value)
	events := rel(
		tup("a", 1, "x"), tup("a", 2, "y"), tup("a", 3, "z"),
		tup("b", 1, "p"),
		tup("c", 1, "q"), tup("c", 2, "r"),
	)
	groups := rel(tup("a"), tup("b"), tup("d"))

	t.Run("CountPerGroup", func(t *testing.T) {
		a := &Aggregate{
			Outer:    IndexSelect{Input: 1},
			Inner:    IndexSelect{Input: 0},
			Reducers: []Reducer{{Primitive: countPrimitive}},
			Select:   OutputSelector{StateRef(0), StateRef(1)},
		}
		out := run(t, a, events, groups)
		// "c" has no outer key; "d" has no inner rows and still reduces.
		assert.Equal(t, []dataflow.Tuple{tup("a", 3), tup("b", 1), tup("d", 0)}, out.Tuples())
	})

	t.Run("WindowFromOffsetToEnd", func(t *testing.T) {
		a := &Aggregate{
			Constants: []dataflow.Value{dataflow.Float(1)},
			Outer:     IndexSelect{Input: 1},
			Inner:     IndexSelect{Input: 0},
			LimitFrom: ref(0),
			Reducers:  []Reducer{{Primitive: lastColumns}},
			Select:    OutputSelector{StateRef(0), StateRef(1)},
		}
		out := run(t, a, events, rel(tup("a")))
		require.Equal(t, 1, out.Len())
		assert.Equal(t, tup("a", tup("y", "z")), out.Tuples()[0])
	})

	t.Run("WindowBoundsFromOuterValues", func(t *testing.T) {
		// Outer (group, from, to); window offsets come from the outer tuple
		// through the scalar scope constants ++ outer.
		bounds := rel(tup("a", 0, 2), tup("c", 1, 9))
		a := &Aggregate{
			Outer: IndexSelect{Input: 1},
			Inner: RowSelectorFunc(func(inputs []*dataflow.Relation) ([]dataflow.Tuple, error) {
				var rows []dataflow.Tuple
				inputs[0].Ascend(func(row dataflow.Tuple) bool {
					// Re-key events by (group, from, to) of matching bounds.
					inputs[1].Ascend(func(b dataflow.Tuple) bool {
						if dataflow.Equal(b[0], row[0]) {
							rows = append(rows, dataflow.Tuple{b[0], b[1], b[2], row[2]})
						}
						return true
					})
					return true
				})
				return rows, nil
			}),
			LimitFrom: ref(1),
			LimitTo:   ref(2),
			Reducers:  []Reducer{{Primitive: lastColumns}},
			Select:    OutputSelector{StateRef(0), StateRef(3)},
		}
		out := run(t, a, events, bounds)
		assert.Equal(t, []dataflow.Tuple{
			tup("a", tup("x", "y")),
			tup("c", tup("r")),
		}, out.Tuples())
	})

	t.Run("InvertedWindowIsEmpty", func(t *testing.T) {
		a := &Aggregate{
			Constants: []dataflow.Value{dataflow.Float(2), dataflow.Float(1)},
			Outer:     IndexSelect{Input: 1},
			Inner:     IndexSelect{Input: 0},
			LimitFrom: ref(0),
			LimitTo:   ref(1),
			Reducers:  []Reducer{{Primitive: countPrimitive}},
			Select:    OutputSelector{StateRef(0), StateRef(1)},
		}
		out := run(t, a, events, rel(tup("a")))
		assert.Equal(t, []dataflow.Tuple{tup("a", 0)}, out.Tuples())
	})

	t.Run("NonNumericBoundIsShapeError", func(t *testing.T) {
		a := &Aggregate{
			Constants: []dataflow.Value{dataflow.String("one")},
			Outer:     IndexSelect{Input: 1},
			Inner:     IndexSelect{Input: 0},
			LimitFrom: ref(0),
			Select:    OutputSelector{StateRef(0)},
		}
		_, _, err := Run(a, nil, []*dataflow.Relation{events, groups})
		assert.True(t, dataflow.IsShapeError(err))
	})

	t.Run("SelectsInnerEmitsWindowRows", func(t *testing.T) {
		// Top two rows of every group, with the group size alongside.
		a := &Aggregate{
			Constants:    []dataflow.Value{dataflow.Float(0), dataflow.Float(2)},
			Outer:        IndexSelect{Input: 0, Columns: []int{0}},
			Inner:        IndexSelect{Input: 0},
			LimitFrom:    ref(0),
			LimitTo:      ref(1),
			Reducers:     []Reducer{{Primitive: countPrimitive}},
			SelectsInner: true,
			// state: key, inner(group seq value), count
			Select: OutputSelector{StateRef(0), StateRef(2), StateRef(4)},
		}
		out := run(t, a, events)
		assert.Equal(t, []dataflow.Tuple{
			tup("a", 1, 2), tup("a", 2, 2),
			tup("b", 1, 1),
			tup("c", 1, 2), tup("c", 2, 2),
		}, out.Tuples())
	})

	t.Run("InnerKeepsDuplicates", func(t *testing.T) {
		// Projecting away seq leaves duplicate inner rows which still count.
		a := &Aggregate{
			Outer:    IndexSelect{Input: 0, Columns: []int{0}},
			Inner:    IndexSelect{Input: 0, Columns: []int{0}},
			Reducers: []Reducer{{Primitive: countPrimitive}},
			Select:   OutputSelector{StateRef(0), StateRef(1)},
		}
		out := run(t, a, events)
		assert.Equal(t, []dataflow.Tuple{tup("a", 3), tup("b", 1), tup("c", 2)}, out.Tuples())
	})

	t.Run("PartitioningIsContiguousAndDisjoint", func(t *testing.T) {
		seen := map[string]int{}
		record := &Primitive{
			Name: "record",
			Reduce: func(_ []dataflow.Value, group []dataflow.Tuple) (dataflow.Value, error) {
				for _, row := range group {
					seen[row.String()]++
				}
				return dataflow.Float(len(group)), nil
			},
		}
		a := &Aggregate{
			Outer:    IndexSelect{Input: 1},
			Inner:    IndexSelect{Input: 0},
			Reducers: []Reducer{{Primitive: record}},
			Select:   OutputSelector{StateRef(0)},
		}
		run(t, a, events, groups)
		for row, n := range seen {
			assert.Equal(t, 1, n, "row %s reduced more than once", row)
		}
		assert.Len(t, seen, 4, "a's three rows and b's one row")
	})

	t.Run("ReducerArgsFromScalarScope", func(t *testing.T) {
		echo := &Primitive{
			Name: "echo",
			Reduce: func(args []dataflow.Value, _ []dataflow.Tuple) (dataflow.Value, error) {
				return dataflow.Tuple(args), nil
			},
		}
		a := &Aggregate{
			Constants: []dataflow.Value{dataflow.String("k")},
			Outer:     IndexSelect{Input: 1},
			Inner:     IndexSelect{Input: 0},
			Reducers:  []Reducer{{Primitive: echo, Args: []ScalarRef{1, 0}}},
			Select:    OutputSelector{StateRef(1)},
		}
		out := run(t, a, events, rel(tup("b")))
		assert.Equal(t, []dataflow.Tuple{tup(tup("b", "k"))}, out.Tuples())
	})

	t.Run("Validation", func(t *testing.T) {
		rowsOnly := &Primitive{Name: "add", Rows: addPrimitive.Rows}
		bad := []*Aggregate{
			{Inner: IndexSelect{Input: 0}},
			{Outer: IndexSelect{Input: 0}, Inner: IndexSelect{Input: 4}},
			{Outer: IndexSelect{Input: 0}, Inner: IndexSelect{Input: 0}, Reducers: []Reducer{{Primitive: rowsOnly}}},
			{Outer: IndexSelect{Input: 0}, Inner: IndexSelect{Input: 0}, LimitTo: ref(-1)},
		}
		for i, a := range bad {
			assert.True(t, dataflow.IsShapeError(a.Validate(1)), "case %d", i)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		a := &Aggregate{
			Outer:    IndexSelect{Input: 1},
			Inner:    IndexSelect{Input: 0},
			Reducers: []Reducer{{Primitive: countPrimitive}},
			Select:   OutputSelector{StateRef(0), StateRef(1)},
		}
		once := run(t, a, events, groups)
		again, _, err := Run(a, once, []*dataflow.Relation{events, groups})
		require.NoError(t, err)
		assert.True(t, once.Equal(again))
	})
}
