package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/flow"
	"github.com/wbrown/janus-flow/dataflow/view"
)

var tup = dataflow.MustTuple

func mirror(t *testing.T, j *Journal) *flow.Flow {
	t.Helper()
	f, err := flow.NewBuilder().
		Table("in", &view.Table{Arity: 2}).
		Add("out", &view.Union{Selectors: []view.RowSelector{view.IndexSelect{Input: 0, Columns: []int{1, 0}}}}, "in").
		Build(flow.WithSink(j))
	require.NoError(t, err)
	return f
}

func TestJournalRecordsRuns(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(dir)
	require.NoError(t, err)

	f := mirror(t, j)
	_, err = f.Insert("in", tup("a", 1))
	require.NoError(t, err)
	_, err = f.Insert("in", tup("b", 2))
	require.NoError(t, err)
	_, err = f.Run()
	require.NoError(t, err)

	_, err = f.Remove("in", tup("a", 1))
	require.NoError(t, err)
	_, err = f.Run()
	require.NoError(t, err)

	// A run with nothing to do journals nothing.
	_, err = f.Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), j.LastRun())

	entries, err := j.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 5)

	first, err := j.Run(1)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "in", first[0].Change.ID)
	assert.Equal(t, []dataflow.Tuple{tup("a", 1)}, first[0].Change.Added)
	assert.Equal(t, []dataflow.Tuple{tup("b", 2)}, first[1].Change.Added)
	assert.Equal(t, "out", first[2].Change.ID)
	assert.Equal(t, 1, first[2].Change.Node)
	assert.Equal(t, []dataflow.Tuple{tup(1, "a"), tup(2, "b")}, first[2].Change.Added)
	for i, e := range first {
		assert.Equal(t, uint64(1), e.Run)
		assert.Equal(t, uint32(i), e.Seq)
	}

	second, err := j.Run(2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, []dataflow.Tuple{tup("a", 1)}, second[0].Change.Removed)
	assert.Empty(t, second[0].Change.Added)
	assert.Equal(t, []dataflow.Tuple{tup(1, "a")}, second[1].Change.Removed)

	require.NoError(t, j.Close())

	// Reopening continues the run numbering.
	j, err = OpenJournal(dir)
	require.NoError(t, err)
	defer j.Close()
	assert.Equal(t, uint64(2), j.LastRun())

	f = mirror(t, j)
	_, err = f.Insert("in", tup("c", 3))
	require.NoError(t, err)
	_, err = f.Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), j.LastRun())

	third, err := j.Run(3)
	require.NoError(t, err)
	require.Len(t, third, 2)
	assert.Equal(t, []dataflow.Tuple{tup("c", 3)}, third[0].Change.Added)
	assert.Equal(t, uint64(1), third[0].FlowRun, "the new flow's own counter")
}

func TestJournalSharedByFlows(t *testing.T) {
	j, err := OpenJournal("")
	require.NoError(t, err)
	defer j.Close()

	// Both flows start counting runs at 1; the journal numbers them in
	// recording order.
	first, second := mirror(t, j), mirror(t, j)
	_, err = first.Insert("in", tup("a", 1))
	require.NoError(t, err)
	_, err = first.Run()
	require.NoError(t, err)
	_, err = second.Insert("in", tup("b", 2))
	require.NoError(t, err)
	_, err = second.Run()
	require.NoError(t, err)
	_, err = first.Insert("in", tup("c", 3))
	require.NoError(t, err)
	_, err = first.Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), j.LastRun())

	for run, want := range map[uint64]struct {
		flowRun uint64
		added   dataflow.Tuple
	}{
		1: {1, tup("a", 1)},
		2: {1, tup("b", 2)},
		3: {2, tup("c", 3)},
	} {
		entries, err := j.Run(run)
		require.NoError(t, err)
		require.Len(t, entries, 2, "run %d", run)
		assert.Equal(t, want.flowRun, entries[0].FlowRun, "run %d", run)
		assert.Equal(t, []dataflow.Tuple{want.added}, entries[0].Change.Added, "run %d", run)
	}

	change := flow.Change{ID: "t", Added: []dataflow.Tuple{tup(true)}}
	require.NoError(t, j.Record(1, []flow.Change{change}), "a repeated flow run is still journaled")
	require.NoError(t, j.Record(9, nil), "empty change sets are skipped")
	assert.Equal(t, uint64(4), j.LastRun())
}

func TestChangeEncoding(t *testing.T) {
	nested := dataflow.MustRelation(tup("x"), tup("y"))
	c := flow.Change{
		Node:    7,
		ID:      "groups",
		Removed: []dataflow.Tuple{tup("g", nested)},
		Added:   []dataflow.Tuple{tup("g", 2.5, false), tup("h", tup(1, 2), true)},
	}
	flowRun, got, err := decodeChange(encodeChange(12, c))
	require.NoError(t, err)
	assert.Equal(t, uint64(12), flowRun)
	assert.Equal(t, c.Node, got.Node)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.Added, got.Added)
	require.Len(t, got.Removed, 1)
	assert.Equal(t, 0, dataflow.Compare(c.Removed[0], got.Removed[0]))

	_, _, err = decodeChange([]byte{0x04})
	assert.Error(t, err)
	_, _, err = decodeKey([]byte{1, 2, 3})
	assert.Error(t, err)
}
