package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/flow"
	"github.com/wbrown/janus-flow/dataflow/primitive"
)

var tup = dataflow.MustTuple

const closure = `
; transitive closure of edge
{:nodes [{:id "edge"
          :view {:kind :table :fields ["from" "to"]}
          :rows [["a" "b"] ["b" "c"] ["c" "d"] ["d" "b"]]}
         {:id "first_step" :upstream ["edge"]
          :view {:kind :union :selects [{:input 0}]}}
         {:id "next_step" :upstream ["path" "edge"]
          :view {:kind :join
                 :sources [{:input 0} {:input 1}]
                 :constraints [[] [[1 = 2]]]
                 :select [[:state 0] [:state 3]]}}
         {:id "path" :upstream ["first_step" "next_step"] :fields ["from" "to"]
          :view {:kind :union :selects [{:input 0} {:input 1 :columns [0 1]}]}}]}
`

func run(t *testing.T, src string) *flow.Flow {
	t.Helper()
	top, err := Parse(src, primitive.Builtins())
	require.NoError(t, err)
	f, err := top.Build()
	require.NoError(t, err)
	_, err = f.Run()
	require.NoError(t, err)
	return f
}

func TestClosureTopology(t *testing.T) {
	f := run(t, closure)

	path, err := f.Output("path")
	require.NoError(t, err)
	assert.Equal(t, 12, path.Len())
	assert.True(t, path.Contains(tup("a", "d")))
	assert.False(t, path.Contains(tup("b", "a")))
	assert.Equal(t, []string{"from", "to"}, path.Fields())

	edge, err := f.Output("edge")
	require.NoError(t, err)
	assert.Equal(t, []string{"from", "to"}, edge.Fields())
	assert.Equal(t, 4, edge.Len())
}

func TestJoinWithPrimitive(t *testing.T) {
	f := run(t, `
{:nodes [{:id "n" :view {:kind :table :arity 1} :rows [[1] [2] [5]]}
         {:id "succ" :upstream ["n"]
          :view {:kind :join
                 :constants [1 "tag"]
                 :sources [{:input 0} {:primitive "add" :args [[:state 0] [:const 0]]}]
                 :constraints [[[0 :lt 0]] []]
                 :select [[:state 0] [:state 1] [:const 1]]}}]}`)

	out, err := f.Output("succ")
	require.NoError(t, err)
	assert.Empty(t, out.Tuples(), "x < x never holds")

	f = run(t, `
{:nodes [{:id "n" :view {:kind :table :arity 1} :rows [[1] [2] [5]]}
         {:id "succ" :upstream ["n"]
          :view {:kind :join
                 :constants [1 "tag"]
                 :sources [{:input 0} {:primitive "add" :args [[:state 0] [:const 0]]}]
                 :constraints [[[0 :lte 0]] [[0 :neq 1]]]
                 :select [[:state 0] [:state 1] [:const 1]]}}]}`)
	out, err = f.Output("succ")
	require.NoError(t, err)
	assert.Equal(t, []dataflow.Tuple{
		tup(1, 2, "tag"),
		tup(2, 3, "tag"),
		tup(5, 6, "tag"),
	}, out.Tuples())
}

func TestAggregateTopology(t *testing.T) {
	f := run(t, `
{:nodes [{:id "keys" :view {:kind :table :fields ["k"]} :rows [["a"] ["b"] ["c"]]}
         {:id "items" :view {:kind :table :fields ["k" "v"]}
          :rows [["a" 1] ["a" 2] ["a" 4] ["b" 10]]}
         {:id "totals" :upstream ["keys" "items"]
          :view {:kind :aggregate
                 :outer {:input 0}
                 :inner {:input 1}
                 :reducers [{:primitive "count"} {:primitive "sum"}]
                 :select [[:state 0] [:state 1] [:state 2]]}}
         {:id "tail" :upstream ["keys" "items"]
          :view {:kind :aggregate
                 :constants [1]
                 :outer {:input 0}
                 :inner {:input 1}
                 :limit-from 0
                 :selects-inner true
                 :select [[:state 0] [:state 2]]}}]}`)

	totals, err := f.Output("totals")
	require.NoError(t, err)
	assert.Equal(t, []dataflow.Tuple{
		tup("a", 3, 7),
		tup("b", 1, 10),
		tup("c", 0, 0),
	}, totals.Tuples())

	tail, err := f.Output("tail")
	require.NoError(t, err)
	assert.Equal(t, []dataflow.Tuple{tup("a", 2), tup("a", 4)}, tail.Tuples())
}

func TestLiteralValues(t *testing.T) {
	f := run(t, `{:nodes [{:id "t" :view {:kind :table}
                           :rows [[true -1.5 "s" [1 2] #{[1] [2]}]]}]}`)
	out, err := f.Output("t")
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	row := out.Tuples()[0]
	assert.Equal(t, dataflow.Bool(true), row[0])
	assert.Equal(t, dataflow.Float(-1.5), row[1])
	assert.Equal(t, dataflow.String("s"), row[2])
	assert.Equal(t, tup(1, 2), row[3])
	rel, ok := row[4].(*dataflow.Relation)
	require.True(t, ok)
	assert.Equal(t, 2, rel.Len())
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closure.edn")
	require.NoError(t, os.WriteFile(path, []byte(closure), 0o644))

	top, err := ParseFile(path, primitive.Builtins())
	require.NoError(t, err)
	require.Len(t, top.Seeds, 1)
	assert.Equal(t, "edge", top.Seeds[0].ID)
	assert.Len(t, top.Seeds[0].Rows, 4)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.edn"), primitive.Builtins())
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"not edn", `{:nodes [`, "unterminated"},
		{"no nodes", `{}`, "has no :nodes"},
		{"unknown key", `{:nodes [] :extra 1}`, "unknown key :extra"},
		{"missing id", `{:nodes [{:view {:kind :table}}]}`, "has no :id"},
		{"missing view", `{:nodes [{:id "t"}]}`, "missing :view"},
		{"unknown kind", `{:nodes [{:id "t" :view {:kind :sort}}]}`, "unknown view kind :sort"},
		{"rows on union", `{:nodes [{:id "t" :view {:kind :union :selects []} :rows []}]}`, ":rows"},
		{"bad ref", `{:nodes [{:id "j" :view {:kind :join :select [[:foo 0]]}}]}`, "unknown reference kind :foo"},
		{"bad op", `{:nodes [{:id "j" :view {:kind :join :sources [{:input 0}] :constraints [[[0 :like 1]]] :select []}}]}`, "unknown comparison operator"},
		{"nil value", `{:nodes [{:id "t" :view {:kind :table} :rows [[nil]]}]}`, "is not a value"},
		{"aggregate without inner", `{:nodes [{:id "a" :view {:kind :aggregate :outer {:input 0} :select []}}]}`, "has no :inner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, primitive.Builtins())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUnknownPrimitive(t *testing.T) {
	_, err := Parse(`{:nodes [{:id "j" :view {:kind :join
	                  :sources [{:primitive "nope" :args []}] :select []}}]}`, primitive.Builtins())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))
	assert.True(t, errors.Is(err, primitive.ErrUnknownPrimitive))
	assert.Contains(t, err.Error(), `node "j"`)
}

func TestTopologyErrorsSurfaceAtBuild(t *testing.T) {
	top, err := Parse(`{:nodes [{:id "u" :upstream ["ghost"] :view {:kind :union :selects [{:input 0}]}}]}`,
		primitive.Builtins())
	require.NoError(t, err)
	_, err = top.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, flow.ErrUnknownNode))
}
