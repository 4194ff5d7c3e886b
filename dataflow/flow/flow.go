// Package flow wires views into a dependency graph and drives it to a
// fixpoint. Nodes whose inputs may have changed are dirty; a run repeatedly
// recomputes dirty nodes, diffs their outputs and marks the downstream nodes of
// every real change dirty, until nothing is dirty. Cycles are allowed and are
// how recursive queries such as transitive closure are expressed.
package flow

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/annotations"
	"github.com/wbrown/janus-flow/dataflow/view"
)

var (
	// ErrNotTable is returned when writing to a node that is not a Table.
	ErrNotTable = errors.New("node is not a table")
	// ErrUnknownNode is returned for ids or indices that name no node.
	ErrUnknownNode = errors.New("unknown node")
	// ErrTopology marks malformed graphs rejected at construction.
	ErrTopology = errors.New("invalid flow topology")
	// ErrRoundLimit is returned when a run exceeds Options.MaxRounds.
	ErrRoundLimit = errors.New("round limit exceeded")
)

// Node is one vertex of the graph. Upstream lists, in input order, the nodes
// whose outputs feed the view; Downstream lists the nodes that read this one.
// The two must be mutually consistent.
type Node struct {
	ID         string
	View       view.View
	Upstream   []int
	Downstream []int
	// Fields are display names carried by the node's output.
	Fields []string
}

// Change records one node's output changing. Table writes and recomputations
// both produce changes.
type Change struct {
	Node    int
	ID      string
	Removed []dataflow.Tuple
	Added   []dataflow.Tuple
}

// RunStats describes the last successful run.
type RunStats struct {
	Run         uint64
	Rounds      int
	Evaluations int
}

// Flow is a graph of nodes with their current outputs, a dirty set and the
// change log accumulated since the last successful run. All methods are safe
// for concurrent use; writes and runs are serialized.
type Flow struct {
	mu      sync.Mutex
	nodes   []Node
	index   map[string]int
	outputs []*dataflow.Relation
	dirty   []bool
	log     []Change

	opts  Options
	ctx   Context
	pool  *WorkerPool
	runs  uint64
	stats RunStats
}

// New validates the topology and returns a flow whose nodes are all dirty and
// whose outputs are all empty.
func New(nodes []Node, opts ...Option) (*Flow, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := validate(nodes); err != nil {
		return nil, err
	}

	f := &Flow{
		nodes:   make([]Node, len(nodes)),
		index:   make(map[string]int, len(nodes)),
		outputs: make([]*dataflow.Relation, len(nodes)),
		dirty:   make([]bool, len(nodes)),
		opts:    o,
		ctx:     NewContext(o.Handler),
		pool:    NewWorkerPool(o.Workers),
	}
	copy(f.nodes, nodes)
	for i, n := range f.nodes {
		f.index[n.ID] = i
		fields := n.Fields
		if t, ok := n.View.(*view.Table); ok && len(fields) == 0 {
			fields = t.Fields
		}
		f.outputs[i] = dataflow.NewRelation(fields...)
		f.dirty[i] = true
	}
	return f, nil
}

func validate(nodes []Node) error {
	seen := make(map[string]int, len(nodes))
	inRange := func(i int) bool { return i >= 0 && i < len(nodes) }
	for i, n := range nodes {
		if n.ID == "" {
			return topologyErrorf("node %d has no id", i)
		}
		if j, dup := seen[n.ID]; dup {
			return topologyErrorf("nodes %d and %d share id %q", j, i, n.ID)
		}
		seen[n.ID] = i
		if n.View == nil {
			return topologyErrorf("node %q has no view", n.ID)
		}
		if n.View.Kind() == view.KindTable && len(n.Upstream) > 0 {
			return topologyErrorf("table %q has upstream nodes", n.ID)
		}
		for _, u := range n.Upstream {
			if !inRange(u) {
				return topologyErrorf("node %q reads unknown node %d", n.ID, u)
			}
			if !contains(nodes[u].Downstream, i) {
				return topologyErrorf("node %q reads %q, which does not list it downstream", n.ID, nodes[u].ID)
			}
		}
		for _, d := range n.Downstream {
			if !inRange(d) {
				return topologyErrorf("node %q feeds unknown node %d", n.ID, d)
			}
			if !contains(nodes[d].Upstream, i) {
				return topologyErrorf("node %q feeds %q, which does not read it", n.ID, nodes[d].ID)
			}
		}
		if err := n.View.Validate(len(n.Upstream)); err != nil {
			return errors.Mark(errors.Wrapf(err, "node %q", n.ID), ErrTopology)
		}
	}
	return nil
}

func topologyErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrTopology)
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// Nodes returns a copy of the node list.
func (f *Flow) Nodes() []Node {
	out := make([]Node, len(f.nodes))
	copy(out, f.nodes)
	return out
}

// Index returns the position of the node named id.
func (f *Flow) Index(id string) (int, error) {
	i, ok := f.index[id]
	if !ok {
		return 0, errors.Mark(errors.Newf("no node named %q", id), ErrUnknownNode)
	}
	return i, nil
}

// Output returns the current output of the node named id.
func (f *Flow) Output(id string) (*dataflow.Relation, error) {
	i, err := f.Index(id)
	if err != nil {
		return nil, err
	}
	return f.OutputAt(i), nil
}

// OutputAt returns the current output of node i. It panics if i is out of
// range.
func (f *Flow) OutputAt(i int) *dataflow.Relation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[i]
}

// Dirty returns the indices of dirty nodes in ascending order.
func (f *Flow) Dirty() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirtyNodes()
}

// IsDirty reports whether node i is dirty.
func (f *Flow) IsDirty(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty[i]
}

// Stats returns the statistics of the last successful run.
func (f *Flow) Stats() RunStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Options returns the resolved options.
func (f *Flow) Options() Options {
	return f.opts
}

// Collector returns the annotation collector, or nil when no handler was set.
func (f *Flow) Collector() *annotations.Collector {
	return f.ctx.Collector()
}

func (f *Flow) dirtyNodes() []int {
	var out []int
	for i, d := range f.dirty {
		if d {
			out = append(out, i)
		}
	}
	return out
}

// markDownstream marks every reader of node i dirty.
func (f *Flow) markDownstream(i int) {
	for _, d := range f.nodes[i].Downstream {
		f.dirty[d] = true
	}
}

// record applies a new output for node i: it replaces the stored output,
// appends the change to the log and marks the downstream dirty. It reports
// whether anything changed.
func (f *Flow) record(i int, next *dataflow.Relation) bool {
	removed, added := f.outputs[i].Diff(next)
	if len(removed) == 0 && len(added) == 0 {
		return false
	}
	f.outputs[i] = next
	f.log = append(f.log, Change{Node: i, ID: f.nodes[i].ID, Removed: removed, Added: added})
	f.markDownstream(i)
	f.ctx.NodeChanged(f.nodes[i].ID, len(added), len(removed))
	return true
}

// Run evaluates until no node is dirty and returns the changes made since the
// previous successful run, table writes included.
func (f *Flow) Run() ([]Change, error) {
	return f.RunContext(context.Background())
}
