package flow

import (
	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow/view"
)

// Builder assembles a Flow from nodes that name their upstream nodes by id.
// Names may refer to nodes added later, which is how cycles are declared.
// Errors are deferred to Build.
type Builder struct {
	decls []nodeDecl
	err   error
}

type nodeDecl struct {
	id       string
	view     view.View
	fields   []string
	upstream []string
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Table adds a table node.
func (b *Builder) Table(id string, t *view.Table) *Builder {
	return b.Add(id, t)
}

// Add adds a node computing v from the named upstream nodes, in input order.
func (b *Builder) Add(id string, v view.View, upstream ...string) *Builder {
	b.decls = append(b.decls, nodeDecl{id: id, view: v, upstream: upstream})
	return b
}

// Fields sets the display fields of the node named id.
func (b *Builder) Fields(id string, fields ...string) *Builder {
	for i := range b.decls {
		if b.decls[i].id == id {
			b.decls[i].fields = fields
			return b
		}
	}
	if b.err == nil {
		b.err = errors.Mark(errors.Newf("fields for undeclared node %q", id), ErrUnknownNode)
	}
	return b
}

// Nodes resolves names to indices and derives the downstream lists.
func (b *Builder) Nodes() ([]Node, error) {
	if b.err != nil {
		return nil, b.err
	}
	index := make(map[string]int, len(b.decls))
	for i, s := range b.decls {
		if _, dup := index[s.id]; dup {
			return nil, topologyErrorf("node %q declared twice", s.id)
		}
		index[s.id] = i
	}

	nodes := make([]Node, len(b.decls))
	for i, s := range b.decls {
		nodes[i] = Node{ID: s.id, View: s.view, Fields: s.fields}
		for _, name := range s.upstream {
			u, ok := index[name]
			if !ok {
				return nil, errors.Mark(
					errors.Mark(errors.Newf("node %q reads undeclared node %q", s.id, name), ErrUnknownNode),
					ErrTopology)
			}
			nodes[i].Upstream = append(nodes[i].Upstream, u)
		}
	}
	for i, n := range nodes {
		for _, u := range n.Upstream {
			if !contains(nodes[u].Downstream, i) {
				nodes[u].Downstream = append(nodes[u].Downstream, i)
			}
		}
	}
	return nodes, nil
}

// Build validates the graph and returns the Flow.
func (b *Builder) Build(opts ...Option) (*Flow, error) {
	nodes, err := b.Nodes()
	if err != nil {
		return nil, err
	}
	return New(nodes, opts...)
}
