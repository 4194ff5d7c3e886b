// Package topology loads flows from EDN topology files, the serialized form
// produced by query compilers.
//
// A topology is a map with a :nodes vector. Each node names its upstream
// nodes by id and describes its view:
//
//	{:nodes [{:id "edge" :view {:kind :table :fields ["from" "to"]} :rows [["a" "b"]]}
//	         {:id "path" :upstream ["edge"] :view {:kind :union :selects [{:input 0}]}}]}
//
// Join sources are {:input i} or {:primitive "name" :args [[:state i] [:const j]]};
// constraints are per-source vectors of [left op right] with op one of :eq
// :neq :lt :gt :lte :gte or the matching symbols. Aggregates take :outer and
// :inner selectors, optional :limit-from and :limit-to scalar indices,
// :reducers [{:primitive "name" :args [i ...]}], :selects-inner and :select.
package topology

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/edn"
	"github.com/wbrown/janus-flow/dataflow/flow"
	"github.com/wbrown/janus-flow/dataflow/primitive"
	"github.com/wbrown/janus-flow/dataflow/view"
)

// ErrSyntax marks topology files that cannot be read.
var ErrSyntax = errors.New("topology syntax error")

// Seed is the initial content of one table.
type Seed struct {
	ID   string
	Rows []dataflow.Tuple
}

// Topology is a parsed topology file.
type Topology struct {
	Builder *flow.Builder
	Seeds   []Seed
}

// Build builds the flow and inserts the seed rows. The flow has not been run.
func (t *Topology) Build(opts ...flow.Option) (*flow.Flow, error) {
	f, err := t.Builder.Build(opts...)
	if err != nil {
		return nil, err
	}
	for _, s := range t.Seeds {
		for _, row := range s.Rows {
			if _, err := f.Insert(s.ID, row); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// ParseFile reads and parses a topology file.
func ParseFile(path string, reg *primitive.Registry) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading topology %s", path)
	}
	t, err := Parse(string(data), reg)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return t, nil
}

// Parse parses a topology, resolving primitive names in reg.
func Parse(src string, reg *primitive.Registry) (*Topology, error) {
	root, err := edn.Parse(src)
	if err != nil {
		return nil, syntaxError(err)
	}
	l := &loader{reg: reg}
	t, err := l.topology(root)
	if err != nil {
		return nil, syntaxError(err)
	}
	return t, nil
}

func syntaxError(err error) error {
	return errors.Mark(err, ErrSyntax)
}

type loader struct {
	reg *primitive.Registry
}

func (l *loader) topology(root edn.Node) (*Topology, error) {
	if err := checkKeys(root, "nodes"); err != nil {
		return nil, err
	}
	nodesNode, ok := root.Get("nodes")
	if !ok {
		return nil, errors.Newf("topology at %s has no :nodes", root.Pos)
	}
	nodes, err := nodesNode.Items()
	if err != nil {
		return nil, err
	}

	t := &Topology{Builder: flow.NewBuilder()}
	for _, n := range nodes {
		if err := l.node(t, n); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (l *loader) node(t *Topology, n edn.Node) error {
	if err := checkKeys(n, "id", "view", "upstream", "fields", "rows"); err != nil {
		return err
	}
	id, err := requireString(n, "id")
	if err != nil {
		return err
	}
	wrap := func(err error) error { return errors.Wrapf(err, "node %q", id) }

	viewNode, ok := n.Get("view")
	if !ok {
		return wrap(errors.Newf("missing :view at %s", n.Pos))
	}
	v, err := l.view(viewNode)
	if err != nil {
		return wrap(err)
	}
	upstream, err := optionalStrings(n, "upstream")
	if err != nil {
		return wrap(err)
	}
	t.Builder.Add(id, v, upstream...)

	fields, err := optionalStrings(n, "fields")
	if err != nil {
		return wrap(err)
	}
	if fields != nil {
		t.Builder.Fields(id, fields...)
	}

	if rowsNode, ok := n.Get("rows"); ok {
		if v.Kind() != view.KindTable {
			return wrap(errors.Newf(":rows at %s on a %s node", rowsNode.Pos, v.Kind()))
		}
		rows, err := tuples(rowsNode)
		if err != nil {
			return wrap(err)
		}
		t.Seeds = append(t.Seeds, Seed{ID: id, Rows: rows})
	}
	return nil
}

func (l *loader) view(n edn.Node) (view.View, error) {
	kindNode, ok := n.Get("kind")
	if !ok {
		return nil, errors.Newf("view at %s has no :kind", n.Pos)
	}
	kind, err := kindNode.AsKeyword()
	if err != nil {
		return nil, err
	}
	switch kind {
	case "table":
		return l.table(n)
	case "union":
		return l.union(n)
	case "join":
		return l.join(n)
	case "aggregate":
		return l.aggregate(n)
	}
	return nil, errors.Newf("unknown view kind :%s at %s", kind, kindNode.Pos)
}

func (l *loader) table(n edn.Node) (*view.Table, error) {
	if err := checkKeys(n, "kind", "fields", "arity"); err != nil {
		return nil, err
	}
	fields, err := optionalStrings(n, "fields")
	if err != nil {
		return nil, err
	}
	t := &view.Table{Fields: fields, Arity: len(fields)}
	if a, ok := n.Get("arity"); ok {
		if t.Arity, err = a.AsInt(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (l *loader) union(n edn.Node) (*view.Union, error) {
	if err := checkKeys(n, "kind", "selects"); err != nil {
		return nil, err
	}
	items, err := requireItems(n, "selects")
	if err != nil {
		return nil, err
	}
	u := &view.Union{}
	for _, item := range items {
		s, err := indexSelect(item)
		if err != nil {
			return nil, err
		}
		u.Selectors = append(u.Selectors, s)
	}
	return u, nil
}

func (l *loader) join(n edn.Node) (*view.Join, error) {
	if err := checkKeys(n, "kind", "constants", "sources", "constraints", "select"); err != nil {
		return nil, err
	}
	j := &view.Join{}
	var err error
	if j.Constants, err = optionalValues(n, "constants"); err != nil {
		return nil, err
	}

	if sourcesNode, ok := n.Get("sources"); ok {
		sources, err := sourcesNode.Items()
		if err != nil {
			return nil, err
		}
		for _, s := range sources {
			src, err := l.joinSource(s)
			if err != nil {
				return nil, err
			}
			j.Sources = append(j.Sources, src)
		}
	}

	if cNode, ok := n.Get("constraints"); ok {
		steps, err := cNode.Items()
		if err != nil {
			return nil, err
		}
		for _, step := range steps {
			cs, err := constraints(step)
			if err != nil {
				return nil, err
			}
			j.Constraints = append(j.Constraints, cs)
		}
	}

	if j.Select, err = outputSelector(n); err != nil {
		return nil, err
	}
	return j, nil
}

func (l *loader) joinSource(n edn.Node) (view.JoinSource, error) {
	if _, ok := n.Get("input"); ok {
		if err := checkKeys(n, "input"); err != nil {
			return nil, err
		}
		i, err := requireInt(n, "input")
		return view.RelationSource{Input: i}, err
	}
	if err := checkKeys(n, "primitive", "args"); err != nil {
		return nil, err
	}
	p, err := l.primitive(n)
	if err != nil {
		return nil, err
	}
	src := view.PrimitiveSource{Primitive: p}
	if argsNode, ok := n.Get("args"); ok {
		args, err := argsNode.Items()
		if err != nil {
			return nil, err
		}
		for _, a := range args {
			r, err := ref(a)
			if err != nil {
				return nil, err
			}
			src.Args = append(src.Args, r)
		}
	}
	return src, nil
}

func (l *loader) aggregate(n edn.Node) (*view.Aggregate, error) {
	if err := checkKeys(n, "kind", "constants", "outer", "inner", "limit-from", "limit-to",
		"reducers", "selects-inner", "select"); err != nil {
		return nil, err
	}
	a := &view.Aggregate{}
	var err error
	if a.Constants, err = optionalValues(n, "constants"); err != nil {
		return nil, err
	}
	if a.Outer, err = requireSelect(n, "outer"); err != nil {
		return nil, err
	}
	if a.Inner, err = requireSelect(n, "inner"); err != nil {
		return nil, err
	}
	if a.LimitFrom, err = optionalScalar(n, "limit-from"); err != nil {
		return nil, err
	}
	if a.LimitTo, err = optionalScalar(n, "limit-to"); err != nil {
		return nil, err
	}

	if rNode, ok := n.Get("reducers"); ok {
		items, err := rNode.Items()
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if err := checkKeys(item, "primitive", "args"); err != nil {
				return nil, err
			}
			p, err := l.primitive(item)
			if err != nil {
				return nil, err
			}
			r := view.Reducer{Primitive: p}
			if argsNode, ok := item.Get("args"); ok {
				args, err := argsNode.Items()
				if err != nil {
					return nil, err
				}
				for _, arg := range args {
					i, err := arg.AsInt()
					if err != nil {
						return nil, err
					}
					r.Args = append(r.Args, view.ScalarRef(i))
				}
			}
			a.Reducers = append(a.Reducers, r)
		}
	}

	if si, ok := n.Get("selects-inner"); ok {
		if a.SelectsInner, err = si.AsBool(); err != nil {
			return nil, err
		}
	}
	if a.Select, err = outputSelector(n); err != nil {
		return nil, err
	}
	return a, nil
}

func (l *loader) primitive(n edn.Node) (*view.Primitive, error) {
	name, err := requireString(n, "primitive")
	if err != nil {
		return nil, err
	}
	p, err := l.reg.Lookup(name)
	if err != nil {
		return nil, errors.Wrapf(err, "at %s", n.Pos)
	}
	return p, nil
}
