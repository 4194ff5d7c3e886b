package topology

import (
	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/edn"
	"github.com/wbrown/janus-flow/dataflow/view"
)

// checkKeys rejects maps carrying keys outside allowed, so that a misspelled
// key fails loudly instead of being ignored.
func checkKeys(n edn.Node, allowed ...string) error {
	if n.Type != edn.NodeMap {
		return errors.Newf("expected map at %s, got %s %s", n.Pos, n.Type, n)
	}
	for i := 0; i < len(n.Nodes); i += 2 {
		k := n.Nodes[i]
		if k.Type != edn.NodeKeyword {
			return errors.Newf("map key %s at %s is not a keyword", k, k.Pos)
		}
		name := k.Value[1:]
		found := false
		for _, a := range allowed {
			if a == name {
				found = true
				break
			}
		}
		if !found {
			return errors.Newf("unknown key %s at %s", k, k.Pos)
		}
	}
	return nil
}

func lookup(n edn.Node, key string) (edn.Node, error) {
	v, ok := n.Get(key)
	if !ok {
		return edn.Node{}, errors.Newf("map at %s has no :%s", n.Pos, key)
	}
	return v, nil
}

func requireString(n edn.Node, key string) (string, error) {
	v, err := lookup(n, key)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

func requireInt(n edn.Node, key string) (int, error) {
	v, err := lookup(n, key)
	if err != nil {
		return 0, err
	}
	return v.AsInt()
}

func requireItems(n edn.Node, key string) ([]edn.Node, error) {
	v, err := lookup(n, key)
	if err != nil {
		return nil, err
	}
	return v.Items()
}

func requireSelect(n edn.Node, key string) (view.RowSelector, error) {
	v, err := lookup(n, key)
	if err != nil {
		return nil, err
	}
	return indexSelect(v)
}

func optionalStrings(n edn.Node, key string) ([]string, error) {
	v, ok := n.Get(key)
	if !ok {
		return nil, nil
	}
	items, err := v.Items()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		if out[i], err = item.AsString(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func optionalValues(n edn.Node, key string) ([]dataflow.Value, error) {
	v, ok := n.Get(key)
	if !ok {
		return nil, nil
	}
	items, err := v.Items()
	if err != nil {
		return nil, err
	}
	out := make([]dataflow.Value, len(items))
	for i, item := range items {
		if out[i], err = value(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func optionalScalar(n edn.Node, key string) (*view.ScalarRef, error) {
	v, ok := n.Get(key)
	if !ok {
		return nil, nil
	}
	i, err := v.AsInt()
	if err != nil {
		return nil, err
	}
	r := view.ScalarRef(i)
	return &r, nil
}

// value converts an EDN literal. Numbers become Floats, vectors and lists
// become Tuples and sets of vectors become Relations.
func value(n edn.Node) (dataflow.Value, error) {
	switch n.Type {
	case edn.NodeBool:
		b, err := n.AsBool()
		return dataflow.Bool(b), err
	case edn.NodeString:
		return dataflow.String(n.Value), nil
	case edn.NodeInt, edn.NodeFloat:
		f, err := n.AsNumber()
		return dataflow.Float(f), err
	case edn.NodeVector, edn.NodeList:
		return tuple(n)
	case edn.NodeSet:
		rows, err := tuples(n)
		if err != nil {
			return nil, err
		}
		rel, err := dataflow.RelationOf(nil, rows...)
		if err != nil {
			return nil, errors.Wrapf(err, "set at %s", n.Pos)
		}
		return rel, nil
	}
	return nil, errors.Newf("%s %s at %s is not a value", n.Type, n, n.Pos)
}

func tuple(n edn.Node) (dataflow.Tuple, error) {
	items, err := n.Items()
	if err != nil {
		return nil, err
	}
	t := make(dataflow.Tuple, len(items))
	for i, item := range items {
		if t[i], err = value(item); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func tuples(n edn.Node) ([]dataflow.Tuple, error) {
	items, err := n.Items()
	if err != nil {
		return nil, err
	}
	out := make([]dataflow.Tuple, len(items))
	for i, item := range items {
		if item.Type != edn.NodeVector && item.Type != edn.NodeList {
			return nil, errors.Newf("expected row vector at %s, got %s %s", item.Pos, item.Type, item)
		}
		if out[i], err = tuple(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func indexSelect(n edn.Node) (view.IndexSelect, error) {
	if err := checkKeys(n, "input", "columns"); err != nil {
		return view.IndexSelect{}, err
	}
	input, err := requireInt(n, "input")
	if err != nil {
		return view.IndexSelect{}, err
	}
	s := view.IndexSelect{Input: input}
	if cols, ok := n.Get("columns"); ok {
		items, err := cols.Items()
		if err != nil {
			return view.IndexSelect{}, err
		}
		s.Columns = make([]int, len(items))
		for i, item := range items {
			if s.Columns[i], err = item.AsInt(); err != nil {
				return view.IndexSelect{}, err
			}
		}
	}
	return s, nil
}

// ref reads [:state i] or [:const i].
func ref(n edn.Node) (view.Ref, error) {
	items, err := n.Items()
	if err != nil {
		return view.Ref{}, err
	}
	if len(items) != 2 {
		return view.Ref{}, errors.Newf("reference %s at %s must be [:state i] or [:const i]", n, n.Pos)
	}
	kind, err := items[0].AsKeyword()
	if err != nil {
		return view.Ref{}, err
	}
	i, err := items[1].AsInt()
	if err != nil {
		return view.Ref{}, err
	}
	switch kind {
	case "state":
		return view.StateRef(i), nil
	case "const":
		return view.ConstRef(i), nil
	}
	return view.Ref{}, errors.Newf("unknown reference kind :%s at %s", kind, items[0].Pos)
}

func outputSelector(n edn.Node) (view.OutputSelector, error) {
	items, err := requireItems(n, "select")
	if err != nil {
		return nil, err
	}
	sel := make(view.OutputSelector, len(items))
	for i, item := range items {
		if sel[i], err = ref(item); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

// constraints reads one join step: a vector of [left op right].
func constraints(n edn.Node) ([]view.Constraint, error) {
	items, err := n.Items()
	if err != nil {
		return nil, err
	}
	out := make([]view.Constraint, len(items))
	for i, item := range items {
		parts, err := item.Items()
		if err != nil {
			return nil, err
		}
		if len(parts) != 3 {
			return nil, errors.Newf("constraint %s at %s must be [left op right]", item, item.Pos)
		}
		left, err := parts[0].AsInt()
		if err != nil {
			return nil, err
		}
		right, err := parts[2].AsInt()
		if err != nil {
			return nil, err
		}
		name := parts[1].Value
		if parts[1].Type == edn.NodeKeyword {
			name = name[1:]
		} else if parts[1].Type != edn.NodeSymbol {
			return nil, errors.Newf("operator at %s must be a keyword or symbol", parts[1].Pos)
		}
		op, err := view.ParseOp(name)
		if err != nil {
			return nil, errors.Wrapf(err, "at %s", parts[1].Pos)
		}
		out[i] = view.Constraint{Left: left, Op: op, Right: right}
	}
	return out, nil
}
