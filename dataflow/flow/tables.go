package flow

import (
	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/view"
)

// Insert adds a tuple to the table named id. It reports whether the table
// changed; inserting a tuple already present is a no-op.
func (f *Flow) Insert(id string, t dataflow.Tuple) (bool, error) {
	return f.write(id, "insert", func(table *view.Table, old *dataflow.Relation) (*dataflow.Relation, error) {
		shaped, err := table.ShapeInsert(t)
		if err != nil {
			return nil, err
		}
		next, _, err := old.With(shaped)
		return next, err
	})
}

// Remove deletes a tuple from the table named id. It reports whether the
// table changed; removing an absent tuple is a no-op.
func (f *Flow) Remove(id string, t dataflow.Tuple) (bool, error) {
	return f.write(id, "remove", func(table *view.Table, old *dataflow.Relation) (*dataflow.Relation, error) {
		shaped, err := table.ShapeRemove(t)
		if err != nil {
			return nil, err
		}
		next, _ := old.Without(shaped)
		return next, nil
	})
}

// Load replaces the whole content of the table named id. The relation is
// taken as is; shapers do not apply, the table's arity does. Display fields
// of the table are kept when rel has none.
func (f *Flow) Load(id string, rel *dataflow.Relation) error {
	_, err := f.write(id, "load", func(table *view.Table, old *dataflow.Relation) (*dataflow.Relation, error) {
		if table.Arity > 0 && !rel.IsEmpty() && rel.Arity() != table.Arity {
			return nil, dataflow.ShapeErrorf("relation of arity %d loaded into table of arity %d", rel.Arity(), table.Arity)
		}
		next := rel
		if next == nil {
			next = dataflow.NewRelation()
		}
		if len(next.Fields()) == 0 {
			next = next.WithFields(old.Fields()...)
		}
		return next, nil
	})
	return err
}

func (f *Flow) write(
	id, op string,
	apply func(*view.Table, *dataflow.Relation) (*dataflow.Relation, error),
) (bool, error) {
	i, err := f.Index(id)
	if err != nil {
		return false, err
	}
	table, ok := f.nodes[i].View.(*view.Table)
	if !ok {
		return false, errors.Mark(errors.Newf("cannot %s into %s node %q", op, f.nodes[i].View.Kind(), id), ErrNotTable)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := apply(table, f.outputs[i])
	if err != nil {
		return false, errors.Wrapf(err, "%s into %q", op, id)
	}
	changed := f.record(i, next)
	f.ctx.TableWrite(id, op, f.outputs[i].Len(), changed)
	return changed, nil
}
