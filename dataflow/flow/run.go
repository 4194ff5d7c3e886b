package flow

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/view"
)

// RunContext is Run with cancellation. Cancellation is checked between rounds
// and between node evaluations; a cancelled round is aborted like a failed one.
//
// On error the flow is left in a consistent state: nodes evaluated in the
// aborted round keep their previous outputs and stay dirty, and the change log
// is kept for the next successful run.
func (f *Flow) RunContext(ctx context.Context) ([]Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.runs++
	stats := RunStats{Run: f.runs}
	f.ctx.RunBegin(stats.Run, len(f.dirtyNodes()))

	for {
		dirty := f.dirtyNodes()
		if len(dirty) == 0 {
			break
		}
		if f.opts.MaxRounds > 0 && stats.Rounds >= f.opts.MaxRounds {
			err := errors.Mark(
				errors.Newf("no fixpoint after %d rounds, %d nodes still dirty", stats.Rounds, len(dirty)),
				ErrRoundLimit)
			f.ctx.RunComplete(stats, 0, err)
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			f.ctx.RunComplete(stats, 0, err)
			return nil, err
		}
		if err := f.round(ctx, dirty, &stats); err != nil {
			f.ctx.RunComplete(stats, 0, err)
			return nil, err
		}
	}

	changes := f.log
	f.log = nil
	f.stats = stats
	f.ctx.RunComplete(stats, len(changes), nil)

	if f.opts.Sink != nil && len(changes) > 0 {
		if err := f.opts.Sink.Record(stats.Run, changes); err != nil {
			return changes, errors.Wrapf(err, "recording run %d", stats.Run)
		}
	}
	return changes, nil
}

type evaluation struct {
	out        *dataflow.Relation
	recomputed bool
}

// round evaluates one batch against the outputs as of the start of the round,
// then writes the results back in index order.
func (f *Flow) round(ctx context.Context, dirty []int, stats *RunStats) error {
	batch := f.selectBatch(dirty)
	stats.Rounds++
	ids := make([]string, len(batch))
	for k, i := range batch {
		ids[k] = f.nodes[i].ID
	}
	return f.ctx.Round(stats.Rounds, ids, len(dirty)-len(batch), func() error {
		results := make([]evaluation, len(batch))
		err := f.pool.ExecuteParallel(ctx, len(batch), func(_ context.Context, k int) error {
			out, recomputed, err := f.evaluate(batch[k])
			if err != nil {
				return err
			}
			results[k] = evaluation{out: out, recomputed: recomputed}
			return nil
		})
		if err != nil {
			return err
		}

		// Clean before propagating so that a changed self-loop stays dirty.
		for k, i := range batch {
			f.dirty[i] = false
			if results[k].recomputed {
				stats.Evaluations++
				f.record(i, results[k].out)
			}
		}
		return nil
	})
}

// evaluate runs node i's view. It only reads flow state.
func (f *Flow) evaluate(i int) (*dataflow.Relation, bool, error) {
	n := &f.nodes[i]
	if n.View.Kind() == view.KindTable {
		return f.outputs[i], false, nil
	}
	inputs := make([]*dataflow.Relation, len(n.Upstream))
	for j, u := range n.Upstream {
		inputs[j] = f.outputs[u]
	}
	out, recomputed, err := f.ctx.EvaluateNode(n.ID, n.View.Kind(), func() (*dataflow.Relation, bool, error) {
		return view.Run(n.View, f.outputs[i], inputs)
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "evaluating node %q", n.ID)
	}
	return out, recomputed, nil
}

// selectBatch picks the dirty nodes whose inputs, other than themselves, are
// all clean. Such nodes never read each other. When every candidate waits on
// another dirty node, as in a fully dirty cycle, it falls back to a greedy
// set of pairwise non-adjacent dirty nodes in index order.
func (f *Flow) selectBatch(dirty []int) []int {
	var batch []int
	for _, i := range dirty {
		ready := true
		for _, u := range f.nodes[i].Upstream {
			if u != i && f.dirty[u] {
				ready = false
				break
			}
		}
		if ready {
			batch = append(batch, i)
		}
	}
	if len(batch) > 0 {
		return batch
	}

	taken := make(map[int]bool, len(dirty))
	for _, i := range dirty {
		if f.adjacentToAny(i, taken) {
			continue
		}
		taken[i] = true
		batch = append(batch, i)
	}
	return batch
}

func (f *Flow) adjacentToAny(i int, taken map[int]bool) bool {
	for _, u := range f.nodes[i].Upstream {
		if taken[u] {
			return true
		}
	}
	for _, d := range f.nodes[i].Downstream {
		if taken[d] {
			return true
		}
	}
	return false
}
