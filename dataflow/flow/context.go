package flow

import (
	"time"

	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/annotations"
	"github.com/wbrown/janus-flow/dataflow/view"
)

// Context provides annotation points for flow evaluation tracking.
type Context interface {
	// Run lifecycle
	RunBegin(run uint64, dirty int)
	// Round times fn, which evaluates batch and writes the results back.
	Round(round int, batch []string, dirty int, fn func() error) error
	RunComplete(stats RunStats, changes int, err error)

	// Node evaluation. May be called concurrently for nodes of one round.
	EvaluateNode(id string, kind view.Kind, fn func() (*dataflow.Relation, bool, error)) (*dataflow.Relation, bool, error)
	NodeChanged(id string, added, removed int)

	// Table writes
	TableWrite(id, op string, size int, changed bool)

	Collector() *annotations.Collector
}

// BaseContext provides a no-op implementation with zero overhead.
type BaseContext struct{}

// NewContext creates an appropriate context based on whether annotations are needed.
func NewContext(handler annotations.Handler) Context {
	if handler == nil {
		return BaseContext{}
	}
	return &AnnotatedContext{collector: annotations.NewCollector(handler)}
}

// BaseContext implementations - all are simple pass-throughs

func (BaseContext) RunBegin(uint64, int)                 {}
func (BaseContext) RunComplete(RunStats, int, error)     {}
func (BaseContext) NodeChanged(string, int, int)         {}
func (BaseContext) TableWrite(string, string, int, bool) {}
func (BaseContext) Collector() *annotations.Collector    { return nil }

func (BaseContext) Round(_ int, _ []string, _ int, fn func() error) error {
	return fn()
}

func (BaseContext) EvaluateNode(_ string, _ view.Kind, fn func() (*dataflow.Relation, bool, error)) (*dataflow.Relation, bool, error) {
	return fn()
}

// AnnotatedContext provides full annotation tracking
type AnnotatedContext struct {
	collector *annotations.Collector
	runStart  time.Time
}

func (c *AnnotatedContext) RunBegin(run uint64, dirty int) {
	c.runStart = time.Now()
	c.collector.Add(annotations.Event{
		Name:  annotations.RunBegin,
		Start: c.runStart,
		End:   c.runStart,
		Data: map[string]interface{}{
			"run":         run,
			"dirty.count": dirty,
		},
	})
}

func (c *AnnotatedContext) Round(round int, batch []string, dirty int, fn func() error) error {
	start := time.Now()
	err := fn()
	data := map[string]interface{}{
		"round":       round,
		"batch":       batch,
		"dirty.count": dirty,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	c.collector.AddTiming(annotations.Round, start, data)
	return err
}

func (c *AnnotatedContext) RunComplete(stats RunStats, changes int, err error) {
	data := map[string]interface{}{
		"run":         stats.Run,
		"rounds":      stats.Rounds,
		"evaluations": stats.Evaluations,
		"changes":     changes,
		"success":     err == nil,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	c.collector.AddTiming(annotations.RunComplete, c.runStart, data)
}

func (c *AnnotatedContext) EvaluateNode(id string, kind view.Kind, fn func() (*dataflow.Relation, bool, error)) (*dataflow.Relation, bool, error) {
	start := time.Now()
	out, recomputed, err := fn()
	if err != nil {
		c.collector.AddTiming(annotations.ErrorEvaluation, start, map[string]interface{}{
			"node":  id,
			"kind":  kind.String(),
			"error": err.Error(),
		})
		return out, recomputed, err
	}
	c.collector.AddTiming(annotations.NodeEvaluated, start, map[string]interface{}{
		"node":        id,
		"kind":        kind.String(),
		"fields":      out.Fields(),
		"tuple.count": out.Len(),
	})
	return out, recomputed, nil
}

func (c *AnnotatedContext) NodeChanged(id string, added, removed int) {
	now := time.Now()
	c.collector.Add(annotations.Event{
		Name:  annotations.NodeChanged,
		Start: now,
		End:   now,
		Data: map[string]interface{}{
			"node":    id,
			"added":   added,
			"removed": removed,
		},
	})
}

func (c *AnnotatedContext) TableWrite(id, op string, size int, changed bool) {
	now := time.Now()
	c.collector.Add(annotations.Event{
		Name:  annotations.TableWrite,
		Start: now,
		End:   now,
		Data: map[string]interface{}{
			"node":        id,
			"op":          op,
			"tuple.count": size,
			"changed":     changed,
		},
	})
}

func (c *AnnotatedContext) Collector() *annotations.Collector {
	return c.collector
}
