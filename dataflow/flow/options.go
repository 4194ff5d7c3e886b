package flow

import (
	"github.com/wbrown/janus-flow/dataflow/annotations"
)

// Options configures a Flow.
type Options struct {
	// Workers bounds how many nodes of one round are evaluated concurrently.
	// 1 evaluates sequentially; 0 or less uses runtime.NumCPU.
	Workers int

	// MaxRounds, when positive, aborts a run that has not reached a fixpoint
	// after that many rounds. Diagnostic only: recursive flows that never
	// converge are a modelling error.
	MaxRounds int

	// Handler receives annotation events. Nil disables annotations.
	Handler annotations.Handler

	// Sink receives the change log of every successful run that changed
	// something.
	Sink ChangeSink
}

// DefaultOptions evaluates sequentially with no round ceiling.
func DefaultOptions() Options {
	return Options{Workers: 1}
}

// Option mutates Options.
type Option func(*Options)

// WithWorkers sets Options.Workers.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithMaxRounds sets Options.MaxRounds.
func WithMaxRounds(n int) Option {
	return func(o *Options) { o.MaxRounds = n }
}

// WithHandler sets Options.Handler.
func WithHandler(h annotations.Handler) Option {
	return func(o *Options) { o.Handler = h }
}

// WithSink sets Options.Sink.
func WithSink(s ChangeSink) Option {
	return func(o *Options) { o.Sink = s }
}

// ChangeSink consumes change logs, e.g. to journal them.
type ChangeSink interface {
	Record(run uint64, changes []Change) error
}
