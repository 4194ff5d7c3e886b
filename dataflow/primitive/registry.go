// Package primitive holds named Primitives: a thread-safe registry and the
// built-in reducers and row generators that topology files can refer to.
package primitive

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow/view"
)

// ErrUnknownPrimitive is returned when a name is not registered.
var ErrUnknownPrimitive = errors.New("unknown primitive")

// Registry maps names to Primitives. The zero value is not usable; call
// NewRegistry or Builtins.
type Registry struct {
	mu    sync.RWMutex
	prims map[string]*view.Primitive
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{prims: make(map[string]*view.Primitive)}
}

// Builtins returns a new registry preloaded with the built-in primitives.
func Builtins() *Registry {
	r := NewRegistry()
	for _, p := range builtins() {
		r.MustRegister(p)
	}
	return r
}

// Register adds p, replacing any primitive of the same name.
func (r *Registry) Register(p *view.Primitive) error {
	if p == nil || p.Name == "" {
		return errors.New("primitive must have a name")
	}
	if p.Rows == nil && p.Reduce == nil {
		return errors.Newf("primitive %s has neither a row generator nor a reducer", p.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prims[p.Name] = p
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(p *view.Primitive) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Lookup returns the primitive registered under name.
func (r *Registry) Lookup(name string) (*view.Primitive, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.prims[name]; ok {
		return p, nil
	}
	return nil, errors.Mark(errors.Newf("primitive %q is not registered", name), ErrUnknownPrimitive)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.prims))
	for name := range r.prims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
