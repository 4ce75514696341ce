package engine

import (
	"fmt"
)

// Registry is the static ordered table of pipeline phases.
// Registration order is execution order, and every dependency must
// name an already-registered phase, so ordering problems surface at
// construction rather than mid-run.
type Registry struct {
	ordered []Phase
	byName  map[string]Phase
}

// NewRegistry builds a registry from phases in execution order.
func NewRegistry(phases ...Phase) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Phase, len(phases)),
	}

	for _, p := range phases {
		name := p.Name()
		if name == "" || name == PhaseAll {
			return nil, fmt.Errorf("invalid phase name %q", name)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("phase %q registered twice", name)
		}
		for _, dep := range p.Dependencies() {
			if _, ok := r.byName[dep]; !ok {
				return nil, fmt.Errorf("phase %q depends on %q which is not registered before it", name, dep)
			}
		}
		r.byName[name] = p
		r.ordered = append(r.ordered, p)
	}

	return r, nil
}

// Phases returns all phases in execution order.
func (r *Registry) Phases() []Phase {
	return r.ordered
}

// Get returns the phase with the given name.
func (r *Registry) Get(name string) (Phase, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names returns the phase names in execution order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, p := range r.ordered {
		names = append(names, p.Name())
	}
	return names
}
