package engine

import (
	"context"
	"testing"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/store"
)

type namedPhase struct {
	name string
	deps []string
}

func (p *namedPhase) Name() string           { return p.name }
func (p *namedPhase) Dependencies() []string { return p.deps }
func (p *namedPhase) Plan(context.Context, *config.FabricConfig, store.Store) ([]Resource, error) {
	return nil, nil
}
func (p *namedPhase) Apply(context.Context, Resource, *config.FabricConfig, store.Store) error {
	return nil
}
func (p *namedPhase) Verify(context.Context, Resource, *config.FabricConfig, store.Store) error {
	return nil
}

func TestRegistryOrderAndLookup(t *testing.T) {
	a := &namedPhase{name: "a"}
	b := &namedPhase{name: "b", deps: []string{"a"}}

	reg, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v", names)
	}
	if got, ok := reg.Get("b"); !ok || got != Phase(b) {
		t.Error("Get(b) failed")
	}
	if _, ok := reg.Get("c"); ok {
		t.Error("Get(c) should miss")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(&namedPhase{name: "a"}, &namedPhase{name: "a"})
	if err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestRegistryRejectsForwardDependency(t *testing.T) {
	// "a" depends on "b" which registers later; ordering must be
	// resolvable at construction.
	_, err := NewRegistry(&namedPhase{name: "a", deps: []string{"b"}}, &namedPhase{name: "b"})
	if err == nil {
		t.Fatal("forward dependency accepted")
	}
}

func TestRegistryRejectsReservedName(t *testing.T) {
	if _, err := NewRegistry(&namedPhase{name: PhaseAll}); err == nil {
		t.Fatal("reserved name accepted")
	}
	if _, err := NewRegistry(&namedPhase{name: ""}); err == nil {
		t.Fatal("empty name accepted")
	}
}
