package phases

import (
	"context"
	"fmt"
	"strings"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/engine"
	"github.com/xidis/fabdeploy/pkg/store"
)

// Verify walks every resource the mutating phases planned and
// re-checks it against the live fabric. It mutates nothing; its own
// records land in the verified status.
type Verify struct {
	checked []engine.Phase
}

// NewVerify builds the verification phase over the phases it audits.
func NewVerify(checked ...engine.Phase) *Verify {
	return &Verify{checked: checked}
}

func (p *Verify) Name() string { return engine.PhaseVerify }

// Dependencies covers every audited phase.
func (p *Verify) Dependencies() []string {
	deps := make([]string, 0, len(p.checked))
	for _, ph := range p.checked {
		deps = append(deps, ph.Name())
	}
	return deps
}

// Plan yields the union of the audited phases' plans, each key
// prefixed with the owning phase name.
func (p *Verify) Plan(ctx context.Context, cfg *config.FabricConfig, st store.Store) ([]engine.Resource, error) {
	var resources []engine.Resource
	for _, ph := range p.checked {
		planned, err := ph.Plan(ctx, cfg, st)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", ph.Name(), err)
		}
		for _, res := range planned {
			resources = append(resources, engine.Resource{
				Key:         ph.Name() + "/" + res.Key,
				Description: "verify " + res.Description,
			})
		}
	}
	return resources, nil
}

// Apply re-checks one resource: its record must be satisfied in the
// state store and the audited phase's read-only check must pass.
func (p *Verify) Apply(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	return p.recheck(ctx, res, cfg, st)
}

func (p *Verify) Verify(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	return p.recheck(ctx, res, cfg, st)
}

func (p *Verify) recheck(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	phaseName, key, ok := strings.Cut(res.Key, "/")
	if !ok {
		return fmt.Errorf("malformed verify key %q", res.Key)
	}

	var owner engine.Phase
	for _, ph := range p.checked {
		if ph.Name() == phaseName {
			owner = ph
			break
		}
	}
	if owner == nil {
		return fmt.Errorf("verify key %q names unaudited phase %q", res.Key, phaseName)
	}

	rec, found, err := st.Get(ctx, phaseName, key)
	if err != nil {
		return err
	}
	if !found || !rec.Status.Satisfied() {
		return fmt.Errorf("%s/%s not applied", phaseName, key)
	}

	return owner.Verify(ctx, engine.Resource{Key: key, Description: res.Description}, cfg, st)
}
