package engine

import (
	"context"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/store"
)

// Phase is one unit of the deployment pipeline. Implementations
// encapsulate all calls to a single external collaborator.
//
// Apply must be idempotent: applying a resource already in the
// desired state is a no-op that succeeds without re-performing the
// external mutation. Verify must never mutate.
type Phase interface {
	// Name is the stable identifier used for CLI selection and state
	// store keys.
	Name() string

	// Dependencies lists phase names that must have completed (every
	// planned resource applied or verified) before this phase may run.
	// Enforced by the engine, not the phase.
	Dependencies() []string

	// Plan computes the resources this phase is responsible for. It is
	// a pure function of config and observed state, which makes dry
	// runs possible.
	Plan(ctx context.Context, cfg *config.FabricConfig, st store.Store) ([]Resource, error)

	// Apply reconciles one resource toward its desired spec, issuing
	// only the minimal delta against the external collaborator.
	Apply(ctx context.Context, res Resource, cfg *config.FabricConfig, st store.Store) error

	// Verify is a read-only check that the resource matches its
	// desired spec.
	Verify(ctx context.Context, res Resource, cfg *config.FabricConfig, st store.Store) error
}

// Destroyer is implemented by phases whose resources can be torn
// down. The teardown command walks phases in reverse and invokes it.
type Destroyer interface {
	// Destroy removes the resource from the external collaborator.
	// Idempotent: destroying an absent resource succeeds.
	Destroy(ctx context.Context, res Resource, cfg *config.FabricConfig, st store.Store) error
}
