package phases

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/engine"
	"github.com/xidis/fabdeploy/pkg/fabric"
	"github.com/xidis/fabdeploy/pkg/store"
)

const stateExported = "exported"

// Reexport re-exposes the aggregate to the downstream targets.
type Reexport struct {
	aggregator fabric.AggregatorClient
}

// NewReexport builds the re-export phase.
func NewReexport(aggregator fabric.AggregatorClient) *Reexport {
	return &Reexport{aggregator: aggregator}
}

func (p *Reexport) Name() string { return engine.PhaseReexport }

func (p *Reexport) Dependencies() []string {
	return []string{engine.PhaseOpusRAID}
}

// Plan yields one resource per downstream target.
func (p *Reexport) Plan(ctx context.Context, cfg *config.FabricConfig, st store.Store) ([]engine.Resource, error) {
	resources := make([]engine.Resource, 0, len(cfg.Reexport.TargetIDs))
	for _, id := range cfg.Reexport.TargetIDs {
		resources = append(resources, engine.Resource{
			Key:         id,
			Description: fmt.Sprintf("re-export %s of aggregate %s", id, cfg.RAID.AggregateID),
		})
	}
	return resources, nil
}

// Apply creates the re-export unless it already exposes the aggregate.
func (p *Reexport) Apply(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	state, found, err := p.aggregator.ReexportStatus(ctx, res.Key)
	if err != nil {
		return err
	}
	if found {
		if state.AggregateID != cfg.RAID.AggregateID {
			return fmt.Errorf("re-export %s exposes aggregate %s, want %s",
				res.Key, state.AggregateID, cfg.RAID.AggregateID)
		}
		if state.State == stateExported {
			log.Debug().Str("target", res.Key).Msg("re-export already present")
			return nil
		}
	}

	if err := p.aggregator.CreateReexport(ctx, cfg.RAID.AggregateID, res.Key); err != nil {
		return err
	}
	log.Info().Str("target", res.Key).Str("aggregate", cfg.RAID.AggregateID).Msg("re-export created")
	return nil
}

// Verify confirms the re-export exposes the aggregate.
func (p *Reexport) Verify(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	state, found, err := p.aggregator.ReexportStatus(ctx, res.Key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no re-export for %s", res.Key)
	}
	if state.AggregateID != cfg.RAID.AggregateID {
		return fmt.Errorf("re-export %s exposes aggregate %s, want %s",
			res.Key, state.AggregateID, cfg.RAID.AggregateID)
	}
	if state.State != stateExported {
		return fmt.Errorf("re-export %s in state %q", res.Key, state.State)
	}
	return nil
}

// Destroy removes the downstream re-export.
func (p *Reexport) Destroy(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	return p.aggregator.DeleteReexport(ctx, res.Key)
}
