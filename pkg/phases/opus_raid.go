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

const stateOnline = "online"

// OpusRAID builds the Opus aggregate from the attached exports.
type OpusRAID struct {
	opus fabric.OpusClient
}

// NewOpusRAID builds the Opus RAID phase.
func NewOpusRAID(opus fabric.OpusClient) *OpusRAID {
	return &OpusRAID{opus: opus}
}

func (p *OpusRAID) Name() string { return engine.PhaseOpusRAID }

func (p *OpusRAID) Dependencies() []string {
	return []string{engine.PhaseAggregatorConnect}
}

// Plan yields a single resource: the aggregate itself.
func (p *OpusRAID) Plan(ctx context.Context, cfg *config.FabricConfig, st store.Store) ([]engine.Resource, error) {
	return []engine.Resource{{
		Key: "aggregate/" + cfg.RAID.AggregateID,
		Description: fmt.Sprintf("%s aggregate %s over %d members",
			cfg.RAID.Level, cfg.RAID.AggregateID, cfg.RAID.Members),
	}}, nil
}

// Apply creates the aggregate. An existing aggregate with the same
// layout is left alone; a layout mismatch is a terminal failure since
// rebuilding would destroy data.
func (p *OpusRAID) Apply(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	spec := p.spec(cfg)

	state, found, err := p.opus.AggregateStatus(ctx, spec.ID)
	if err != nil {
		return err
	}
	if found {
		if state.Level != spec.Level || len(state.Members) != len(spec.Members) {
			return fmt.Errorf("aggregate %s exists with level %s and %d members, want level %s and %d members",
				spec.ID, state.Level, len(state.Members), spec.Level, len(spec.Members))
		}
		log.Debug().Str("aggregate", spec.ID).Msg("aggregate already built")
		return nil
	}

	if err := p.opus.CreateAggregate(ctx, spec); err != nil {
		return err
	}
	log.Info().
		Str("aggregate", spec.ID).
		Str("level", spec.Level).
		Int("members", len(spec.Members)).
		Msg("aggregate created")
	return nil
}

// Verify confirms the aggregate exists and is online.
func (p *OpusRAID) Verify(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	state, found, err := p.opus.AggregateStatus(ctx, cfg.RAID.AggregateID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("aggregate %s does not exist", cfg.RAID.AggregateID)
	}
	if state.State != stateOnline {
		return fmt.Errorf("aggregate %s in state %q", cfg.RAID.AggregateID, state.State)
	}
	return nil
}

// spec derives the desired aggregate layout. Members are the first
// RAID.Members exports in document order, which keeps the layout
// deterministic across runs.
func (p *OpusRAID) spec(cfg *config.FabricConfig) fabric.AggregateSpec {
	members := make([]string, 0, cfg.RAID.Members)
	for _, tgt := range cfg.ExportTargets {
		if len(members) == cfg.RAID.Members {
			break
		}
		members = append(members, fabric.NQN(tgt.NodeID, tgt.ID))
	}
	return fabric.AggregateSpec{
		ID:      cfg.RAID.AggregateID,
		Level:   cfg.RAID.Level,
		Members: members,
	}
}
