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

const stateConnected = "connected"

// AggregatorConnect attaches the aggregator to every export.
type AggregatorConnect struct {
	aggregator fabric.AggregatorClient
}

// NewAggregatorConnect builds the aggregator connect phase.
func NewAggregatorConnect(aggregator fabric.AggregatorClient) *AggregatorConnect {
	return &AggregatorConnect{aggregator: aggregator}
}

func (p *AggregatorConnect) Name() string { return engine.PhaseAggregatorConnect }

func (p *AggregatorConnect) Dependencies() []string {
	return []string{engine.PhaseStorageExport}
}

// Plan yields one attachment per export target.
func (p *AggregatorConnect) Plan(ctx context.Context, cfg *config.FabricConfig, st store.Store) ([]engine.Resource, error) {
	resources := make([]engine.Resource, 0, len(cfg.ExportTargets))
	for _, tgt := range cfg.ExportTargets {
		resources = append(resources, engine.Resource{
			Key:         exportKey(tgt.NodeID, tgt.ID),
			Description: fmt.Sprintf("attach %s", fabric.NQN(tgt.NodeID, tgt.ID)),
		})
	}
	return resources, nil
}

// Apply connects the aggregator to the export unless already attached.
func (p *AggregatorConnect) Apply(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	export, err := p.resolve(res, cfg)
	if err != nil {
		return err
	}

	conn, found, err := p.aggregator.ConnectionStatus(ctx, export.NQN)
	if err != nil {
		return err
	}
	if found && conn.State == stateConnected {
		log.Debug().Str("nqn", export.NQN).Msg("already attached")
		return nil
	}

	if err := p.aggregator.Connect(ctx, export); err != nil {
		return err
	}
	log.Info().Str("nqn", export.NQN).Msg("aggregator attached")
	return nil
}

// Verify confirms the attachment exists and is in the connected state.
func (p *AggregatorConnect) Verify(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	export, err := p.resolve(res, cfg)
	if err != nil {
		return err
	}
	conn, found, err := p.aggregator.ConnectionStatus(ctx, export.NQN)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no attachment for %s", export.NQN)
	}
	if conn.State != stateConnected {
		return fmt.Errorf("attachment %s in state %q", export.NQN, conn.State)
	}
	return nil
}

// Destroy detaches the aggregator from the export.
func (p *AggregatorConnect) Destroy(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	export, err := p.resolve(res, cfg)
	if err != nil {
		return err
	}
	return p.aggregator.Disconnect(ctx, export.NQN)
}

func (p *AggregatorConnect) resolve(res engine.Resource, cfg *config.FabricConfig) (fabric.Export, error) {
	nodeID, targetID, ok := splitExportKey(res.Key)
	if !ok {
		return fabric.Export{}, fmt.Errorf("malformed export key %q", res.Key)
	}
	node, ok := cfg.NodeByID(nodeID)
	if !ok {
		return fabric.Export{}, fmt.Errorf("unknown node %q", nodeID)
	}
	tgt, ok := cfg.TargetByID(targetID)
	if !ok {
		return fabric.Export{}, fmt.Errorf("unknown export target %q", targetID)
	}
	return fabric.Export{
		NQN:       fabric.NQN(node.ID, tgt.ID),
		NodeID:    node.ID,
		TargetID:  tgt.ID,
		Address:   node.FabricAddress,
		SizeBytes: tgt.SizeBytes,
	}, nil
}
