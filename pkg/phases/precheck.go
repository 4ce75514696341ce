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

// Precheck confirms every storage node is reachable and able to serve
// NVMe-oF exports before anything mutates.
type Precheck struct {
	exports fabric.ExportClient
}

// NewPrecheck builds the precheck phase.
func NewPrecheck(exports fabric.ExportClient) *Precheck {
	return &Precheck{exports: exports}
}

func (p *Precheck) Name() string { return engine.PhasePrecheck }

func (p *Precheck) Dependencies() []string { return nil }

// Plan yields one resource per storage node.
func (p *Precheck) Plan(ctx context.Context, cfg *config.FabricConfig, st store.Store) ([]engine.Resource, error) {
	resources := make([]engine.Resource, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		resources = append(resources, engine.Resource{
			Key:         "node/" + node.ID,
			Description: fmt.Sprintf("node %s at %s", node.ID, node.FabricAddress),
		})
	}
	return resources, nil
}

// Apply checks the node. Prechecks never mutate, so apply and verify
// coincide.
func (p *Precheck) Apply(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	return p.check(ctx, res, cfg)
}

func (p *Precheck) Verify(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	return p.check(ctx, res, cfg)
}

func (p *Precheck) check(ctx context.Context, res engine.Resource, cfg *config.FabricConfig) error {
	nodeID := nodeKeyID(res.Key)
	node, ok := cfg.NodeByID(nodeID)
	if !ok {
		return fmt.Errorf("unknown node %q", nodeID)
	}
	if err := p.exports.CheckNode(ctx, node); err != nil {
		return err
	}
	log.Debug().Str("node", node.ID).Msg("precheck passed")
	return nil
}
