package phases

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/engine"
	"github.com/xidis/fabdeploy/pkg/fabric"
	"github.com/xidis/fabdeploy/pkg/store"
)

// StorageExport exposes each local namespace as an NVMe-oF export on
// its owning node.
type StorageExport struct {
	exports fabric.ExportClient
}

// NewStorageExport builds the storage export phase.
func NewStorageExport(exports fabric.ExportClient) *StorageExport {
	return &StorageExport{exports: exports}
}

func (p *StorageExport) Name() string { return engine.PhaseStorageExport }

func (p *StorageExport) Dependencies() []string {
	return []string{engine.PhasePrecheck}
}

// Plan yields one resource per export target, keyed by owning node
// and target.
func (p *StorageExport) Plan(ctx context.Context, cfg *config.FabricConfig, st store.Store) ([]engine.Resource, error) {
	resources := make([]engine.Resource, 0, len(cfg.ExportTargets))
	for _, tgt := range cfg.ExportTargets {
		resources = append(resources, engine.Resource{
			Key:         exportKey(tgt.NodeID, tgt.ID),
			Description: fmt.Sprintf("export %s on %s (%s)", tgt.ID, tgt.NodeID, tgt.Size),
		})
	}
	return resources, nil
}

// Apply creates the export unless the node already serves it.
func (p *StorageExport) Apply(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	node, tgt, err := p.resolve(res, cfg)
	if err != nil {
		return err
	}

	existing, err := p.exports.ListExports(ctx, node)
	if err != nil {
		return err
	}
	nqn := fabric.NQN(node.ID, tgt.ID)
	if slices.Contains(existing, nqn) {
		log.Debug().Str("nqn", nqn).Msg("export already present")
		return nil
	}

	if err := p.exports.CreateExport(ctx, node, tgt); err != nil {
		return err
	}
	log.Info().Str("nqn", nqn).Str("node", node.ID).Msg("export created")
	return nil
}

// Verify confirms the export's namespace is enabled on the node.
func (p *StorageExport) Verify(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	node, tgt, err := p.resolve(res, cfg)
	if err != nil {
		return err
	}
	return p.exports.VerifyExport(ctx, node, tgt)
}

// Destroy removes the export from the node.
func (p *StorageExport) Destroy(ctx context.Context, res engine.Resource, cfg *config.FabricConfig, st store.Store) error {
	node, tgt, err := p.resolve(res, cfg)
	if err != nil {
		return err
	}
	return p.exports.DeleteExport(ctx, node, tgt)
}

func (p *StorageExport) resolve(res engine.Resource, cfg *config.FabricConfig) (config.Node, config.ExportTarget, error) {
	nodeID, targetID, ok := splitExportKey(res.Key)
	if !ok {
		return config.Node{}, config.ExportTarget{}, fmt.Errorf("malformed export key %q", res.Key)
	}
	node, ok := cfg.NodeByID(nodeID)
	if !ok {
		return config.Node{}, config.ExportTarget{}, fmt.Errorf("unknown node %q", nodeID)
	}
	tgt, ok := cfg.TargetByID(targetID)
	if !ok {
		return config.Node{}, config.ExportTarget{}, fmt.Errorf("unknown export target %q", targetID)
	}
	return node, tgt, nil
}
