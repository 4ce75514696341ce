package commands

import (
	"context"
	"fmt"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/engine"
	"github.com/xidis/fabdeploy/pkg/fabric"
	"github.com/xidis/fabdeploy/pkg/phases"
	"github.com/xidis/fabdeploy/pkg/store"
	"github.com/xidis/fabdeploy/pkg/telemetry"
)

// openStore opens the configured state backend.
func openStore(ctx context.Context, settings Settings) (store.Store, error) {
	path := settings.resolvedStatePath()
	switch settings.State.Backend {
	case "sqlite":
		return store.NewSQLiteStore(ctx, path)
	default:
		return store.NewFileStore(path)
	}
}

// buildClients assembles the external collaborators from the fabric
// document and operator settings. The returned closer shuts down the
// cached SSH connections.
func buildClients(settings Settings, cfg *config.FabricConfig) (fabric.Clients, func() error) {
	nvme := fabric.NewNVMeTargetClient(fabric.NVMeTargetOptions{
		User:           settings.SSH.User,
		PrivateKeyPath: settings.SSH.PrivateKeyPath,
		SSHPort:        settings.SSH.Port,
	})
	return fabric.Clients{
		Exports:    nvme,
		Aggregator: fabric.NewHTTPAggregatorClient(cfg.Aggregator.Endpoint, cfg.Aggregator.CredentialsRef),
		Opus:       fabric.NewHTTPOpusClient(cfg.Aggregator.Endpoint, cfg.Aggregator.CredentialsRef),
	}, nvme.Close
}

// buildPipeline wires store, clients, phases and metrics into a
// runnable pipeline.
func buildPipeline(settings Settings, st store.Store, cfg *config.FabricConfig, dryRun bool) (*engine.Pipeline, func() error, error) {
	opts, err := settings.engineOptions(dryRun)
	if err != nil {
		return nil, nil, err
	}

	clients, closeClients := buildClients(settings, cfg)
	reg, err := engine.NewRegistry(phases.Default(clients)...)
	if err != nil {
		return nil, nil, fmt.Errorf("assemble phases: %w", err)
	}

	metrics, promReg := telemetry.NewMetrics()
	if settings.Metrics.Listen != "" {
		telemetry.ServeMetrics(settings.Metrics.Listen, promReg)
	}

	return engine.New(reg, st, opts, metrics), closeClients, nil
}
