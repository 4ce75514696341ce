// Package commands implements the fabdeploy CLI.
package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/engine"
	"github.com/xidis/fabdeploy/pkg/store"
	"github.com/xidis/fabdeploy/pkg/telemetry"
)

// Exit codes, one per error class, so callers and scripts can branch
// on the failure mode.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitConfig     = 2
	ExitDependency = 3
	ExitApply      = 4
	ExitStateStore = 5
)

var (
	settingsPath string
	statePath    string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "fabdeploy",
	Short: "Deploy an NVMe-oF storage fabric",
	Long: `fabdeploy disaggregates local storage into a clustered fabric:
it exports local namespaces over NVMe-oF, attaches the aggregator,
builds the Opus aggregate, re-exposes it downstream and verifies
the result. Runs are idempotent and resume from the state file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		settings := loadedSettings()
		level := "info"
		if verbose {
			level = "debug"
		}
		telemetry.SetupLogger(telemetry.LogConfig{Level: level, JSON: settings.Log.JSON})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "settings file (YAML)")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "state file path (overrides settings)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(teardownCmd)
}

// Execute runs the CLI to completion.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an error to its process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return ExitStateStore
	}
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		switch engErr.Class {
		case engine.ClassDependency:
			return ExitDependency
		case engine.ClassApply, engine.ClassTimeout:
			return ExitApply
		}
	}
	return ExitFailure
}
