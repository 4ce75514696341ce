package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xidis/fabdeploy/pkg/config"
)

var (
	teardownConfigPath string
	teardownYes        bool
)

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Tear the fabric down in reverse phase order",
	Long: `Teardown removes re-exports, detaches the aggregator and deletes the
exports, walking the phases in reverse. The Opus aggregate itself is
left in place: destroying it discards data and is done through the
aggregator's own tooling.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !teardownYes {
			return fmt.Errorf("teardown is destructive; re-run with --yes to confirm")
		}
		ctx := cmd.Context()

		settings, err := loadSettings(settingsPath)
		if err != nil {
			return err
		}
		cfg, err := config.Load(teardownConfigPath)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, settings)
		if err != nil {
			return err
		}
		defer st.Close()

		pipeline, closeClients, err := buildPipeline(settings, st, cfg, false)
		if err != nil {
			return err
		}
		defer closeClients()

		return pipeline.Teardown(ctx, cfg)
	},
}

func init() {
	teardownCmd.Flags().StringVarP(&teardownConfigPath, "config", "c", "", "fabric config file (JSON)")
	teardownCmd.Flags().BoolVar(&teardownYes, "yes", false, "confirm teardown")
	_ = teardownCmd.MarkFlagRequired("config")
}
