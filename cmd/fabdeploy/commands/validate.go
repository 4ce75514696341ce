package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xidis/fabdeploy/pkg/config"
)

var validateConfigPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a fabric config without touching anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(validateConfigPath)
		if err != nil {
			return err
		}
		fmt.Printf("config valid: %d nodes, %d export targets, %s aggregate %q\n",
			len(cfg.Nodes), len(cfg.ExportTargets), cfg.RAID.Level, cfg.RAID.AggregateID)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "c", "", "fabric config file (JSON)")
	_ = validateCmd.MarkFlagRequired("config")
}
