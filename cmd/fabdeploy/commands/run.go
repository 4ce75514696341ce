package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/engine"
	"github.com/xidis/fabdeploy/pkg/store"
)

var (
	runConfigPath string
	runPhase      string
	runDryRun     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the deployment pipeline",
	Long: `Run executes the deployment phases in dependency order. A previous
partial run resumes: resources already applied are skipped. With
--phase a single phase runs, provided its dependencies completed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		settings, err := loadSettings(settingsPath)
		if err != nil {
			return err
		}
		cfg, err := config.Load(runConfigPath)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, settings)
		if err != nil {
			return err
		}
		defer st.Close()

		pipeline, closeClients, err := buildPipeline(settings, st, cfg, runDryRun)
		if err != nil {
			return err
		}
		defer closeClients()

		run, runErr := pipeline.Run(ctx, cfg, runPhase)
		if run != nil {
			printRun(run, runDryRun)
		}
		if runErr != nil {
			return runErr
		}

		log.Info().Str("run", run.ID).Dur("duration", run.Duration()).Msg("pipeline completed")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "fabric config file (JSON)")
	runCmd.Flags().StringVar(&runPhase, "phase", "", "run a single phase instead of the full chain")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "plan only, mutate nothing")
	_ = runCmd.MarkFlagRequired("config")
}

// printRun renders the per-phase outcome table.
func printRun(run *engine.PipelineRun, dryRun bool) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Phase", "Resources", "Applied", "Verified", "Failed", "Pending"})

	for _, pr := range run.Phases {
		counts := pr.Counts()
		t.AppendRow(table.Row{
			pr.Phase,
			len(pr.Records),
			counts[store.StatusApplied],
			counts[store.StatusVerified],
			counts[store.StatusFailed],
			counts[store.StatusPending],
		})
	}
	t.Render()

	if dryRun {
		fmt.Println("dry run: nothing was changed")
	}
	fmt.Println(run.Summary())
}
