package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/xidis/fabdeploy/pkg/store"
)

var statusPhase string

// runLister is satisfied by store backends that keep run history.
type runLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

const statusRunLimit = 10

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recorded state of every resource",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		settings, err := loadSettings(settingsPath)
		if err != nil {
			return err
		}
		st, err := openStore(ctx, settings)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		printRecords(filterByPhase(records, statusPhase))

		if rl, ok := st.(runLister); ok {
			runs, err := rl.ListRuns(ctx, statusRunLimit)
			if err != nil {
				return err
			}
			printRuns(runs)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusPhase, "phase", "", "show only this phase's records")
}

// filterByPhase narrows a snapshot to one phase. Empty selects all.
func filterByPhase(records []store.Record, phase string) []store.Record {
	if phase == "" {
		return records
	}
	out := make([]store.Record, 0, len(records))
	for _, rec := range records {
		if rec.Phase == phase {
			out = append(out, rec)
		}
	}
	return out
}

func printRecords(records []store.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Phase", "Resource", "Status", "Attempts", "Updated", "Reason"})
	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.Phase,
			rec.ResourceKey,
			rec.Status,
			rec.Attempts,
			rec.UpdatedAt.Format("2006-01-02 15:04:05"),
			rec.Reason,
		})
	}
	t.Render()
}

func printRuns(runs []store.Run) {
	if len(runs) == 0 {
		return
	}

	fmt.Println("\nrecent runs:")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Phase", "Status", "Started", "Error"})
	for _, run := range runs {
		phase := run.RequestedPhase
		if phase == "" {
			phase = "all"
		}
		errMsg := ""
		if run.Error != nil {
			errMsg = *run.Error
		}
		t.AppendRow(table.Row{
			run.ID,
			phase,
			run.Status,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			errMsg,
		})
	}
	t.Render()
}
