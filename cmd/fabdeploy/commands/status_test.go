package commands

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xidis/fabdeploy/pkg/store"
)

func TestFilterByPhase(t *testing.T) {
	records := []store.Record{
		{Phase: "precheck", ResourceKey: "node/node-a", Status: store.StatusApplied},
		{Phase: "storage_export", ResourceKey: "node-a/vol0", Status: store.StatusApplied},
		{Phase: "storage_export", ResourceKey: "node-b/vol1", Status: store.StatusFailed},
	}

	all := filterByPhase(records, "")
	if len(all) != 3 {
		t.Errorf("empty filter kept %d records", len(all))
	}

	exports := filterByPhase(records, "storage_export")
	if len(exports) != 2 {
		t.Fatalf("storage_export filter kept %d records", len(exports))
	}
	for _, rec := range exports {
		if rec.Phase != "storage_export" {
			t.Errorf("foreign record %+v", rec)
		}
	}

	if got := filterByPhase(records, "verify"); len(got) != 0 {
		t.Errorf("verify filter kept %d records", len(got))
	}
}

func TestStatusRunHistoryBackends(t *testing.T) {
	ctx := context.Background()

	var settings Settings
	settings.State.Backend = "sqlite"
	settings.State.Path = filepath.Join(t.TempDir(), "state.db")

	st, err := openStore(ctx, settings)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer st.Close()

	rl, ok := st.(runLister)
	if !ok {
		t.Fatal("sqlite backend does not expose run history")
	}
	if err := st.(*store.SQLiteStore).CreateRun(ctx, store.Run{
		ID: "run-1", RequestedPhase: "all", Status: "completed", StartedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	runs, err := rl.ListRuns(ctx, statusRunLimit)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns: %v, %d runs", err, len(runs))
	}

	// The file backend keeps no history; status must simply skip the
	// runs table.
	settings.State.Backend = "file"
	settings.State.Path = filepath.Join(t.TempDir(), "state.json")
	fileStore, err := openStore(ctx, settings)
	if err != nil {
		t.Fatal(err)
	}
	defer fileStore.Close()
	if _, ok := fileStore.(runLister); ok {
		t.Error("file backend unexpectedly exposes run history")
	}
}
