package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	rec := testRecord("opus_raid", "aggregate/agg0", StatusApplied)
	rec.Reason = ""
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found, err := s.Get(ctx, "opus_raid", "aggregate/agg0")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if got.Status != StatusApplied || got.Reason != "" {
		t.Errorf("got %+v", got)
	}

	// Upsert replaces the prior row.
	rec.Status = StatusFailed
	rec.Reason = "aggregate degraded"
	rec.Attempts = 3
	if err := s.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, _, err = s.Get(ctx, "opus_raid", "aggregate/agg0")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || got.Reason != "aggregate degraded" || got.Attempts != 3 {
		t.Errorf("after upsert: %+v", got)
	}
}

func TestSQLiteStoreSnapshotAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	for _, rec := range []Record{
		testRecord("storage_export", "node-b/vol1", StatusApplied),
		testRecord("precheck", "node/node-a", StatusApplied),
	} {
		if err := s.Put(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Phase != "precheck" {
		t.Errorf("snapshot = %+v", recs)
	}

	if err := s.Delete(ctx, "precheck", "node/node-a"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Get(ctx, "precheck", "node/node-a"); found {
		t.Error("record still present after delete")
	}
}

func TestSQLiteStoreRunHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	run := Run{
		ID:             "run-1",
		RequestedPhase: "all",
		Status:         "running",
		StartedAt:      time.Now().UTC(),
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	if err := s.AppendEvent(ctx, Event{
		RunID:       "run-1",
		Phase:       "storage_export",
		ResourceKey: "node-a/vol0",
		Level:       "error",
		Message:     "create export timed out",
		Timestamp:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	msg := "1 resource(s) failed"
	if err := s.CompleteRun(ctx, "run-1", "failed", &msg); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs", len(runs))
	}
	if runs[0].Status != "failed" || runs[0].Error == nil || *runs[0].Error != msg {
		t.Errorf("run = %+v", runs[0])
	}
	if runs[0].CompletedAt == nil {
		t.Error("CompletedAt not recorded")
	}
}

func TestSQLiteStoreCompleteUnknownRun(t *testing.T) {
	s := newTestSQLiteStore(t)
	if err := s.CompleteRun(context.Background(), "absent", "completed", nil); err == nil {
		t.Fatal("completing an unknown run should fail")
	}
}
