package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testRecord(phase, key string, status Status) Record {
	return Record{
		Phase:       phase,
		ResourceKey: key,
		Status:      status,
		Attempts:    1,
		UpdatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer s.Close()

	if _, found, err := s.Get(ctx, "storage_export", "node-a/vol0"); err != nil || found {
		t.Fatalf("Get on empty store: found=%v err=%v", found, err)
	}

	want := testRecord("storage_export", "node-a/vol0", StatusApplied)
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found, err := s.Get(ctx, "storage_export", "node-a/vol0")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if got.Status != StatusApplied || got.Attempts != 1 {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, testRecord("precheck", "node/node-a", StatusApplied)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, testRecord("storage_export", "node-a/vol0", StatusFailed)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// A new process opening the same snapshot sees the records.
	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rec, found, err := reopened.Get(ctx, "storage_export", "node-a/vol0")
	if err != nil || !found {
		t.Fatalf("Get after reopen: found=%v err=%v", found, err)
	}
	if rec.Status != StatusFailed {
		t.Errorf("status = %s, want failed", rec.Status)
	}
}

func TestFileStoreSnapshotOrder(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for _, rec := range []Record{
		testRecord("storage_export", "node-b/vol1", StatusApplied),
		testRecord("precheck", "node/node-a", StatusApplied),
		testRecord("storage_export", "node-a/vol0", StatusApplied),
	} {
		if err := s.Put(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	wantOrder := []string{"node/node-a", "node-a/vol0", "node-b/vol1"}
	if len(recs) != len(wantOrder) {
		t.Fatalf("got %d records, want %d", len(recs), len(wantOrder))
	}
	for i, key := range wantOrder {
		if recs[i].ResourceKey != key {
			t.Errorf("recs[%d].ResourceKey = %q, want %q", i, recs[i].ResourceKey, key)
		}
	}
}

func TestFileStoreDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Put(ctx, testRecord("reexport", "fsclient0", StatusApplied)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "reexport", "fsclient0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := s.Get(ctx, "reexport", "fsclient0"); found {
		t.Error("record still present after delete")
	}

	// Deleting an absent record is a no-op.
	if err := s.Delete(ctx, "reexport", "fsclient0"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestFileStoreRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStore(path)
	if err == nil {
		t.Fatal("corrupt snapshot accepted")
	}
	var storeErr *Error
	if !errors.As(err, &storeErr) {
		t.Fatalf("error %T is not *Error", err)
	}
}

func TestFileStoreRejectsInvalidStatus(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rec := testRecord("precheck", "node/node-a", Status("bogus"))
	if err := s.Put(context.Background(), rec); err == nil {
		t.Fatal("invalid status accepted")
	}
}

func TestStatusSatisfied(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusPending:  false,
		StatusApplied:  true,
		StatusFailed:   false,
		StatusVerified: true,
	} {
		if got := status.Satisfied(); got != want {
			t.Errorf("%s.Satisfied() = %v, want %v", status, got, want)
		}
	}
}
