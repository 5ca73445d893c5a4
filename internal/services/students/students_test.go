package students

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/campusync/campusync/internal/kv"
	"github.com/campusync/campusync/internal/remote"
	"github.com/campusync/campusync/internal/store"
)

func setupService(t *testing.T, shards []string) (*Service, *store.RecordStore, *remote.Memory) {
	t.Helper()

	recordStore := store.New(kv.NewMemory())
	docStore := remote.NewMemory()
	svc := New(recordStore, docStore, shards, log.New(os.Stderr, "[test] ", 0))
	return svc, recordStore, docStore
}

func TestColdCacheBlockingFetch(t *testing.T) {
	svc, _, docStore := setupService(t, []string{"students_2025", "students_2026"})
	ctx := context.Background()

	if err := docStore.Set(ctx, "students_2025", "R001", remote.Doc{"registerNo": "R001", "name": "Anjali"}, false); err != nil {
		t.Fatalf("remote Set failed: %v", err)
	}
	if err := docStore.Set(ctx, "students_2026", "R002", remote.Doc{"registerNo": "R002", "name": "Kiran"}, false); err != nil {
		t.Fatalf("remote Set failed: %v", err)
	}

	roster, err := svc.Students(ctx, "staff-1")
	if err != nil {
		t.Fatalf("Students failed: %v", err)
	}
	if len(roster) != 2 {
		t.Errorf("expected 2 students from blocking fetch, got %d", len(roster))
	}
}

func TestWarmCacheReturnsLocalImmediately(t *testing.T) {
	svc, recordStore, docStore := setupService(t, []string{"students_2026"})
	ctx := context.Background()

	if _, err := recordStore.Save(ctx, "staff-1", Category, "R001",
		map[string]any{"registerNo": "R001", "name": "Anjali"}, true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := docStore.Set(ctx, "students_2026", "R002", remote.Doc{"registerNo": "R002", "name": "Kiran"}, false); err != nil {
		t.Fatalf("remote Set failed: %v", err)
	}

	roster, err := svc.Students(ctx, "staff-1")
	if err != nil {
		t.Fatalf("Students failed: %v", err)
	}
	// The warm read serves the cache; R002 arrives via the background
	// refresh and is only visible on a later read.
	if len(roster) != 1 {
		t.Fatalf("expected warm read to serve 1 cached student, got %d", len(roster))
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		all, err := recordStore.GetAll(ctx, "staff-1", Category)
		if err != nil {
			t.Fatalf("GetAll failed: %v", err)
		}
		if len(all) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("background refresh never landed, cache has %d records", len(all))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMergeOnReimport(t *testing.T) {
	svc, recordStore, _ := setupService(t, nil)
	ctx := context.Background()

	if _, err := svc.Import(ctx, "staff-1", []map[string]any{
		{"registerNo": "R001", "program": "MCA"},
	}); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if _, err := svc.Import(ctx, "staff-1", []map[string]any{
		{"registerNo": "R001", "program": "MCA", "phone": "123"},
	}); err != nil {
		t.Fatalf("re-Import failed: %v", err)
	}

	rec, err := recordStore.Get(ctx, "staff-1", Category, "R001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Data["program"] != "MCA" {
		t.Errorf("merge lost program field: %v", rec.Data["program"])
	}
	if rec.Data["phone"] != "123" {
		t.Errorf("merge missing phone field: %v", rec.Data["phone"])
	}

	all, err := recordStore.GetAll(ctx, "staff-1", Category)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("re-import duplicated the record: %d records", len(all))
	}
}

func TestImportWritesArePending(t *testing.T) {
	svc, recordStore, _ := setupService(t, nil)
	ctx := context.Background()

	if _, err := svc.Import(ctx, "staff-1", []map[string]any{
		{"registerNo": "R001", "name": "Anjali"},
	}); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	pending, err := recordStore.PendingSync(ctx, "staff-1", Category)
	if err != nil {
		t.Fatalf("PendingSync failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("imported entry should be pending push, got %d pending", len(pending))
	}
}

func TestImportRejectsMissingRegisterNo(t *testing.T) {
	svc, _, _ := setupService(t, nil)

	if _, err := svc.Import(context.Background(), "staff-1", []map[string]any{
		{"name": "No Register"},
	}); err == nil {
		t.Error("expected import of entry without registerNo to fail")
	}
}

func TestRefreshKeepsUnpushedEdits(t *testing.T) {
	svc, recordStore, docStore := setupService(t, []string{"students_2026"})
	ctx := context.Background()

	// The local edit conflicts with the remote value and has not been
	// pushed yet; the refresh must not clobber it.
	if _, err := recordStore.Save(ctx, "staff-1", Category, "R001",
		map[string]any{"registerNo": "R001", "program": "MBA"}, false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := docStore.Set(ctx, "students_2026", "R001",
		remote.Doc{"registerNo": "R001", "program": "MCA", "phone": "123"}, false); err != nil {
		t.Fatalf("remote Set failed: %v", err)
	}

	svc.refresh("staff-1")

	rec, err := recordStore.Get(ctx, "staff-1", Category, "R001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Data["program"] != "MBA" {
		t.Errorf("unpushed local edit lost: program = %v", rec.Data["program"])
	}
	if rec.Data["phone"] != "123" {
		t.Errorf("refresh should still fill non-conflicting fields: %v", rec.Data)
	}
	if rec.Synced {
		t.Error("record must stay pending until its push succeeds")
	}
}

func TestRefreshPreservesDirtyFlag(t *testing.T) {
	svc, recordStore, docStore := setupService(t, []string{"students_2026"})
	ctx := context.Background()

	// A locally-dirty record must stay dirty after a refresh merges
	// remote fields in.
	if _, err := recordStore.Save(ctx, "staff-1", Category, "R001",
		map[string]any{"registerNo": "R001", "program": "MCA"}, false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := docStore.Set(ctx, "students_2026", "R001", remote.Doc{"registerNo": "R001", "phone": "123"}, false); err != nil {
		t.Fatalf("remote Set failed: %v", err)
	}

	svc.refresh("staff-1")

	rec, err := recordStore.Get(ctx, "staff-1", Category, "R001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Synced {
		t.Error("refresh must not clear the pending flag of a dirty record")
	}
	if rec.Data["phone"] != "123" || rec.Data["program"] != "MCA" {
		t.Errorf("refresh merge lost fields: %v", rec.Data)
	}
}
