package daemon

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/campusync/campusync/internal/kv"
	"github.com/campusync/campusync/internal/netcheck"
	"github.com/campusync/campusync/internal/remote"
	"github.com/campusync/campusync/internal/services/students"
	"github.com/campusync/campusync/internal/store"
	"github.com/campusync/campusync/internal/syncengine"
)

type testEnv struct {
	recordStore *store.RecordStore
	docStore    *remote.Memory
	syncer      syncengine.Syncer
	roster      *students.Service
	importsDir  string
}

func setupEnv(t *testing.T, online bool) *testEnv {
	t.Helper()

	recordStore := store.New(kv.NewMemory())
	docStore := remote.NewMemory()
	quiet := log.New(io.Discard, "", 0)

	return &testEnv{
		recordStore: recordStore,
		docStore:    docStore,
		syncer:      syncengine.New(recordStore, docStore, netcheck.Static(online), quiet),
		roster:      students.New(recordStore, docStore, nil, quiet),
		importsDir:  filepath.Join(t.TempDir(), "imports"),
	}
}

func testConfig(owner string) *Config {
	cfg := DefaultConfig()
	cfg.Owner = owner
	cfg.Role = "staff"
	cfg.SyncInterval = 50 * time.Millisecond
	cfg.DebounceInterval = 20 * time.Millisecond
	cfg.Logger = log.New(io.Discard, "", 0)
	return cfg
}

func writeRosterFile(t *testing.T, dir, name string, entries []map[string]any) {
	t.Helper()

	raw, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("Failed to encode roster: %v", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create imports dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0644); err != nil {
		t.Fatalf("Failed to write roster file: %v", err)
	}
}

func TestNew(t *testing.T) {
	env := setupEnv(t, true)

	tests := []struct {
		name       string
		syncer     syncengine.Syncer
		roster     *students.Service
		importsDir string
		config     *Config
		wantErr    bool
	}{
		{
			name:       "valid configuration",
			syncer:     env.syncer,
			roster:     env.roster,
			importsDir: env.importsDir,
			config:     testConfig("staff-1"),
			wantErr:    false,
		},
		{
			name:       "nil syncer",
			syncer:     nil,
			roster:     env.roster,
			importsDir: env.importsDir,
			config:     testConfig("staff-1"),
			wantErr:    true,
		},
		{
			name:       "nil roster service",
			syncer:     env.syncer,
			roster:     nil,
			importsDir: env.importsDir,
			config:     testConfig("staff-1"),
			wantErr:    true,
		},
		{
			name:       "empty imports dir",
			syncer:     env.syncer,
			roster:     env.roster,
			importsDir: "",
			config:     testConfig("staff-1"),
			wantErr:    true,
		},
		{
			name:       "missing owner",
			syncer:     env.syncer,
			roster:     env.roster,
			importsDir: env.importsDir,
			config:     testConfig(""),
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.syncer, tt.roster, tt.importsDir, tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if d != nil {
				d.cancel()
				d.watcher.Close()
			}
		})
	}
}

func TestStartImportsExistingFiles(t *testing.T) {
	env := setupEnv(t, true)

	writeRosterFile(t, env.importsDir, "batch2026.json", []map[string]any{
		{"registerNo": "R001", "name": "Anjali"},
		{"registerNo": "R002", "name": "Kiran"},
	})

	d, err := New(env.syncer, env.roster, env.importsDir, testConfig("staff-1"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// The startup path imports pre-existing files and syncs them
	deadline := time.Now().Add(2 * time.Second)
	for {
		if env.docStore.Count("students") == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("startup import never reached the remote store")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Start returned error: %v", err)
	}
}

func TestWatcherImportsDroppedFile(t *testing.T) {
	env := setupEnv(t, true)

	d, err := New(env.syncer, env.roster, env.importsDir, testConfig("staff-1"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// Give the watcher a moment to attach before dropping the file
	time.Sleep(100 * time.Millisecond)
	writeRosterFile(t, env.importsDir, "late.json", []map[string]any{
		{"registerNo": "R003", "name": "Meera"},
	})

	deadline := time.Now().Add(3 * time.Second)
	for {
		all, err := env.recordStore.GetAll(context.Background(), "staff-1", students.Category)
		if err != nil {
			t.Fatalf("GetAll failed: %v", err)
		}
		if len(all) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("dropped roster file was never imported")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Start returned error: %v", err)
	}
}

func TestOfflineCycleLeavesRecordsPending(t *testing.T) {
	env := setupEnv(t, false)

	writeRosterFile(t, env.importsDir, "batch.json", []map[string]any{
		{"registerNo": "R001", "name": "Anjali"},
	})

	var gotResult *syncengine.Result
	var gotSource string
	var gotCount int
	cfg := testConfig("staff-1")
	cfg.OnSyncResult = func(r *syncengine.Result) { gotResult = r }
	cfg.OnImport = func(source string, count int) { gotSource, gotCount = source, count }

	d, err := New(env.syncer, env.roster, env.importsDir, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := d.importExisting(); err != nil {
		t.Fatalf("importExisting failed: %v", err)
	}
	d.runSyncCycle()

	if gotResult == nil || !gotResult.Offline {
		t.Fatalf("expected an offline sync result, got %+v", gotResult)
	}
	if gotSource != "batch.json" || gotCount != 1 {
		t.Errorf("import hook not invoked: source=%q count=%d", gotSource, gotCount)
	}

	pending, err := env.recordStore.PendingSync(context.Background(), "staff-1", students.Category)
	if err != nil {
		t.Fatalf("PendingSync failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("offline import should stay pending, got %d pending", len(pending))
	}
	if env.docStore.Count("students") != 0 {
		t.Error("offline cycle must not reach the remote store")
	}

	d.cancel()
	d.watcher.Close()
}

// blockingSyncer parks RunFullSync until released, to observe what the
// daemon does while a sync is in flight.
type blockingSyncer struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingSyncer() *blockingSyncer {
	return &blockingSyncer{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (b *blockingSyncer) RunFullSync(ctx context.Context, owner, role string) (*syncengine.Result, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.release
	return &syncengine.Result{Pushed: make(map[string]int)}, nil
}

func TestWatcherNotBlockedDuringSync(t *testing.T) {
	env := setupEnv(t, true)
	syncer := newBlockingSyncer()

	writeRosterFile(t, env.importsDir, "batch.json", []map[string]any{
		{"registerNo": "R001", "name": "Anjali"},
	})

	cfg := testConfig("staff-1")
	cfg.DebounceInterval = time.Nanosecond
	d, err := New(syncer, env.roster, env.importsDir, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		d.cancel()
		d.watcher.Close()
	}()

	d.queueChange(filepath.Join(env.importsDir, "batch.json"))
	time.Sleep(time.Millisecond) // let the entry pass the debounce window

	done := make(chan struct{})
	go func() {
		d.processPendingChanges()
		close(done)
	}()

	// The import succeeded and the follow-up sync is now in flight
	select {
	case <-syncer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("sync cycle never started")
	}

	// Queueing a new change must not wait for the sync to finish
	queued := make(chan struct{})
	go func() {
		d.queueChange(filepath.Join(env.importsDir, "late.json"))
		close(queued)
	}()
	select {
	case <-queued:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("queueChange blocked while a sync cycle was running")
	}

	close(syncer.release)
	<-done
}

func TestMalformedRosterFileIsSkipped(t *testing.T) {
	env := setupEnv(t, true)

	if err := os.MkdirAll(env.importsDir, 0755); err != nil {
		t.Fatalf("Failed to create imports dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(env.importsDir, "bad.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	d, err := New(env.syncer, env.roster, env.importsDir, testConfig("staff-1"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		d.cancel()
		d.watcher.Close()
	}()

	// A bad file is logged and skipped, not fatal
	if err := d.importExisting(); err != nil {
		t.Errorf("importExisting should tolerate malformed files: %v", err)
	}
}
