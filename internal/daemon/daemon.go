// Package daemon provides the background agent that keeps the local
// cache converging with the remote store.
//
// The daemon:
// 1. Watches a drop directory for roster import files (imports/*.json)
// 2. Bulk-imports dropped rosters into the local cache
// 3. Periodically runs an opportunistic full sync
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/campusync/campusync/internal/services/students"
	"github.com/campusync/campusync/internal/syncengine"
)

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often to run an opportunistic full sync
	SyncInterval time.Duration

	// DebounceInterval is how long to wait before processing file changes
	// This batches rapid updates together
	DebounceInterval time.Duration

	// Owner and Role identify the account the daemon syncs for
	Owner string
	Role  string

	// OnSyncResult, when set, is called after each completed sync cycle
	OnSyncResult func(*syncengine.Result)

	// OnImport, when set, is called after each successful roster import
	OnImport func(source string, count int)

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     30 * time.Second,
		DebounceInterval: 200 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates import watching and periodic synchronization.
type Daemon struct {
	syncer     syncengine.Syncer
	roster     *students.Service
	importsDir string
	config     *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> timestamp
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance.
//
// The daemon requires:
//   - syncer: the sync engine to run cycles with
//   - roster: the roster service imports go through
//   - importsDir: directory watched for roster JSON files
//
// Use Start() to begin watching and syncing.
func New(syncer syncengine.Syncer, roster *students.Service, importsDir string, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if roster == nil {
		return nil, fmt.Errorf("roster service cannot be nil")
	}
	if importsDir == "" {
		return nil, fmt.Errorf("importsDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Owner == "" {
		return nil, fmt.Errorf("config.Owner cannot be empty")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		syncer:      syncer,
		roster:      roster,
		importsDir:  importsDir,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Import any roster files already in the drop directory
// 2. Run an initial sync cycle
// 3. Watch the drop directory for new roster files
// 4. Run sync cycles on the configured interval
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := os.MkdirAll(d.importsDir, 0755); err != nil {
		return fmt.Errorf("failed to create imports directory: %w", err)
	}

	// Pick up files dropped while the daemon was down
	if err := d.importExisting(); err != nil {
		return fmt.Errorf("initial import failed: %w", err)
	}
	d.runSyncCycle()

	if err := d.watcher.Add(d.importsDir); err != nil {
		return fmt.Errorf("failed to watch imports directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.importsDir)

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.processChangeQueue()
	go d.syncLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// importExisting imports every roster file already in the drop
// directory.
func (d *Daemon) importExisting() error {
	entries, err := os.ReadDir(d.importsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read imports directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(d.importsDir, entry.Name())
		if err := d.importRosterFile(path); err != nil {
			d.config.Logger.Printf("Warning: failed to import %s: %v", path, err)
		}
	}
	return nil
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Only care about Create and Write
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			// Only process .json files
			if filepath.Ext(event.Name) != ".json" {
				continue
			}

			d.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue processes queued file changes with debouncing.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges imports files that have been queued for long
// enough. The queue mutex only guards the snapshot; imports and the
// follow-up sync run outside it so the watcher goroutine is never
// blocked on I/O.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	now := time.Now()
	var due []string
	for path, queuedAt := range d.changeQueue {
		// Only process if enough time has passed (debouncing)
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		due = append(due, path)
		delete(d.changeQueue, path)
	}
	d.changeQueueMu.Unlock()

	imported := false
	for _, path := range due {
		d.config.Logger.Printf("Processing import: %s", path)
		if err := d.importRosterFile(path); err != nil {
			d.config.Logger.Printf("Error importing %s: %v", path, err)
		} else {
			imported = true
		}
	}

	// A fresh import leaves dirty records; push them promptly
	if imported {
		d.runSyncCycle()
	}
}

// importRosterFile reads one roster JSON file and imports its entries.
// The file holds a JSON array of student objects.
func (d *Daemon) importRosterFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Deleted before we got to it
			return nil
		}
		return fmt.Errorf("failed to read roster file: %w", err)
	}

	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("failed to parse roster file: %w", err)
	}

	count, err := d.roster.Import(d.ctx, d.config.Owner, entries)
	if err != nil {
		return err
	}
	d.config.Logger.Printf("Imported %d students from %s", count, filepath.Base(path))

	if d.config.OnImport != nil {
		d.config.OnImport(filepath.Base(path), count)
	}
	return nil
}

// syncLoop runs sync cycles on the configured interval.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.runSyncCycle()
		}
	}
}

// runSyncCycle runs one full sync. Failures are logged, never fatal;
// dirty records stay pending for the next cycle.
func (d *Daemon) runSyncCycle() {
	result, err := d.syncer.RunFullSync(d.ctx, d.config.Owner, d.config.Role)
	if err != nil {
		d.config.Logger.Printf("Sync cycle failed: %v", err)
		return
	}

	if result.Offline {
		d.config.Logger.Println("Offline, sync skipped")
	} else {
		d.config.Logger.Printf("Sync complete: %d pushed, %d categories failed",
			result.Total(), len(result.FailedCategories))
	}

	if d.config.OnSyncResult != nil {
		d.config.OnSyncResult(result)
	}
}
