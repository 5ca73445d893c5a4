package syncengine

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/campusync/campusync/internal/netcheck"
	"github.com/campusync/campusync/internal/remote"
	"github.com/campusync/campusync/internal/store"
)

// Collections maps each local category to its remote collection name.
var Collections = map[string]string{
	"attendance": "attendance_records",
	"students":   "students",
	"fees":       "fee_records",
	"notices":    "notices",
	"profile":    "student_profiles",
}

// CategoriesForRole returns the fixed category list synced for a role.
// Unknown roles sync only attendance, the one category every user of
// the app writes.
func CategoriesForRole(role string) []string {
	switch role {
	case "student":
		return []string{"attendance", "fees", "profile"}
	case "staff", "office", "cr":
		return []string{"attendance", "students", "notices"}
	default:
		return []string{"attendance"}
	}
}

// engine implements the Syncer interface.
type engine struct {
	store   *store.RecordStore
	remote  remote.DocStore
	checker netcheck.Checker
	logger  *log.Logger
}

// New creates a Syncer instance.
//
// If logger is nil, a default logger writing to stderr is used.
func New(recordStore *store.RecordStore, docStore remote.DocStore, checker netcheck.Checker, logger *log.Logger) Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &engine{
		store:   recordStore,
		remote:  docStore,
		checker: checker,
		logger:  logger,
	}
}

// RunFullSync implements Syncer.RunFullSync.
func (e *engine) RunFullSync(ctx context.Context, owner, role string) (*Result, error) {
	start := time.Now()
	result := &Result{Pushed: make(map[string]int)}

	if !e.checker.Online(ctx) {
		e.logger.Printf("Offline, skipping sync for %s", owner)
		result.Offline = true
		result.Duration = time.Since(start)
		return result, nil
	}

	for _, category := range CategoriesForRole(role) {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result, ctx.Err()
		default:
		}
		e.syncCategory(ctx, owner, category, result)
	}

	result.Duration = time.Since(start)
	e.logger.Printf("Sync complete for %s: pushed=%d, failed categories=%d in %v",
		owner, result.Total(), len(result.FailedCategories), result.Duration.Round(time.Millisecond))
	return result, nil
}

// syncCategory pushes one category's pending records in a single
// batch. Failures are logged, never propagated: the records stay
// dirty and are retried on the next cycle.
func (e *engine) syncCategory(ctx context.Context, owner, category string, result *Result) {
	pending, err := e.store.PendingSync(ctx, owner, category)
	if err != nil {
		e.logger.Printf("WARNING: failed to read pending records for %s/%s: %v", owner, category, err)
		result.FailedCategories = append(result.FailedCategories, category)
		return
	}
	if len(pending) == 0 {
		return
	}

	collection, ok := Collections[category]
	if !ok {
		collection = category
	}

	// The batch is a snapshot: records that become dirty from here on
	// belong to the next cycle.
	batch := e.remote.NewBatch()
	for _, rec := range pending {
		batch.Set(collection, rec.ID, rec.Payload(), true)
	}

	if err := batch.Commit(ctx); err != nil {
		e.logger.Printf("WARNING: batch commit failed for %s/%s: %v", owner, category, err)
		result.FailedCategories = append(result.FailedCategories, category)
		return
	}

	// The commit was all-or-nothing, so every record in the snapshot
	// is now durable remotely.
	for _, rec := range pending {
		if err := e.store.MarkSynced(ctx, owner, category, rec.ID); err != nil {
			e.logger.Printf("WARNING: failed to mark %s/%s/%s synced: %v", owner, category, rec.ID, err)
		}
	}

	result.Pushed[category] = len(pending)
	e.logger.Printf("Pushed %d records for %s/%s", len(pending), owner, category)
}
