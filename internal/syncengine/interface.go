// Package syncengine reconciles locally-pending writes into the remote
// document store, for one owner, across a fixed set of entity
// categories.
package syncengine

import (
	"context"
	"time"
)

// Syncer pushes dirty local records to the remote store.
//
// The engine is designed to be resilient: sync is opportunistic, an
// offline device is a normal state rather than an error, and a failure
// in one category's batch never aborts the other categories. Records
// stay dirty until a batch containing them commits successfully.
//
// Conflict policy: if a record was modified remotely between cache and
// push, the push wins field-by-field (merge write, last-write-wins).
// This is accepted behavior; no version checks are performed.
type Syncer interface {
	// RunFullSync pushes every pending record for owner, category by
	// category. If the device is offline the sync is skipped and the
	// result carries Offline=true; this is not an error.
	//
	// A record is marked synced if and only if it was part of a batch
	// whose commit succeeded. Records that become dirty while a cycle
	// runs are picked up by the next cycle, not this one.
	RunFullSync(ctx context.Context, owner, role string) (*Result, error)
}

// Result summarizes one sync cycle.
type Result struct {
	// Offline is true when the cycle was skipped because the
	// reachability check failed.
	Offline bool

	// Pushed maps category to the number of records committed.
	Pushed map[string]int

	// FailedCategories lists categories whose batch commit failed;
	// their records remain pending for the next cycle.
	FailedCategories []string

	// Duration is the wall time the cycle took.
	Duration time.Duration
}

// Total returns the number of records pushed across all categories.
func (r *Result) Total() int {
	var n int
	for _, c := range r.Pushed {
		n += c
	}
	return n
}
