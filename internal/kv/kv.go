// Package kv provides the generic key-value persistence layer that backs
// the local record store and the fixed-purpose domain caches.
//
// Values are opaque JSON blobs keyed by deterministic strings built from
// owner id and category (or a fixed namespace for specialized caches).
// Two backends are provided: an embedded SQLite database for the app,
// and an in-memory map for tests.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("kv: key not found")

// Backend is the minimal storage contract the caches need.
//
// Implementations must be safe for concurrent use; serialization of
// read-modify-write cycles over a single key is the caller's job
// (see store.RecordStore).
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
