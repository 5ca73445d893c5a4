// Package remote defines the remote document-store collaborator: a
// per-collection document store with merge-aware writes, equality
// queries, and atomic multi-document batch writes.
//
// The batch write is the unit of atomicity for synchronization: a
// commit either applies every queued set or none of them. Writes use
// last-write-wins semantics at the remote layer; this is accepted
// behavior, no version checks are performed (see DESIGN.md).
package remote

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("remote: document not found")

// Doc is one remote document's fields.
type Doc = map[string]any

// DocStore is the remote document store.
type DocStore interface {
	// Get returns the document under (collection, id), or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Doc, error)

	// Set writes the document under (collection, id). With merge=true,
	// remote fields not present in doc are preserved, not deleted.
	Set(ctx context.Context, collection, id string, doc Doc, merge bool) error

	// Query returns the documents in collection whose field equals value.
	Query(ctx context.Context, collection, field string, value any) ([]Doc, error)

	// NewBatch returns an empty write batch. Queued sets are applied
	// atomically by Commit.
	NewBatch() Batch
}

// Batch queues document writes for an atomic commit.
type Batch interface {
	Set(collection, id string, doc Doc, merge bool)
	Commit(ctx context.Context) error
}
