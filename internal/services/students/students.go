// Package students provides the cache-first student roster service.
//
// Reads prefer the local record store. When the local partition has
// data it is returned immediately and a background refresh fetches the
// remote shards, merging results into the cache for the next read.
// When the partition is empty the fetch is blocking. Roster entries
// merge by register number with fields-union semantics: an import or
// refresh adds and overwrites fields, it never deletes them.
package students

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/campusync/campusync/internal/remote"
	"github.com/campusync/campusync/internal/store"
)

// Category is the local store category roster records live in.
const Category = "students"

// registerNoField is the natural key of a roster entry.
const registerNoField = "registerNo"

// Service owns the student roster cache.
type Service struct {
	store  *store.RecordStore
	remote remote.DocStore

	// shards are the remote collections the roster is split across
	// (one per batch/year in the backing store).
	shards []string

	// refreshTimeout bounds the detached background refresh.
	refreshTimeout time.Duration

	logger *log.Logger
}

// New creates a roster service reading from the given remote shards.
func New(recordStore *store.RecordStore, docStore remote.DocStore, shards []string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[students] ", log.LstdFlags)
	}
	return &Service{
		store:          recordStore,
		remote:         docStore,
		shards:         shards,
		refreshTimeout: 30 * time.Second,
		logger:         logger,
	}
}

// Students returns the roster for owner, cache-first.
//
// With a warm cache the local data is returned immediately and a
// background refresh runs concurrently; the caller sees refreshed data
// on its next read, not this one. With a cold cache the remote fetch
// is blocking.
func (s *Service) Students(ctx context.Context, owner string) ([]map[string]any, error) {
	local, err := s.store.GetAll(ctx, owner, Category)
	if err != nil {
		// A storage hiccup must not crash the caller; treat as cold
		// cache and fall through to the blocking fetch.
		s.logger.Printf("WARNING: failed to read local roster for %s: %v", owner, err)
		local = nil
	}

	if len(local) > 0 {
		go s.refresh(owner)
		return payloads(local), nil
	}

	docs := s.fetchShards(ctx)
	for _, doc := range docs {
		if err := s.mergeIntoLocal(ctx, owner, doc); err != nil {
			s.logger.Printf("WARNING: failed to cache roster entry: %v", err)
		}
	}

	refreshed, err := s.store.GetAll(ctx, owner, Category)
	if err != nil {
		s.logger.Printf("WARNING: failed to re-read roster for %s: %v", owner, err)
		return docs, nil
	}
	return payloads(refreshed), nil
}

// Import bulk-loads roster entries (a seed script or staff upload)
// into the local cache as pending-push records. Entries merge
// fields-union by register number. Returns the number imported.
//
// Unlike reads, import is an awaited write: errors propagate so the
// caller can surface them.
func (s *Service) Import(ctx context.Context, owner string, entries []map[string]any) (int, error) {
	var imported int
	for _, entry := range entries {
		regNo, ok := entry[registerNoField].(string)
		if !ok || regNo == "" {
			return imported, fmt.Errorf("roster entry missing %s", registerNoField)
		}

		merged := entry
		existing, err := s.store.Get(ctx, owner, Category, regNo)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return imported, err
		}
		if err == nil {
			merged = unionFields(existing.Data, entry)
		}

		if _, err := s.store.Save(ctx, owner, Category, regNo, merged, false); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// refresh fetches all shards and merges into the local cache. It runs
// detached from the originating call, so it carries its own context.
func (s *Service) refresh(owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
	defer cancel()

	for _, doc := range s.fetchShards(ctx) {
		if err := s.mergeIntoLocal(ctx, owner, doc); err != nil {
			s.logger.Printf("WARNING: background refresh failed to cache entry: %v", err)
		}
	}
}

// fetchShards queries every remote shard, skipping shards that fail.
func (s *Service) fetchShards(ctx context.Context) []map[string]any {
	var docs []map[string]any
	for _, shard := range s.shards {
		shardDocs, err := s.remote.Query(ctx, shard, "", nil)
		if err != nil {
			s.logger.Printf("WARNING: failed to fetch shard %s: %v", shard, err)
			continue
		}
		docs = append(docs, shardDocs...)
	}
	return docs
}

// mergeIntoLocal upserts a fetched document by register number.
//
// For a clean record the fields union with the fetched document
// winning. A dirty record holds an unpushed local edit and stays
// authoritative until that push succeeds: its fields win the union,
// remote fields only fill gaps, and the pending flag is kept.
func (s *Service) mergeIntoLocal(ctx context.Context, owner string, doc map[string]any) error {
	regNo, ok := doc[registerNoField].(string)
	if !ok || regNo == "" {
		return fmt.Errorf("remote roster entry missing %s", registerNoField)
	}

	synced := true
	merged := doc
	existing, err := s.store.Get(ctx, owner, Category, regNo)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err == nil {
		if existing.Synced {
			merged = unionFields(existing.Data, doc)
		} else {
			merged = unionFields(doc, existing.Data)
			synced = false
		}
	}

	_, err = s.store.Save(ctx, owner, Category, regNo, merged, synced)
	return err
}

func unionFields(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

func payloads(records []store.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Payload())
	}
	return out
}
