// Package store implements the local record store: durable key-value
// persistence for an owner's records within a category, with per-record
// sync-state tracking.
//
// Records live in partitions, one partition per (owner, category) pair,
// persisted as a single JSON blob in the key-value backend. A record
// with Synced=false is a local write not yet confirmed durable in the
// remote store; it is never dropped before a successful push.
//
// Save performs a read-modify-write of the whole partition. Each
// partition is guarded by its own mutex so concurrent saves cannot
// interleave and lose updates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campusync/campusync/internal/kv"
)

// schemaVersion is stamped into every persisted partition. Partitions
// with an unknown version are treated as unreadable, not silently
// parsed.
const schemaVersion = 1

// ErrNotFound is returned by Get when no record exists under the key.
var ErrNotFound = errors.New("store: record not found")

// Record is a locally persisted entity tagged with sync bookkeeping.
//
// Data holds the domain payload (an attendance event log, a student
// profile). Synced and LastUpdated are internal bookkeeping and are
// stripped before transmission to the remote store.
type Record struct {
	ID          string         `json:"id"`
	Data        map[string]any `json:"data"`
	Synced      bool           `json:"synced"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// Payload returns a copy of the record's domain data with internal
// bookkeeping fields removed, safe to hand to the remote store.
func (r Record) Payload() map[string]any {
	payload := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		if k == "synced" || k == "lastUpdated" {
			continue
		}
		payload[k] = v
	}
	return payload
}

// partition is the on-disk shape of one (owner, category) blob.
type partition struct {
	SchemaVersion int               `json:"schemaVersion"`
	Records       map[string]Record `json:"records"`
}

// RecordStore persists records through a kv.Backend.
//
// All operations return explicit errors; callers that need the
// non-throwing offline-first contract (domain services, sync engine)
// log the error and degrade to an empty result rather than crashing.
type RecordStore struct {
	backend kv.Backend

	// locksMu guards locks; each partition key gets its own mutex so
	// the read-modify-write in Save is serialized per partition.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a RecordStore over the given backend.
func New(backend kv.Backend) *RecordStore {
	return &RecordStore{
		backend: backend,
		locks:   make(map[string]*sync.Mutex),
	}
}

func partitionKey(owner, category string) string {
	return fmt.Sprintf("records:%s:%s", owner, category)
}

func (s *RecordStore) partitionLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	return mu
}

// loadPartition reads and decodes a partition blob. A missing key
// yields an empty partition, not an error.
func (s *RecordStore) loadPartition(ctx context.Context, key string) (*partition, error) {
	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return &partition{SchemaVersion: schemaVersion, Records: make(map[string]Record)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read partition %s: %w", key, err)
	}

	var p partition
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to decode partition %s: %w", key, err)
	}
	if p.SchemaVersion != schemaVersion {
		return nil, fmt.Errorf("partition %s has unsupported schema version %d", key, p.SchemaVersion)
	}
	if p.Records == nil {
		p.Records = make(map[string]Record)
	}
	return &p, nil
}

func (s *RecordStore) writePartition(ctx context.Context, key string, p *partition) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode partition %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("failed to write partition %s: %w", key, err)
	}
	return nil
}

// Save upserts a record into the (owner, category) partition.
//
// data must be JSON-serializable. An existing record with the same id
// is overwritten (last-write-wins by key). LastUpdated is set to the
// current time. The synced flag is initialized by the caller: false
// for pending pushes, true for records freshly pulled from remote.
//
// The whole partition is persisted back to storage, so this is not a
// fine-grained write; the per-partition mutex keeps concurrent saves
// from interleaving.
func (s *RecordStore) Save(ctx context.Context, owner, category, id string, data map[string]any, synced bool) (Record, error) {
	key := partitionKey(owner, category)
	mu := s.partitionLock(key)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.loadPartition(ctx, key)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:          id,
		Data:        data,
		Synced:      synced,
		LastUpdated: time.Now().UTC(),
	}
	p.Records[id] = rec

	if err := s.writePartition(ctx, key, p); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get returns the record under (owner, category, id), or ErrNotFound.
func (s *RecordStore) Get(ctx context.Context, owner, category, id string) (Record, error) {
	p, err := s.loadPartition(ctx, partitionKey(owner, category))
	if err != nil {
		return Record{}, err
	}
	rec, ok := p.Records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// GetAll returns every record in the partition. Order is unspecified.
func (s *RecordStore) GetAll(ctx context.Context, owner, category string) ([]Record, error) {
	p, err := s.loadPartition(ctx, partitionKey(owner, category))
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(p.Records))
	for _, rec := range p.Records {
		records = append(records, rec)
	}
	return records, nil
}

// MarkSynced flips the record's synced flag to true and refreshes
// LastUpdated. Marking a missing record is a no-op, not an error.
func (s *RecordStore) MarkSynced(ctx context.Context, owner, category, id string) error {
	key := partitionKey(owner, category)
	mu := s.partitionLock(key)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.loadPartition(ctx, key)
	if err != nil {
		return err
	}

	rec, ok := p.Records[id]
	if !ok {
		return nil
	}

	rec.Synced = true
	rec.LastUpdated = time.Now().UTC()
	p.Records[id] = rec

	return s.writePartition(ctx, key, p)
}

// PendingSync returns the records in the partition with Synced=false.
func (s *RecordStore) PendingSync(ctx context.Context, owner, category string) ([]Record, error) {
	all, err := s.GetAll(ctx, owner, category)
	if err != nil {
		return nil, err
	}
	var pending []Record
	for _, rec := range all {
		if !rec.Synced {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}
