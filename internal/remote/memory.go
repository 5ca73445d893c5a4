package remote

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Memory is an in-process DocStore for tests and dev tooling.
//
// FailCollections forces batch commits and sets touching a named
// collection to fail, for exercising partial-failure isolation.
type Memory struct {
	mu              sync.RWMutex
	collections     map[string]map[string]Doc
	FailCollections map[string]error
}

// NewMemory creates an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{
		collections:     make(map[string]map[string]Doc),
		FailCollections: make(map[string]error),
	}
}

// Get implements DocStore.Get.
func (m *Memory) Get(ctx context.Context, collection, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

// Set implements DocStore.Set.
func (m *Memory) Set(ctx context.Context, collection, id string, doc Doc, merge bool) error {
	if err := m.FailCollections[collection]; err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(collection, id, doc, merge)
	return nil
}

func (m *Memory) setLocked(collection, id string, doc Doc, merge bool) {
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]Doc)
		m.collections[collection] = coll
	}
	if merge {
		doc = mergeDocs(coll[id], doc)
	}
	coll[id] = cloneDoc(doc)
}

// Query implements DocStore.Query.
func (m *Memory) Query(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	if err := m.FailCollections[collection]; err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []Doc
	for _, doc := range m.collections[collection] {
		if field == "" || reflect.DeepEqual(doc[field], value) {
			docs = append(docs, cloneDoc(doc))
		}
	}
	return docs, nil
}

// NewBatch implements DocStore.NewBatch.
func (m *Memory) NewBatch() Batch {
	return &memoryBatch{store: m}
}

// Count returns the number of documents in a collection.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

type memoryBatch struct {
	store *Memory
	ops   []batchOp
}

func (b *memoryBatch) Set(collection, id string, doc Doc, merge bool) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, doc: cloneDoc(doc), merge: merge})
}

// Commit applies all queued sets, or none if any collection is marked
// failing.
func (b *memoryBatch) Commit(ctx context.Context) error {
	for _, op := range b.ops {
		if err := b.store.FailCollections[op.collection]; err != nil {
			return fmt.Errorf("batch commit failed: %w", err)
		}
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		b.store.setLocked(op.collection, op.id, op.doc, op.merge)
	}
	return nil
}

func cloneDoc(doc Doc) Doc {
	if doc == nil {
		return nil
	}
	out := make(Doc, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
