package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a DocStore backed by Redis: one hash per collection, one
// JSON document per hash field.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis at addr with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &Redis{client: client}
}

// Healthy verifies connectivity with a ping.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.client == nil {
		return false
	}
	return r.client.Ping(ctx).Err() == nil
}

// Close releases the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func collectionKey(collection string) string {
	return "docs:" + collection
}

// Get implements DocStore.Get.
func (r *Redis) Get(ctx context.Context, collection, id string) (Doc, error) {
	raw, err := r.client.HGet(ctx, collectionKey(collection), id).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}

	var doc Doc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Set implements DocStore.Set.
func (r *Redis) Set(ctx context.Context, collection, id string, doc Doc, merge bool) error {
	out := doc
	if merge {
		existing, err := r.Get(ctx, collection, id)
		if err != nil && err != ErrNotFound {
			return err
		}
		out = mergeDocs(existing, doc)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}
	if err := r.client.HSet(ctx, collectionKey(collection), id, string(raw)).Err(); err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query implements DocStore.Query.
func (r *Redis) Query(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	all, err := r.client.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}

	var docs []Doc
	for id, raw := range all {
		var doc Doc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
		}
		if field == "" || reflect.DeepEqual(doc[field], value) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// NewBatch implements DocStore.NewBatch.
func (r *Redis) NewBatch() Batch {
	return &redisBatch{store: r}
}

type batchOp struct {
	collection string
	id         string
	doc        Doc
	merge      bool
}

// redisBatch queues sets and commits them in one MULTI/EXEC pipeline,
// so the remote write is all-or-nothing. Merge reads happen before the
// pipeline; intervening remote writes between read and commit lose
// (last-write-wins).
type redisBatch struct {
	store *Redis
	ops   []batchOp
}

func (b *redisBatch) Set(collection, id string, doc Doc, merge bool) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, doc: doc, merge: merge})
}

func (b *redisBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}

	// Resolve merge payloads up front so the pipeline is pure writes.
	encoded := make([]string, len(b.ops))
	for i, op := range b.ops {
		out := op.doc
		if op.merge {
			existing, err := b.store.Get(ctx, op.collection, op.id)
			if err != nil && err != ErrNotFound {
				return fmt.Errorf("batch merge read failed for %s/%s: %w", op.collection, op.id, err)
			}
			out = mergeDocs(existing, op.doc)
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to encode document %s/%s: %w", op.collection, op.id, err)
		}
		encoded[i] = string(raw)
	}

	_, err := b.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, op := range b.ops {
			pipe.HSet(ctx, collectionKey(op.collection), op.id, encoded[i])
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch commit failed: %w", err)
	}
	return nil
}

// mergeDocs unions incoming fields over existing ones; incoming wins
// on conflicts, existing fields absent from incoming are preserved.
func mergeDocs(existing, incoming Doc) Doc {
	merged := make(Doc, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}
