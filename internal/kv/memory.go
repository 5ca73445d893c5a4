package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Backend used by tests and dev tooling.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string

	// FailReads and FailWrites, when set, force the corresponding
	// operations to return the error. Used to exercise storage-failure
	// paths in tests.
	FailReads  error
	FailWrites error
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get implements Backend.Get.
func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	if m.FailReads != nil {
		return "", m.FailReads
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set implements Backend.Set.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Remove implements Backend.Remove.
func (m *Memory) Remove(ctx context.Context, key string) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
