package storage

import (
	"context"
	"slices"
	"sync"
)

// Memory is a process-local Backend. Documents are copied on the way in
// and out.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory creates an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

// LoadCollection implements Backend
func (m *Memory) LoadCollection(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.docs[key]), nil
}

// SaveCollection implements Backend
func (m *Memory) SaveCollection(ctx context.Context, key string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = slices.Clone(doc)
	return nil
}
