package db

import (
	"context"
	"sync"
)

// MemoryDB is a process-local backend. Nothing survives a restart.
type MemoryDB struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{values: make(map[string][]byte)}
}

func (m *MemoryDB) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryDB) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.values[key] = v
	m.mu.Unlock()
	return nil
}

func (m *MemoryDB) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryDB) Close() error {
	return nil
}
