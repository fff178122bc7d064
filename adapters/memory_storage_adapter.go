package adapters

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorageAdapter keeps the last saved recording in memory.
type MemoryStorageAdapter struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

var _ StorageAdapter = (*MemoryStorageAdapter)(nil)

// NewMemoryStorageAdapter creates an empty MemoryStorageAdapter.
func NewMemoryStorageAdapter() *MemoryStorageAdapter {
	return &MemoryStorageAdapter{}
}

// Save stores a copy of data.
func (m *MemoryStorageAdapter) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = slices.Clone(data)
	if m.data == nil {
		m.data = []byte{}
	}
	m.saves++
	return nil
}

// Load returns a copy of the stored recording.
func (m *MemoryStorageAdapter) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNoRecording
	}
	return slices.Clone(m.data), nil
}

// Clear forgets the stored recording.
func (m *MemoryStorageAdapter) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

func (m *MemoryStorageAdapter) Location() string {
	return "memory"
}

// Saves returns how many times Save succeeded.
func (m *MemoryStorageAdapter) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
