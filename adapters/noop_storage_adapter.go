package adapters

import "context"

// NoOpStorageAdapter is a storage adapter that performs no operations.
// Useful when a recording is only inspected in memory.
type NoOpStorageAdapter struct{}

var _ StorageAdapter = (*NoOpStorageAdapter)(nil)

// NewNoOpStorageAdapter creates a new NoOpStorageAdapter instance.
func NewNoOpStorageAdapter() *NoOpStorageAdapter {
	return &NoOpStorageAdapter{}
}

// Save discards data and always returns nil.
func (n *NoOpStorageAdapter) Save(ctx context.Context, data []byte) error {
	return nil
}

// Load always returns ErrNoRecording.
func (n *NoOpStorageAdapter) Load(ctx context.Context) ([]byte, error) {
	return nil, ErrNoRecording
}

// Clear does nothing and always returns nil.
func (n *NoOpStorageAdapter) Clear(ctx context.Context) error {
	return nil
}

func (n *NoOpStorageAdapter) Location() string {
	return "noop"
}
