package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStorageAdapter is the default storage adapter implementation using file system.
// A save writes a temporary file next to the target and renames it into place,
// so readers never observe a partially written recording.
type FileStorageAdapter struct {
	path string
	perm os.FileMode
}

// Ensure FileStorageAdapter implements StorageAdapter interface
var _ StorageAdapter = (*FileStorageAdapter)(nil)

// NewFileStorageAdapter creates a new FileStorageAdapter instance.
//
// Parameters:
//   - path: Path to the file where the recording will be stored
func NewFileStorageAdapter(path string) *FileStorageAdapter {
	return &FileStorageAdapter{path: path, perm: 0o644}
}

// Save writes data to the target file atomically.
func (f *FileStorageAdapter) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, f.perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the recording file.
// Returns ErrNoRecording if the file doesn't exist.
func (f *FileStorageAdapter) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoRecording
		}
		return nil, err
	}
	return data, nil
}

// Clear removes the recording file.
func (f *FileStorageAdapter) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Location returns the target path.
func (f *FileStorageAdapter) Location() string {
	return f.path
}
