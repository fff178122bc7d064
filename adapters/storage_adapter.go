package adapters

import (
	"context"
	"errors"
)

// ErrNoRecording is returned by Load when the location holds no recording.
var ErrNoRecording = errors.New("no recording stored")

// StorageAdapter is an interface for recording persistence.
// Implement this interface to use custom storage backends (database, Redis, S3, etc.).
type StorageAdapter interface {
	// Save replaces the stored recording with data.
	//
	// Parameters:
	//   - ctx: Bounds the write
	//   - data: Encoded recording archive
	//
	// Returns error if save fails.
	Save(ctx context.Context, data []byte) error

	// Load retrieves the stored recording.
	//
	// Returns ErrNoRecording if nothing was saved yet.
	Load(ctx context.Context) ([]byte, error)

	// Clear removes the stored recording. Clearing an empty location is not
	// an error.
	Clear(ctx context.Context) error

	// Location describes where recordings are written, for logs and errors.
	Location() string
}
