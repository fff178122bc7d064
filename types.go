package critwatch

import (
	"github.com/Tap30/critwatch/adapters"
)

// Re-export adapter types for convenience
type (
	StorageAdapter = adapters.StorageAdapter
	LoggerAdapter  = adapters.LoggerAdapter
	LogLevel       = adapters.LogLevel
)

// ErrNoRecording is returned when a storage location holds no recording.
var ErrNoRecording = adapters.ErrNoRecording
