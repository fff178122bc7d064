package critwatch

import (
	"fmt"

	"github.com/Tap30/critwatch/archive"
)

// FormatError reports a corrupt or truncated recording.
type FormatError = archive.FormatError

// SchemaError reports a malformed schema definition.
type SchemaError struct {
	Schema string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("critwatch: invalid schema %q: %s", e.Schema, e.Reason)
}

// FieldError reports a bad field index, a value of the wrong type, or a
// field left unset at commit.
type FieldError struct {
	Schema string
	Index  int
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("critwatch: %s field %d: %s", e.Schema, e.Index, e.Reason)
	}
	return fmt.Sprintf("critwatch: %s field %d (%s): %s", e.Schema, e.Index, e.Field, e.Reason)
}

// StateError reports an operation invoked in the wrong lifecycle state.
type StateError struct {
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("critwatch: %s not allowed in state %s", e.Op, e.State)
}

// PersistenceError reports an I/O failure while dumping or loading a
// recording. The recording itself is unaffected and the caller may retry.
type PersistenceError struct {
	Op       string
	Location string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("critwatch: %s %s: %v", e.Op, e.Location, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
