package critwatch

import (
	"errors"
	"maps"
	"sync"
)

const maxLabelKeyLength = 255

// Labels holds key/value pairs written into the manifest of every dump,
// e.g. the host or the process under observation.
type Labels struct {
	labels map[string]string
	mu     sync.RWMutex
}

// NewLabels creates an empty label set.
func NewLabels() *Labels {
	return &Labels{
		labels: make(map[string]string),
	}
}

// Set sets a label value
func (l *Labels) Set(key, value string) error {
	if key == "" {
		return errors.New("critwatch: label key cannot be empty")
	}
	if len(key) > maxLabelKeyLength {
		return errors.New("critwatch: label key cannot exceed 255 characters")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.labels[key] = value
	return nil
}

// GetAll returns all labels as a copy, or nil when there are none.
func (l *Labels) GetAll() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.labels) == 0 {
		return nil
	}
	return maps.Clone(l.labels)
}
