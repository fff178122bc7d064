package critwatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Tap30/critwatch/adapters"
)

// fakeClock advances by step on every reading.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0), step: time.Millisecond}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

var errSaveFailed = errors.New("disk full")

// flakyStorage fails the first failures saves and then behaves like memory.
type flakyStorage struct {
	*adapters.MemoryStorageAdapter
	mu       sync.Mutex
	failures int
	attempts int
}

func newFlakyStorage(failures int) *flakyStorage {
	return &flakyStorage{MemoryStorageAdapter: adapters.NewMemoryStorageAdapter(), failures: failures}
}

func (s *flakyStorage) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errSaveFailed
	}
	s.mu.Unlock()
	return s.MemoryStorageAdapter.Save(ctx, data)
}

func (s *flakyStorage) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

var sizedSchema = MustSchema("test.Sized", "Sized", "", nil, []Field{
	{Name: "payload", Type: TypeString},
})

// sizedEvent builds a committed event of size 20 + n outside any recording.
func sizedEvent(n int) RecordedEvent {
	values := []any{string(make([]byte, n))}
	return RecordedEvent{schema: sizedSchema, values: values, size: eventSize(sizedSchema, values)}
}

// startedRecording returns a running recording with kinds enabled.
func startedRecording(opts RecordingOptions, kinds ...string) *Recording {
	if opts.Clock == nil {
		opts.Clock = newFakeClock().Now
	}
	rec := NewRecording(opts)
	for _, k := range kinds {
		if err := rec.Enable(k); err != nil {
			panic(err)
		}
	}
	if err := rec.Start(); err != nil {
		panic(err)
	}
	return rec
}
