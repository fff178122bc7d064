package critwatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tap30/critwatch/adapters"
)

// ReporterConfig configures a Reporter.
type ReporterConfig struct {
	Name               string
	MaxSize            int64
	ChunkSize          int
	CheckpointInterval time.Duration // 0 disables periodic checkpoints
	MaxRetries         int
	RetryBackoff       time.Duration
	Labels             map[string]string
	StorageAdapter     StorageAdapter
	LoggerAdapter      LoggerAdapter
	Meter              metric.Meter
	Tracer             trace.Tracer
	Clock              func() time.Time
}

// Reporter runs the lifecycle of a critical-call recording inside an
// instrumented process: load, record, checkpoint and unload.
type Reporter struct {
	config        ReporterConfig
	loggerAdapter LoggerAdapter
	recording     *Recording
	checkpointer  *Checkpointer
	hook          atomic.Pointer[CriticalCallEmitter]
	initialized   bool
	disposed      bool
	mu            sync.RWMutex
}

var _ CriticalCallHook = (*Reporter)(nil)

// NewReporter validates config and creates a reporter. Call Init to start
// recording.
func NewReporter(config ReporterConfig) (*Reporter, error) {
	if config.StorageAdapter == nil {
		return nil, errors.New("critwatch: StorageAdapter is required")
	}
	if config.MaxSize < 0 {
		return nil, errors.New("critwatch: MaxSize cannot be negative")
	}
	if config.MaxRetries < 0 {
		return nil, errors.New("critwatch: MaxRetries cannot be negative")
	}

	r := &Reporter{config: config}

	// Use provided logger or default
	if config.LoggerAdapter != nil {
		r.loggerAdapter = config.LoggerAdapter
	} else {
		r.loggerAdapter = adapters.NewPrintLoggerAdapter(adapters.LogLevelWarn)
	}
	return r, nil
}

// Init creates the recording, enables the critical-call kind, starts
// recording and launches periodic checkpoints. Calling Init again is a
// no-op.
func (r *Reporter) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return &StateError{Op: "init", State: "disposed"}
	}
	if r.initialized {
		return nil
	}

	rec := NewRecording(RecordingOptions{
		Name:      r.config.Name,
		MaxSize:   r.config.MaxSize,
		ChunkSize: r.config.ChunkSize,
		Labels:    r.config.Labels,
		Clock:     r.config.Clock,
		Logger:    r.loggerAdapter,
		Meter:     r.config.Meter,
		Tracer:    r.config.Tracer,
	})
	if err := rec.Enable(CriticalCallKind); err != nil {
		return err
	}
	if err := rec.Start(); err != nil {
		return err
	}

	r.recording = rec
	r.hook.Store(NewCriticalCallEmitter(NewEmitter(rec), r.loggerAdapter))

	r.checkpointer = NewCheckpointer(CheckpointerConfig{
		Interval:     r.config.CheckpointInterval,
		MaxRetries:   r.config.MaxRetries,
		RetryBackoff: r.config.RetryBackoff,
	}, rec, r.config.StorageAdapter)
	r.checkpointer.SetLoggerAdapter(r.loggerAdapter)
	r.checkpointer.Start()

	r.initialized = true
	r.loggerAdapter.Info("Reporter initialized, recording %s to %s", rec.ID(), r.config.StorageAdapter.Location())
	return nil
}

// OnCriticalCall records a critical call. Calls before Init or after Dispose
// are ignored.
func (r *Reporter) OnCriticalCall(methodName string, isCopy bool) {
	if hook := r.hook.Load(); hook != nil {
		hook.OnCriticalCall(methodName, isCopy)
	}
}

// NewThread returns a nesting tracker for one native thread.
func (r *Reporter) NewThread() (*ThreadTracker, error) {
	hook := r.hook.Load()
	if hook == nil {
		return nil, errors.New("critwatch: reporter not initialized. Call Init() before tracking threads")
	}
	return hook.NewThread(), nil
}

// Recording returns the live recording, or nil before Init.
func (r *Reporter) Recording() *Recording {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// Checkpoint dumps the live recording now.
func (r *Reporter) Checkpoint(ctx context.Context) error {
	r.mu.RLock()
	cp := r.checkpointer
	r.mu.RUnlock()

	if cp == nil {
		return errors.New("critwatch: reporter not initialized. Call Init() before checkpointing")
	}
	return cp.Flush(ctx)
}

// Dispose stops recording, writes the final dump and releases the recording.
// The recording is released even when the final dump fails.
func (r *Reporter) Dispose(ctx context.Context) error {
	return r.dispose(ctx, true)
}

// DisposeWithoutFlush stops recording and releases it without a final dump.
func (r *Reporter) DisposeWithoutFlush() {
	_ = r.dispose(context.Background(), false)
}

func (r *Reporter) dispose(ctx context.Context, flush bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized || r.disposed {
		return nil
	}
	r.disposed = true
	r.hook.Store(nil)
	r.checkpointer.Stop()

	if err := r.recording.Stop(); err != nil {
		r.loggerAdapter.Warn("Stopping recording: %v", err)
	}

	var err error
	if flush {
		err = r.checkpointer.Flush(ctx)
		if err != nil {
			r.loggerAdapter.Error("Final dump failed: %v", err)
		}
	}
	if cerr := r.recording.Close(); cerr != nil && err == nil {
		err = cerr
	}
	r.loggerAdapter.Info("Reporter disposed")
	return err
}
