package critwatch

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tap30/critwatch/adapters"
)

// DefaultChunkSize is the number of events stored per archive entry.
const DefaultChunkSize = 512

// State is the lifecycle state of a Recording.
type State int32

const (
	StateIdle State = iota
	StateRecording
	StateStopped
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// RecordingOptions configures a Recording. The zero value is a valid,
// uncapped recording.
type RecordingOptions struct {
	Name      string
	MaxSize   int64 // cumulative event size cap in bytes, 0 means unlimited
	ChunkSize int   // events per archive entry, DefaultChunkSize when 0
	Labels    map[string]string
	Clock     func() time.Time
	Logger    LoggerAdapter
	Meter     metric.Meter
	Tracer    trace.Tracer
}

// Recording is a bounded capture window. Kinds are enabled while idle, events
// are retained between Start and Stop, and the retained sequence can be
// dumped any time after Start. Recordings are independent values; a process
// normally runs one at a time.
type Recording struct {
	id        string
	name      string
	chunkSize int
	maxSize   int64
	clock     func() time.Time
	logger    LoggerAdapter
	metrics   *recordingMetrics
	tracer    trace.Tracer
	labels    *Labels

	state atomic.Int32
	// active holds the enabled kinds while recording and nil otherwise, so
	// the disabled path costs one atomic load.
	active atomic.Pointer[map[string]metric.AddOption]

	mu        sync.Mutex
	enabled   map[string]metric.AddOption
	buf       *eventBuffer
	evicted   int64
	startedAt time.Time
	stoppedAt time.Time
}

// NewRecording creates an idle recording.
func NewRecording(opts RecordingOptions) *Recording {
	r := &Recording{
		id:        uuid.NewString(),
		name:      opts.Name,
		chunkSize: opts.ChunkSize,
		maxSize:   opts.MaxSize,
		clock:     opts.Clock,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		labels:    NewLabels(),
		enabled:   make(map[string]metric.AddOption),
		buf:       newEventBuffer(opts.MaxSize),
	}
	if r.chunkSize <= 0 {
		r.chunkSize = DefaultChunkSize
	}
	if r.maxSize < 0 {
		r.maxSize = 0
		r.buf.maxSize = 0
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.logger == nil {
		r.logger = adapters.NewNoOpLoggerAdapter()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(instrumentationName)
	}
	m, err := newRecordingMetrics(opts.Meter)
	if err != nil {
		r.logger.Warn("metrics disabled: %v", err)
		m = noopRecordingMetrics()
	}
	r.metrics = m
	for k, v := range opts.Labels {
		if err := r.labels.Set(k, v); err != nil {
			r.logger.Warn("ignoring label %q: %v", k, err)
		}
	}
	return r
}

// ID returns the unique identifier written into every dump.
func (r *Recording) ID() string { return r.id }

// Name returns the configured recording name.
func (r *Recording) Name() string { return r.name }

// MaxSize returns the size cap in bytes, 0 when unlimited.
func (r *Recording) MaxSize() int64 { return r.maxSize }

// State returns the current lifecycle state.
func (r *Recording) State() State {
	return State(r.state.Load())
}

// SetLabel attaches a label to subsequent dumps.
func (r *Recording) SetLabel(key, value string) error {
	return r.labels.Set(key, value)
}

// Labels returns a copy of the recording labels.
func (r *Recording) Labels() map[string]string {
	return r.labels.GetAll()
}

// Enable arranges for events of the named kind to be retained once the
// recording starts.
func (r *Recording) Enable(kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.State(); s != StateIdle {
		return &StateError{Op: "enable", State: s.String()}
	}
	if _, ok := r.enabled[kind]; !ok {
		r.enabled[kind] = kindOption(kind)
	}
	return nil
}

// Enabled reports whether events of kind are being retained right now.
func (r *Recording) Enabled(kind string) bool {
	kinds := r.active.Load()
	if kinds == nil {
		return false
	}
	_, ok := (*kinds)[kind]
	return ok
}

// Start begins accepting events.
func (r *Recording) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.State(); s != StateIdle {
		return &StateError{Op: "start", State: s.String()}
	}
	kinds := maps.Clone(r.enabled)
	r.startedAt = r.clock()
	r.state.Store(int32(StateRecording))
	r.active.Store(&kinds)
	r.logger.Debug("recording %s started with %d enabled kinds", r.id, len(kinds))
	return nil
}

// Stop ends the capture window. Events committed afterwards are discarded.
func (r *Recording) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.State(); s != StateRecording {
		return &StateError{Op: "stop", State: s.String()}
	}
	r.active.Store(nil)
	r.stoppedAt = r.clock()
	r.state.Store(int32(StateStopped))
	r.logger.Debug("recording %s stopped with %d events retained", r.id, r.buf.Len())
	return nil
}

// Close releases the retained events. It is safe to call more than once.
func (r *Recording) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() == StateClosed {
		return nil
	}
	r.active.Store(nil)
	r.state.Store(int32(StateClosed))
	r.buf.clear()
	return nil
}

// Accept appends a committed event when its kind is enabled and the
// recording is running, evicting the oldest events if the cap is exceeded.
func (r *Recording) Accept(event RecordedEvent) {
	r.accept(event)
}

func (r *Recording) accept(event RecordedEvent) {
	if event.schema == nil {
		return
	}
	r.mu.Lock()
	kinds := r.active.Load()
	var opt metric.AddOption
	ok := false
	if kinds != nil && r.State() == StateRecording {
		opt, ok = (*kinds)[event.schema.name]
	}
	if !ok {
		r.mu.Unlock()
		r.metrics.discarded.Add(context.Background(), 1)
		return
	}
	evicted := r.buf.push(event)
	r.evicted += int64(evicted)
	r.mu.Unlock()

	r.metrics.recordAccept(context.Background(), opt, evicted)
}

// Len returns the number of retained events.
func (r *Recording) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Len()
}

// Size returns the cumulative size of retained events.
func (r *Recording) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Size()
}

// Evicted returns how many events were dropped to respect the cap.
func (r *Recording) Evicted() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evicted
}

// Events returns the retained events oldest first.
func (r *Recording) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.toSlice()
}

// snapshot copies what a dump needs while holding the lock only for the copy.
func (r *Recording) snapshot(op string) (recordingSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.State()
	if s != StateRecording && s != StateStopped {
		return recordingSnapshot{}, &StateError{Op: op, State: s.String()}
	}
	snap := recordingSnapshot{
		manifest: Manifest{
			Format:       formatVersion,
			RecordingID:  r.id,
			Name:         r.name,
			StartedAt:    r.startedAt,
			DumpedAt:     r.clock(),
			MaxSize:      r.maxSize,
			EventCount:   r.buf.Len(),
			EvictedCount: r.evicted,
			Labels:       r.labels.GetAll(),
		},
		events: r.buf.toSlice(),
	}
	if s == StateStopped {
		stopped := r.stoppedAt
		snap.manifest.StoppedAt = &stopped
	}
	return snap, nil
}

// Dump writes the retained events to storage as a recording archive. Dumping
// a running recording takes a snapshot and keeps recording. A failed write
// leaves the recording untouched and returns a *PersistenceError.
func (r *Recording) Dump(ctx context.Context, storage StorageAdapter) error {
	ctx, span := r.tracer.Start(ctx, "critwatch.Recording.Dump",
		trace.WithAttributes(attribute.String("critwatch.recording.id", r.id)))
	defer span.End()

	snap, err := r.snapshot("dump")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid state")
		return err
	}

	data, err := encodeRecording(snap, r.chunkSize)
	if err != nil {
		r.metrics.dumpErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return &PersistenceError{Op: "encode", Location: storage.Location(), Err: err}
	}

	if err := storage.Save(ctx, data); err != nil {
		r.metrics.dumpErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		r.logger.Error("dump of recording %s to %s failed: %v", r.id, storage.Location(), err)
		return &PersistenceError{Op: "dump", Location: storage.Location(), Err: err}
	}

	r.metrics.dumps.Add(ctx, 1)
	r.metrics.dumpSize.Record(ctx, int64(len(data)))
	span.SetAttributes(
		attribute.Int("critwatch.dump.events", len(snap.events)),
		attribute.Int("critwatch.dump.bytes", len(data)),
	)
	r.logger.Debug("dumped %d events (%d bytes) to %s", len(snap.events), len(data), storage.Location())
	return nil
}

// DumpTo writes the retained events to the file at path.
func (r *Recording) DumpTo(path string) error {
	return r.Dump(context.Background(), adapters.NewFileStorageAdapter(path))
}
