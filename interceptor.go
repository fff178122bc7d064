package critwatch

import "github.com/Tap30/critwatch/adapters"

// Critical entry points reported in the methodName field.
const (
	MethodGetPrimitiveArrayCritical = "GetPrimitiveArrayCritical"
	MethodGetStringCritical         = "GetStringCritical"
)

// CriticalCallHook receives one notification per critical native call.
type CriticalCallHook interface {
	OnCriticalCall(methodName string, isCopy bool)
}

// CriticalCallEmitter turns critical-call notifications into events of
// CriticalCallSchema.
type CriticalCallEmitter struct {
	emitter *Emitter
	logger  LoggerAdapter
}

var _ CriticalCallHook = (*CriticalCallEmitter)(nil)

// NewCriticalCallEmitter returns a hook emitting through em. Commit failures
// are logged to logger, since interception points cannot return errors.
func NewCriticalCallEmitter(em *Emitter, logger LoggerAdapter) *CriticalCallEmitter {
	if logger == nil {
		logger = adapters.NewNoOpLoggerAdapter()
	}
	return &CriticalCallEmitter{emitter: em, logger: logger}
}

// OnCriticalCall records an instantaneous critical-call event.
func (c *CriticalCallEmitter) OnCriticalCall(methodName string, isCopy bool) {
	if !c.emitter.Enabled(criticalCallSchema) {
		return
	}
	c.commit(c.emitter.NewEvent(criticalCallSchema), methodName, isCopy)
}

func (c *CriticalCallEmitter) commit(ev *Event, methodName string, isCopy bool) {
	if err := ev.Set(FieldIsCopy, isCopy); err != nil {
		c.logger.Error("critical call event: %v", err)
		return
	}
	if err := ev.Set(FieldMethodName, methodName); err != nil {
		c.logger.Error("critical call event: %v", err)
		return
	}
	if err := ev.Commit(); err != nil {
		c.logger.Error("critical call event: %v", err)
	}
}

// NewThread returns a tracker for one native thread.
func (c *CriticalCallEmitter) NewThread() *ThreadTracker {
	return &ThreadTracker{calls: c}
}

// ThreadTracker follows the critical sections of a single native thread.
// Critical sections nest; only the outermost acquire and release produce an
// event, which spans the time between them. A ThreadTracker must not be
// shared between goroutines.
type ThreadTracker struct {
	calls  *CriticalCallEmitter
	depth  int
	method string
	event  *Event
}

// Acquire marks entry into a critical section through method.
func (t *ThreadTracker) Acquire(method string) {
	t.depth++
	if t.depth > 1 {
		return
	}
	t.method = method
	t.event = nil
	if t.calls.emitter.Enabled(criticalCallSchema) {
		t.event = t.calls.emitter.NewEvent(criticalCallSchema)
		_ = t.event.Begin()
	}
}

// Release marks exit from the innermost critical section. isCopy reports
// whether the runtime copied the data for the outermost section; it is
// ignored for nested releases.
func (t *ThreadTracker) Release(isCopy bool) error {
	if t.depth == 0 {
		return &StateError{Op: "release", State: "no critical section held"}
	}
	t.depth--
	if t.depth > 0 {
		return nil
	}
	ev := t.event
	t.event = nil
	if ev != nil {
		t.calls.commit(ev, t.method, isCopy)
	}
	return nil
}

// Depth returns the current nesting depth.
func (t *ThreadTracker) Depth() int {
	return t.depth
}
