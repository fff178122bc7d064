package critwatch

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// fixedEventSize accounts for the begin and end timestamps of every event.
const fixedEventSize = 16

// RecordedEvent is a committed, immutable event as retained by a Recording.
type RecordedEvent struct {
	schema *Schema
	values []any
	begin  time.Time
	end    time.Time
	size   int64
}

func (e RecordedEvent) Schema() *Schema  { return e.schema }
func (e RecordedEvent) Kind() string     { return e.schema.name }
func (e RecordedEvent) Begin() time.Time { return e.begin }
func (e RecordedEvent) End() time.Time   { return e.end }

// Size is the number of bytes the event counts against a recording's cap:
// 16 bytes of timestamps plus the fixed width of each field, or 4 bytes of
// length prefix plus the content for strings.
func (e RecordedEvent) Size() int64 { return e.size }

// Value returns the value of field i.
func (e RecordedEvent) Value(i int) any {
	if i < 0 || i >= len(e.values) {
		return nil
	}
	return e.values[i]
}

// Values returns a copy of the field values in positional order.
func (e RecordedEvent) Values() []any {
	return slices.Clone(e.values)
}

func eventSize(schema *Schema, values []any) int64 {
	size := int64(fixedEventSize)
	for i, f := range schema.fields {
		size += fieldTypes[f.Type]
		if s, ok := values[i].(string); ok {
			size += int64(len(s))
		}
	}
	return size
}

// Emitter builds events and commits them into the Recording it is bound to.
// An Emitter is safe for concurrent use; the events it creates are not.
type Emitter struct {
	rec   *Recording
	clock func() time.Time
}

// NewEmitter returns an Emitter committing into rec.
func NewEmitter(rec *Recording) *Emitter {
	return &Emitter{rec: rec, clock: rec.clock}
}

// WithClock returns a copy of the emitter timestamping events with clock.
func (em *Emitter) WithClock(clock func() time.Time) *Emitter {
	return &Emitter{rec: em.rec, clock: clock}
}

// Enabled reports whether events of schema would currently be retained.
// Call sites on hot paths check this before building an event.
func (em *Emitter) Enabled(schema *Schema) bool {
	return em.rec.Enabled(schema.name)
}

// NewEvent returns an uncommitted event of schema with every field unset.
func (em *Emitter) NewEvent(schema *Schema) *Event {
	return &Event{
		emitter: em,
		schema:  schema,
		values:  make([]any, len(schema.fields)),
		isSet:   make([]bool, len(schema.fields)),
	}
}

// Event is an event under construction. Set its fields, optionally call
// Begin, then Commit exactly once.
type Event struct {
	emitter   *Emitter
	schema    *Schema
	values    []any
	isSet     []bool
	begin     time.Time
	committed bool
}

// Schema returns the schema the event was created for.
func (e *Event) Schema() *Schema {
	return e.schema
}

// Set assigns field i. The value must have exactly the Go type backing the
// field's declared type.
func (e *Event) Set(i int, value any) error {
	if e.committed {
		return &StateError{Op: "set", State: "committed"}
	}
	f, ok := e.schema.Field(i)
	if !ok {
		return &FieldError{Schema: e.schema.name, Index: i, Reason: "index out of range"}
	}
	if !f.Type.accepts(value) {
		return &FieldError{
			Schema: e.schema.name,
			Index:  i,
			Field:  f.Name,
			Reason: fmt.Sprintf("value of type %T does not match %s", value, f.Type),
		}
	}
	e.values[i] = value
	e.isSet[i] = true
	return nil
}

// SetByName assigns the field with the given name.
func (e *Event) SetByName(name string, value any) error {
	i, ok := e.schema.FieldIndex(name)
	if !ok {
		return &FieldError{Schema: e.schema.name, Index: -1, Field: name, Reason: "no such field"}
	}
	return e.Set(i, value)
}

// Begin records the start timestamp. Without it the event is instantaneous
// and begins when it is committed.
func (e *Event) Begin() error {
	if e.committed {
		return &StateError{Op: "begin", State: "committed"}
	}
	e.begin = e.emitter.clock()
	return nil
}

// Commit records the end timestamp, freezes the event and hands it to the
// recording. Events whose kind is not enabled are discarded without touching
// the recording's lock.
func (e *Event) Commit() error {
	if e.committed {
		return &StateError{Op: "commit", State: "committed"}
	}
	for i, set := range e.isSet {
		if !set {
			return &FieldError{Schema: e.schema.name, Index: i, Field: e.schema.fields[i].Name, Reason: "not set before commit"}
		}
	}
	if !e.emitter.rec.Enabled(e.schema.name) {
		e.committed = true
		e.values = nil
		e.emitter.rec.metrics.discarded.Add(context.Background(), 1)
		return nil
	}
	end := e.emitter.clock()
	begin := e.begin
	if begin.IsZero() {
		begin = end
	}
	e.committed = true

	rec := RecordedEvent{
		schema: e.schema,
		values: e.values,
		begin:  begin,
		end:    end,
		size:   eventSize(e.schema, e.values),
	}
	e.values = nil
	e.emitter.rec.accept(rec)
	return nil
}

// Committed reports whether Commit has succeeded.
func (e *Event) Committed() bool {
	return e.committed
}
