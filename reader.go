package critwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"time"

	"github.com/Tap30/critwatch/archive"
)

// DecodedEvent is an event read back from a recording.
type DecodedEvent struct {
	Kind     string
	Label    string
	Category []string
	Fields   map[string]any
	Begin    time.Time
	End      time.Time
}

// Duration is the time between begin and end.
func (e DecodedEvent) Duration() time.Duration {
	return e.End.Sub(e.Begin)
}

// Bool returns a boolean field.
func (e DecodedEvent) Bool(name string) (bool, bool) {
	v, ok := e.Fields[name].(bool)
	return v, ok
}

// String returns a string field.
func (e DecodedEvent) String(name string) (string, bool) {
	v, ok := e.Fields[name].(string)
	return v, ok
}

// Reader replays the events of a recording, oldest first. Chunks are decoded
// one at a time as Next reaches them.
type Reader struct {
	archive  *archive.Reader
	manifest Manifest
	pending  []DecodedEvent
	chunks   int
	events   int
	damaged  bool
	closed   bool
}

// Open reads the recording file at path.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Location: path, Err: err}
	}
	return NewReader(data)
}

// OpenStorage loads the recording kept in storage.
func OpenStorage(ctx context.Context, storage StorageAdapter) (*Reader, error) {
	data, err := storage.Load(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Location: storage.Location(), Err: err}
	}
	return NewReader(data)
}

// NewReader parses an encoded recording. It fails with a *FormatError when
// data is not a recording archive.
func NewReader(data []byte) (*Reader, error) {
	ar, err := archive.NewReader(data)
	if err != nil {
		return nil, err
	}

	entry, err := ar.Lookup(manifestEntry)
	if err != nil {
		if errors.Is(err, archive.ErrEntryNotFound) {
			return nil, &FormatError{Entry: manifestEntry, Err: errors.New("missing manifest")}
		}
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(entry.Data, &manifest); err != nil {
		return nil, &FormatError{Entry: manifestEntry, Err: err}
	}
	if manifest.Format != formatVersion {
		return nil, &FormatError{Entry: manifestEntry, Err: fmt.Errorf("unsupported format version %d", manifest.Format)}
	}
	return &Reader{archive: ar, manifest: manifest}, nil
}

// Manifest returns the recording's manifest.
func (r *Reader) Manifest() Manifest {
	return r.manifest
}

// Next returns the next event, or io.EOF once every event has been read.
// Corrupt data, or an archive holding fewer chunks or events than its
// manifest lists, yields a *FormatError, never io.EOF.
func (r *Reader) Next() (DecodedEvent, error) {
	if r.closed {
		return DecodedEvent{}, &StateError{Op: "next", State: "closed"}
	}
	for len(r.pending) == 0 {
		entry, err := r.archive.Next()
		if errors.Is(err, io.EOF) {
			return DecodedEvent{}, r.checkComplete()
		}
		if err != nil {
			r.damaged = true
			return DecodedEvent{}, err
		}
		if !isChunkEntry(entry.Name) {
			continue
		}
		r.chunks++
		events, err := decodeChunk(entry)
		if err != nil {
			r.damaged = true
			return DecodedEvent{}, err
		}
		r.events += len(events)
		r.pending = events
	}
	ev := r.pending[0]
	r.pending = r.pending[1:]
	return ev, nil
}

// checkComplete runs once the archive is exhausted and reports chunks or
// events missing relative to the manifest. A reader that already returned a
// decode error ends with io.EOF.
func (r *Reader) checkComplete() error {
	if r.damaged {
		return io.EOF
	}
	m := r.manifest
	if r.chunks != m.ChunkCount || r.events != m.EventCount {
		r.damaged = true
		return &FormatError{Entry: manifestEntry, Err: fmt.Errorf(
			"manifest lists %d events in %d chunks, archive holds %d events in %d chunks",
			m.EventCount, m.ChunkCount, r.events, r.chunks)}
	}
	return io.EOF
}

// Entries lists the archive entry names in order.
func (r *Reader) Entries() []string {
	return r.archive.Names()
}

// All iterates over the remaining events. A decode error is yielded once and
// ends the iteration.
func (r *Reader) All() iter.Seq2[DecodedEvent, error] {
	return func(yield func(DecodedEvent, error) bool) {
		for {
			ev, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(DecodedEvent{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Close releases the decoded data. Next fails after Close.
func (r *Reader) Close() error {
	r.closed = true
	r.pending = nil
	return nil
}

func decodeChunk(entry archive.Entry) ([]DecodedEvent, error) {
	fail := func(err error) ([]DecodedEvent, error) {
		return nil, &FormatError{Entry: entry.Name, Err: err}
	}

	var chunk wireChunk
	if err := json.Unmarshal(entry.Data, &chunk); err != nil {
		return fail(err)
	}

	events := make([]DecodedEvent, 0, len(chunk.Events))
	for n, we := range chunk.Events {
		if we.Schema < 0 || we.Schema >= len(chunk.Schemas) {
			return fail(fmt.Errorf("event %d references unknown schema %d", n, we.Schema))
		}
		schema := chunk.Schemas[we.Schema]
		if len(we.Values) != len(schema.Fields) {
			return fail(fmt.Errorf("event %d of %s has %d values for %d fields", n, schema.Name, len(we.Values), len(schema.Fields)))
		}
		fields := make(map[string]any, len(schema.Fields))
		for i, f := range schema.Fields {
			v, err := decodeValue(f.Type, we.Values[i])
			if err != nil {
				return fail(fmt.Errorf("event %d of %s field %s: %w", n, schema.Name, f.Name, err))
			}
			fields[f.Name] = v
		}
		events = append(events, DecodedEvent{
			Kind:     schema.Name,
			Label:    schema.Label,
			Category: slices.Clone(schema.Category),
			Fields:   fields,
			Begin:    time.Unix(0, we.Begin),
			End:      time.Unix(0, we.End),
		})
	}
	return events, nil
}

// CountWhere reads the remaining events and counts those matching pred.
func CountWhere(r *Reader, pred func(DecodedEvent) bool) (int, error) {
	n := 0
	for ev, err := range r.All() {
		if err != nil {
			return n, err
		}
		if pred(ev) {
			n++
		}
	}
	return n, nil
}

// KindIs matches events of the named kind.
func KindIs(kind string) func(DecodedEvent) bool {
	return func(ev DecodedEvent) bool {
		return ev.Kind == kind
	}
}

// FieldEquals matches events whose named field equals v.
func FieldEquals(name string, v any) func(DecodedEvent) bool {
	return func(ev DecodedEvent) bool {
		got, ok := ev.Fields[name]
		return ok && got == v
	}
}

// And matches events satisfying every predicate.
func And(preds ...func(DecodedEvent) bool) func(DecodedEvent) bool {
	return func(ev DecodedEvent) bool {
		for _, p := range preds {
			if !p(ev) {
				return false
			}
		}
		return true
	}
}
