package critwatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Tap30/critwatch/archive"
)

// formatVersion is written into every manifest and checked on read.
const formatVersion = 1

const (
	manifestEntry = "manifest.json"
	chunkPrefix   = "chunks/"
)

func chunkEntryName(i int) string {
	return fmt.Sprintf("%s%06d.json", chunkPrefix, i)
}

func isChunkEntry(name string) bool {
	return strings.HasPrefix(name, chunkPrefix) && strings.HasSuffix(name, ".json")
}

// Manifest describes a dumped recording.
type Manifest struct {
	Format       int               `json:"format"`
	RecordingID  string            `json:"recording_id"`
	Name         string            `json:"name,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	StoppedAt    *time.Time        `json:"stopped_at,omitempty"`
	DumpedAt     time.Time         `json:"dumped_at"`
	MaxSize      int64             `json:"max_size"`
	EventCount   int               `json:"event_count"`
	EvictedCount int64             `json:"evicted_count"`
	ChunkCount   int               `json:"chunk_count"`
	Labels       map[string]string `json:"labels,omitempty"`
}

type recordingSnapshot struct {
	manifest Manifest
	events   []RecordedEvent
}

// wireSchema is a schema as stored in a chunk's schema table.
type wireSchema struct {
	Name        string   `json:"name"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    []string `json:"category,omitempty"`
	Fields      []Field  `json:"fields"`
}

// wireEvent references its schema by position in the chunk's table.
// Timestamps are Unix nanoseconds.
type wireEvent struct {
	Schema int               `json:"s"`
	Begin  int64             `json:"b"`
	End    int64             `json:"e"`
	Values []json.RawMessage `json:"v"`
}

type wireChunk struct {
	Schemas []wireSchema `json:"schemas"`
	Events  []wireEvent  `json:"events"`
}

// encodeRecording lays a snapshot out as a manifest followed by chunks of at
// most chunkSize events, each carrying the schemas it references.
func encodeRecording(snap recordingSnapshot, chunkSize int) ([]byte, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunks := (len(snap.events) + chunkSize - 1) / chunkSize
	snap.manifest.ChunkCount = chunks

	manifest, err := json.Marshal(snap.manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	entries := make([]archive.Entry, 0, chunks+1)
	entries = append(entries, archive.Entry{Name: manifestEntry, Data: manifest})

	for i := 0; i < chunks; i++ {
		lo := i * chunkSize
		hi := min(lo+chunkSize, len(snap.events))
		data, err := encodeChunk(snap.events[lo:hi])
		if err != nil {
			return nil, fmt.Errorf("encode chunk %d: %w", i, err)
		}
		entries = append(entries, archive.Entry{Name: chunkEntryName(i), Data: data})
	}
	return archive.Write(entries)
}

func encodeChunk(events []RecordedEvent) ([]byte, error) {
	var chunk wireChunk
	// Schemas are keyed by identity so that distinct schemas sharing a name
	// keep separate table slots.
	table := make(map[*Schema]int)
	chunk.Events = make([]wireEvent, 0, len(events))

	for _, ev := range events {
		idx, ok := table[ev.schema]
		if !ok {
			idx = len(chunk.Schemas)
			table[ev.schema] = idx
			chunk.Schemas = append(chunk.Schemas, wireSchema{
				Name:        ev.schema.name,
				Label:       ev.schema.label,
				Description: ev.schema.description,
				Category:    ev.schema.category,
				Fields:      ev.schema.fields,
			})
		}
		values := make([]json.RawMessage, len(ev.values))
		for i, v := range ev.values {
			raw, err := encodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("%s field %d: %w", ev.schema.name, i, err)
			}
			values[i] = raw
		}
		chunk.Events = append(chunk.Events, wireEvent{
			Schema: idx,
			Begin:  ev.begin.UnixNano(),
			End:    ev.end.UnixNano(),
			Values: values,
		})
	}
	return json.Marshal(chunk)
}

// encodeValue writes integers and booleans as JSON literals and floats as
// strings so NaN and the infinities survive.
func encodeValue(v any) (json.RawMessage, error) {
	switch x := v.(type) {
	case bool:
		return json.RawMessage(strconv.FormatBool(x)), nil
	case int8:
		return json.RawMessage(strconv.FormatInt(int64(x), 10)), nil
	case uint16:
		return json.RawMessage(strconv.FormatUint(uint64(x), 10)), nil
	case int16:
		return json.RawMessage(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return json.RawMessage(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return json.RawMessage(strconv.FormatInt(x, 10)), nil
	case float32:
		return json.Marshal(strconv.FormatFloat(float64(x), 'g', -1, 32))
	case float64:
		return json.Marshal(strconv.FormatFloat(x, 'g', -1, 64))
	case string:
		return json.Marshal(x)
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func decodeValue(t FieldType, raw json.RawMessage) (any, error) {
	text := string(bytes.TrimSpace(raw))
	if text == "" || text == "null" {
		return nil, fmt.Errorf("missing %s value", t)
	}
	switch t {
	case TypeBoolean:
		var b bool
		err := json.Unmarshal(raw, &b)
		return b, err
	case TypeByte:
		n, err := strconv.ParseInt(text, 10, 8)
		return int8(n), err
	case TypeChar:
		n, err := strconv.ParseUint(text, 10, 16)
		return uint16(n), err
	case TypeShort:
		n, err := strconv.ParseInt(text, 10, 16)
		return int16(n), err
	case TypeInt:
		n, err := strconv.ParseInt(text, 10, 32)
		return int32(n), err
	case TypeLong:
		n, err := strconv.ParseInt(text, 10, 64)
		return n, err
	case TypeFloat:
		f, err := decodeFloat(raw, 32)
		return float32(f), err
	case TypeDouble:
		return decodeFloat(raw, 64)
	case TypeString:
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	return nil, fmt.Errorf("unknown field type %q", t)
}

func decodeFloat(raw json.RawMessage, bits int) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return math.NaN(), err
	}
	return strconv.ParseFloat(s, bits)
}
