// Package archive implements an ordered container of named byte payloads.
//
// Every entry is Deflate-compressed on its own, so a reader can decode one
// entry at a time without inflating the rest of the archive. Entries come
// back in the order they were written, duplicate names included.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrEntryNotFound is returned by Lookup when no entry has the requested name.
	// It is never returned by Next, which signals the end with io.EOF.
	ErrEntryNotFound = errors.New("archive: entry not found")
	// ErrInvalidEntryName is returned when an entry name is empty or ends in "/".
	ErrInvalidEntryName = errors.New("archive: invalid entry name")
	// ErrWriterClosed is returned when adding to a closed Writer.
	ErrWriterClosed = errors.New("archive: writer closed")
)

// FormatError reports archive bytes that cannot be decoded: a corrupt
// directory, a truncated file or a payload failing its checksum.
type FormatError struct {
	Entry string // empty when the container itself is unreadable
	Err   error
}

func (e *FormatError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("archive: malformed archive: %v", e.Err)
	}
	return fmt.Sprintf("archive: malformed entry %q: %v", e.Entry, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Entry is a single named payload.
type Entry struct {
	Name string
	Data []byte
}

// Writer streams entries into an archive.
type Writer struct {
	zw     *zip.Writer
	closed bool
}

// NewWriter returns a Writer that writes the archive to w.
// The archive is not complete until Close returns.
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w)}
}

// Add compresses data and appends it as the next entry.
func (w *Writer) Add(name string, data []byte) error {
	if w.closed {
		return ErrWriterClosed
	}
	if err := validateName(name); err != nil {
		return err
	}
	f, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("archive: create entry %q: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("archive: write entry %q: %w", name, err)
	}
	return nil
}

// Close writes the archive directory. It is safe to call more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("archive: close: %w", err)
	}
	return nil
}

// Write encodes entries into a complete archive.
func Write(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, e := range entries {
		if err := w.Add(e.Name, e.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func validateName(name string) error {
	if name == "" || strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidEntryName, name)
	}
	return nil
}

// Reader iterates over the entries of an archive. It is forward-only and not
// safe for concurrent use.
type Reader struct {
	files []*zip.File
	pos   int
}

// NewReader parses the archive directory in data. Entry payloads are not
// decompressed until they are reached by Next or Lookup.
func NewReader(data []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, entryError("", err)
	}
	return &Reader{files: zr.File}, nil
}

// Len returns the number of entries in the archive.
func (r *Reader) Len() int {
	return len(r.files)
}

// Next returns the next entry. After the last entry it returns io.EOF; a
// damaged entry yields a *FormatError instead.
func (r *Reader) Next() (Entry, error) {
	if r.pos >= len(r.files) {
		return Entry{}, io.EOF
	}
	f := r.files[r.pos]
	r.pos++
	data, err := readFile(f)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Name: f.Name, Data: data}, nil
}

// Lookup returns the first entry named name regardless of the read position.
func (r *Reader) Lookup(name string) (Entry, error) {
	for _, f := range r.files {
		if f.Name != name {
			continue
		}
		data, err := readFile(f)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Name: f.Name, Data: data}, nil
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
}

// Names lists entry names in archive order.
func (r *Reader) Names() []string {
	names := make([]string, len(r.files))
	for i, f := range r.files {
		names[i] = f.Name
	}
	return names
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, entryError(f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, entryError(f.Name, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// entryError keeps a short read from ever matching io.EOF, which is reserved
// for the end of the entry sequence.
func entryError(name string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &FormatError{Entry: name, Err: err}
}
