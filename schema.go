package critwatch

import (
	"fmt"
	"regexp"
	"slices"
)

// FieldType is the primitive type of a schema field.
type FieldType string

const (
	TypeBoolean FieldType = "boolean" // bool
	TypeByte    FieldType = "byte"    // int8
	TypeChar    FieldType = "char"    // uint16
	TypeShort   FieldType = "short"   // int16
	TypeInt     FieldType = "int"     // int32
	TypeLong    FieldType = "long"    // int64
	TypeFloat   FieldType = "float"   // float32
	TypeDouble  FieldType = "double"  // float64
	TypeString  FieldType = "string"  // string
)

// fieldTypes maps each field type to the width it contributes to an event's
// size. Strings are variable and are sized separately.
var fieldTypes = map[FieldType]int64{
	TypeBoolean: 1,
	TypeByte:    1,
	TypeChar:    2,
	TypeShort:   2,
	TypeInt:     4,
	TypeLong:    8,
	TypeFloat:   4,
	TypeDouble:  8,
	TypeString:  4,
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	_, ok := fieldTypes[t]
	return ok
}

// accepts reports whether v has exactly the Go type backing t.
func (t FieldType) accepts(v any) bool {
	switch v.(type) {
	case bool:
		return t == TypeBoolean
	case int8:
		return t == TypeByte
	case uint16:
		return t == TypeChar
	case int16:
		return t == TypeShort
	case int32:
		return t == TypeInt
	case int64:
		return t == TypeLong
	case float32:
		return t == TypeFloat
	case float64:
		return t == TypeDouble
	case string:
		return t == TypeString
	}
	return false
}

// Field describes one value slot of an event.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Label       string    `json:"label,omitempty"`
	Description string    `json:"description,omitempty"`
}

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	schemaNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// Schema is an immutable declaration of an event kind. Event kinds are data,
// so new ones need no new Go types.
type Schema struct {
	name        string
	label       string
	description string
	category    []string
	fields      []Field
	index       map[string]int
}

// NewSchema validates and builds a schema. The order of fields fixes the
// positional index used by Event.Set. Several schemas may share a name.
func NewSchema(name, label, description string, category []string, fields []Field) (*Schema, error) {
	if !schemaNamePattern.MatchString(name) {
		return nil, &SchemaError{Schema: name, Reason: "name is not a well-formed identifier"}
	}
	if len(fields) == 0 {
		return nil, &SchemaError{Schema: name, Reason: "at least one field is required"}
	}

	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if !identifierPattern.MatchString(f.Name) {
			return nil, &SchemaError{Schema: name, Reason: fmt.Sprintf("field %d name %q is not an identifier", i, f.Name)}
		}
		if !f.Type.Valid() {
			return nil, &SchemaError{Schema: name, Reason: fmt.Sprintf("field %q has unknown type %q", f.Name, f.Type)}
		}
		if _, dup := index[f.Name]; dup {
			return nil, &SchemaError{Schema: name, Reason: fmt.Sprintf("duplicate field %q", f.Name)}
		}
		index[f.Name] = i
	}

	return &Schema{
		name:        name,
		label:       label,
		description: description,
		category:    slices.Clone(category),
		fields:      slices.Clone(fields),
		index:       index,
	}, nil
}

// MustSchema is like NewSchema but panics on error. It is meant for
// package-level schema declarations.
func MustSchema(name, label, description string, category []string, fields []Field) *Schema {
	s, err := NewSchema(name, label, description, category, fields)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string        { return s.name }
func (s *Schema) Label() string       { return s.label }
func (s *Schema) Description() string { return s.description }
func (s *Schema) Len() int            { return len(s.fields) }

// Category returns a copy of the category path, outermost first.
func (s *Schema) Category() []string {
	return slices.Clone(s.category)
}

// Fields returns a copy of the field descriptors in positional order.
func (s *Schema) Fields() []Field {
	return slices.Clone(s.fields)
}

// Field returns the descriptor at index i.
func (s *Schema) Field(i int) (Field, bool) {
	if i < 0 || i >= len(s.fields) {
		return Field{}, false
	}
	return s.fields[i], true
}

// FieldIndex returns the position of the named field.
func (s *Schema) FieldIndex(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Positions of the fields of CriticalCallSchema.
const (
	FieldIsCopy     = 0
	FieldMethodName = 1
)

// CriticalCallKind is the name of the JNI critical-call event kind.
const CriticalCallKind = "critwatch.jni.CriticalCall"

var criticalCallSchema = MustSchema(
	CriticalCallKind,
	"JNI Critical",
	"Lists invocation of JNI critical methods",
	[]string{"JNI"},
	[]Field{
		{Name: "isCopy", Type: TypeBoolean, Label: "Is Copy", Description: "Whether the memory was copied"},
		{Name: "methodName", Type: TypeString, Label: "Method Name", Description: "Name of the JNI critical method"},
	},
)

// CriticalCallSchema returns the schema of events emitted for critical
// native calls.
func CriticalCallSchema() *Schema {
	return criticalCallSchema
}
