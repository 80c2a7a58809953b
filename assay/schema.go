package assay

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// jsonCodec is the JSON configuration used for schema serialization.
var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// SchemaKey is the Parquet footer key-value metadata key under which a
// serialized logical schema is embedded.
const SchemaKey = "assay:schema"

// -----------------------------------------------------------------------------
// Kinds
// -----------------------------------------------------------------------------

// Kind identifies a logical type category.
type Kind int

// Supported logical type kinds.
const (
	KindBool Kind = iota
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindBinary
	KindString
	KindDate
	KindTimestamp
	KindStruct
	KindList
	KindMap
	kindMax // sentinel for validation
)

var kindNames = [...]string{
	KindBool:      "bool",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindFloat32:   "float32",
	KindFloat64:   "float64",
	KindBinary:    "binary",
	KindString:    "string",
	KindDate:      "date",
	KindTimestamp: "timestamp",
	KindStruct:    "struct",
	KindList:      "list",
	KindMap:       "map",
}

func (k Kind) String() string {
	if k < 0 || k >= kindMax {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText encodes the kind as its lowercase name.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || k >= kindMax {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrUnsupportedType, int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText decodes a kind from its lowercase name.
func (k *Kind) UnmarshalText(text []byte) error {
	name := string(text)
	for i, candidate := range kindNames {
		if candidate == name {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown kind %q", ErrUnsupportedType, name)
}

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// Type describes a logical type. Primitive kinds stand alone; KindList
// carries Element, KindMap carries Key and Value, and KindStruct carries
// Fields.
type Type struct {
	Kind    Kind    `json:"kind"`
	Element *Type   `json:"element,omitempty"`
	Key     *Type   `json:"key,omitempty"`
	Value   *Type   `json:"value,omitempty"`
	Fields  []Field `json:"fields,omitempty"`
}

// ListOf returns a list type over the given element type.
func ListOf(element Type) Type {
	return Type{Kind: KindList, Element: &element}
}

// MapOf returns a map type over the given key and value types.
func MapOf(key, value Type) Type {
	return Type{Kind: KindMap, Key: &key, Value: &value}
}

// StructOf returns a struct type over the given fields.
func StructOf(fields ...Field) Type {
	return Type{Kind: KindStruct, Fields: fields}
}

// Equal reports whether two types are identical, including nested element,
// key/value, and field structure.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindList:
		return typesEqual(t.Element, other.Element)
	case KindMap:
		return typesEqual(t.Key, other.Key) && typesEqual(t.Value, other.Value)
	case KindStruct:
		if len(t.Fields) != len(other.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(other.Fields[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func typesEqual(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (t Type) String() string {
	switch t.Kind {
	case KindList:
		if t.Element == nil {
			return "list<?>"
		}
		return fmt.Sprintf("list<%s>", t.Element)
	case KindMap:
		if t.Key == nil || t.Value == nil {
			return "map<?, ?>"
		}
		return fmt.Sprintf("map<%s, %s>", t.Key, t.Value)
	case KindStruct:
		parts := make([]string, len(t.Fields))
		for i, field := range t.Fields {
			parts[i] = field.String()
		}
		return fmt.Sprintf("struct<%s>", strings.Join(parts, ", "))
	default:
		return t.Kind.String()
	}
}

// validate checks that the type's shape matches its kind.
func (t Type) validate() error {
	if t.Kind < 0 || t.Kind >= kindMax {
		return fmt.Errorf("%w: unknown kind %d", ErrUnsupportedType, int(t.Kind))
	}
	switch t.Kind {
	case KindList:
		if t.Element == nil {
			return fmt.Errorf("%w: list type requires an element type", ErrUnsupportedType)
		}
		return t.Element.validate()
	case KindMap:
		if t.Key == nil || t.Value == nil {
			return fmt.Errorf("%w: map type requires key and value types", ErrUnsupportedType)
		}
		if err := t.Key.validate(); err != nil {
			return err
		}
		return t.Value.validate()
	case KindStruct:
		if len(t.Fields) == 0 {
			return fmt.Errorf("%w: struct type requires at least one field", ErrUnsupportedType)
		}
		return validateFields(t.Fields)
	default:
		if t.Element != nil || t.Key != nil || t.Value != nil || len(t.Fields) > 0 {
			return fmt.Errorf("%w: %s type cannot carry nested types", ErrUnsupportedType, t.Kind)
		}
		return nil
	}
}

// -----------------------------------------------------------------------------
// Fields
// -----------------------------------------------------------------------------

// Field is a named, typed schema entry.
type Field struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Equal reports whether two fields have the same name, type, and nullability.
func (f Field) Equal(other Field) bool {
	return f.Name == other.Name && f.Nullable == other.Nullable && f.Type.Equal(other.Type)
}

func (f Field) String() string {
	if f.Nullable {
		return fmt.Sprintf("%s: %s?", f.Name, f.Type)
	}
	return fmt.Sprintf("%s: %s", f.Name, f.Type)
}

func validateFields(fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field.Name == "" {
			return fmt.Errorf("%w: field name cannot be empty", ErrInvalidFieldName)
		}
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("%w: duplicate field name %q", ErrDuplicateColumns, field.Name)
		}
		seen[field.Name] = struct{}{}
		if err := field.Type.validate(); err != nil {
			return fmt.Errorf("field %q: %w", field.Name, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Schema
// -----------------------------------------------------------------------------

// Schema is an ordered collection of uniquely named fields.
//
// Schemas are immutable values. Every operation that changes a schema
// returns a new one.
type Schema struct {
	fields []Field
}

// NewSchema builds a schema from the given fields. Field names must be
// non-empty and unique, and nested types must be well-formed. An empty
// field list is a valid (empty) schema.
func NewSchema(fields []Field) (Schema, error) {
	if err := validateFields(fields); err != nil {
		return Schema{}, err
	}
	copied := make([]Field, len(fields))
	copy(copied, fields)
	return Schema{fields: copied}, nil
}

// Len returns the number of fields.
func (s Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the schema's fields in order.
func (s Schema) Fields() []Field {
	copied := make([]Field, len(s.fields))
	copy(copied, s.fields)
	return copied
}

// Field returns the field at position i.
func (s Schema) Field(i int) Field { return s.fields[i] }

// FieldByName returns the field with the given name, matched exactly.
func (s Schema) FieldByName(name string) (Field, bool) {
	for _, field := range s.fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Equal reports whether two schemas have identical fields in identical order.
func (s Schema) Equal(other Schema) bool {
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if !s.fields[i].Equal(other.fields[i]) {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, field := range s.fields {
		parts[i] = field.String()
	}
	return fmt.Sprintf("schema<%s>", strings.Join(parts, ", "))
}

// schemaJSON is the serialized form of a Schema.
type schemaJSON struct {
	Fields []Field `json:"fields"`
}

// MarshalJSON encodes the schema as {"fields": [...]}.
func (s Schema) MarshalJSON() ([]byte, error) {
	return jsonCodec.Marshal(schemaJSON{Fields: s.fields})
}

// UnmarshalJSON decodes and validates a schema from its serialized form.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw schemaJSON
	if err := jsonCodec.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	decoded, err := NewSchema(raw.Fields)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// EncodeSchema serializes a schema for embedding in file metadata.
func EncodeSchema(s Schema) (string, error) {
	data, err := jsonCodec.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeSchema parses a schema previously produced by EncodeSchema.
func DecodeSchema(serialized string) (Schema, error) {
	var s Schema
	if err := s.UnmarshalJSON([]byte(serialized)); err != nil {
		return Schema{}, err
	}
	return s, nil
}
