package assay

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go/deprecated"
	"github.com/parquet-go/parquet-go/format"
)

// convertOptions controls how ambiguous physical types map to logical ones.
type convertOptions struct {
	// binaryAsString maps unannotated BYTE_ARRAY columns to string.
	binaryAsString bool

	// int96AsTimestamp maps INT96 columns to timestamp. Without it INT96
	// has no logical mapping and conversion fails.
	int96AsTimestamp bool

	// strictFormat rejects the legacy one- and two-level list layouts.
	strictFormat bool
}

// invalidNameChars cannot appear in field names; they collide with the
// separators used in schema rendering and partition paths.
const invalidNameChars = " ,;{}()\n\t="

func checkFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidFieldName)
	}
	if strings.ContainsAny(name, invalidNameChars) {
		return fmt.Errorf("%w: %q contains one of %q", ErrInvalidFieldName, name, invalidNameChars)
	}
	return nil
}

// fromParquetSchema converts a file's flat schema element list into a
// logical schema. The first element is the message root; children follow
// their parent in depth-first order.
func fromParquetSchema(elements []format.SchemaElement, opts convertOptions) (Schema, error) {
	if len(elements) == 0 {
		return Schema{}, fmt.Errorf("%w: missing schema root", ErrInvalidFormat)
	}
	fields, _, err := convertChildren(elements, 1, childCount(&elements[0]), opts)
	if err != nil {
		return Schema{}, err
	}
	return NewSchema(fields)
}

func convertChildren(elements []format.SchemaElement, pos, count int, opts convertOptions) ([]Field, int, error) {
	fields := make([]Field, 0, count)
	for i := 0; i < count; i++ {
		field, next, err := convertElement(elements, pos, opts)
		if err != nil {
			return nil, 0, err
		}
		fields = append(fields, field)
		pos = next
	}
	return fields, pos, nil
}

// convertElement converts one named field, including its repetition.
func convertElement(elements []format.SchemaElement, pos int, opts convertOptions) (Field, int, error) {
	if pos >= len(elements) {
		return Field{}, 0, fmt.Errorf("%w: schema tree truncated", ErrInvalidFormat)
	}
	elem := &elements[pos]
	if err := checkFieldName(elem.Name); err != nil {
		return Field{}, 0, err
	}

	typ, next, err := convertNode(elements, pos, opts)
	if err != nil {
		return Field{}, 0, err
	}

	// A repeated field outside any LIST or MAP annotation is a legacy
	// single-level list of its own type.
	if repetitionOf(elem) == format.Repeated && !isListAnnotated(elem) && !isMapAnnotated(elem) {
		if opts.strictFormat {
			return Field{}, 0, fmt.Errorf("%w: field %q uses a legacy repeated layout", ErrUnsupportedType, elem.Name)
		}
		return Field{Name: elem.Name, Type: ListOf(typ)}, next, nil
	}

	return Field{Name: elem.Name, Type: typ, Nullable: repetitionOf(elem) == format.Optional}, next, nil
}

// convertNode converts the element at pos to its logical type, ignoring
// the element's own repetition.
func convertNode(elements []format.SchemaElement, pos int, opts convertOptions) (Type, int, error) {
	if pos >= len(elements) {
		return Type{}, 0, fmt.Errorf("%w: schema tree truncated", ErrInvalidFormat)
	}
	elem := &elements[pos]

	if elem.Type != nil {
		typ, err := convertPrimitive(elem, opts)
		if err != nil {
			return Type{}, 0, fmt.Errorf("field %q: %w", elem.Name, err)
		}
		return typ, pos + 1, nil
	}

	switch {
	case isListAnnotated(elem):
		return convertList(elements, pos, opts)
	case isMapAnnotated(elem):
		return convertMap(elements, pos, opts)
	}

	fields, next, err := convertChildren(elements, pos+1, childCount(elem), opts)
	if err != nil {
		return Type{}, 0, err
	}
	if len(fields) == 0 {
		return Type{}, 0, fmt.Errorf("%w: group %q has no fields", ErrInvalidFormat, elem.Name)
	}
	return StructOf(fields...), next, nil
}

// isListElement reports whether the repeated child of a LIST group is the
// element itself (one- and two-level layouts) rather than the standard
// three-level wrapper.
func isListElement(repeated *format.SchemaElement, listName string) bool {
	switch {
	case repeated.Type != nil:
		return true
	case childCount(repeated) > 1:
		return true
	case repeated.Name == "array":
		return true
	case repeated.Name == listName+"_tuple":
		return true
	default:
		return false
	}
}

func convertList(elements []format.SchemaElement, pos int, opts convertOptions) (Type, int, error) {
	elem := &elements[pos]
	if childCount(elem) != 1 || pos+1 >= len(elements) {
		return Type{}, 0, fmt.Errorf("%w: list group %q must wrap a single repeated field", ErrInvalidFormat, elem.Name)
	}
	repeated := &elements[pos+1]
	if repetitionOf(repeated) != format.Repeated {
		return Type{}, 0, fmt.Errorf("%w: list group %q must wrap a single repeated field", ErrInvalidFormat, elem.Name)
	}

	if isListElement(repeated, elem.Name) {
		if opts.strictFormat {
			return Type{}, 0, fmt.Errorf("%w: field %q uses a legacy list layout", ErrUnsupportedType, elem.Name)
		}
		element, next, err := convertNode(elements, pos+1, opts)
		if err != nil {
			return Type{}, 0, err
		}
		return ListOf(element), next, nil
	}

	if childCount(repeated) != 1 {
		return Type{}, 0, fmt.Errorf("%w: list group %q has an empty element group", ErrInvalidFormat, elem.Name)
	}
	element, next, err := convertNode(elements, pos+2, opts)
	if err != nil {
		return Type{}, 0, err
	}
	return ListOf(element), next, nil
}

func convertMap(elements []format.SchemaElement, pos int, opts convertOptions) (Type, int, error) {
	elem := &elements[pos]

	// Legacy writers annotate the repeated key/value group directly.
	if childCount(elem) == 2 && repetitionOf(elem) == format.Repeated {
		return convertMapPair(elements, pos, opts)
	}

	if childCount(elem) != 1 || pos+1 >= len(elements) {
		return Type{}, 0, fmt.Errorf("%w: map group %q must wrap a repeated key/value group", ErrInvalidFormat, elem.Name)
	}
	pair := &elements[pos+1]
	if repetitionOf(pair) != format.Repeated {
		return Type{}, 0, fmt.Errorf("%w: map group %q must wrap a repeated key/value group", ErrInvalidFormat, elem.Name)
	}
	return convertMapPair(elements, pos+1, opts)
}

func convertMapPair(elements []format.SchemaElement, pos int, opts convertOptions) (Type, int, error) {
	pair := &elements[pos]
	if pair.Type != nil || childCount(pair) != 2 {
		return Type{}, 0, fmt.Errorf("%w: map group %q must hold a key and a value", ErrInvalidFormat, pair.Name)
	}
	key, keyEnd, err := convertNode(elements, pos+1, opts)
	if err != nil {
		return Type{}, 0, err
	}
	value, next, err := convertNode(elements, keyEnd, opts)
	if err != nil {
		return Type{}, 0, err
	}
	return MapOf(key, value), next, nil
}

// convertPrimitive maps one physical leaf type to its logical kind. The
// switch is closed over the eight Parquet physical types.
func convertPrimitive(elem *format.SchemaElement, opts convertOptions) (Type, error) {
	switch *elem.Type {
	case format.Boolean:
		return Type{Kind: KindBool}, nil

	case format.Int32:
		switch {
		case isDateAnnotated(elem):
			return Type{Kind: KindDate}, nil
		case isUnsignedWidth(elem, 32):
			// Unsigned 32-bit values exceed the int32 range.
			return Type{Kind: KindInt64}, nil
		default:
			return Type{Kind: KindInt32}, nil
		}

	case format.Int64:
		switch {
		case isTimestampAnnotated(elem):
			return Type{Kind: KindTimestamp}, nil
		case isUnsignedWidth(elem, 64):
			return Type{}, fmt.Errorf("%w: unsigned 64-bit integer", ErrUnsupportedType)
		default:
			return Type{Kind: KindInt64}, nil
		}

	case format.Int96:
		if !opts.int96AsTimestamp {
			return Type{}, fmt.Errorf("%w: INT96 without timestamp interpretation", ErrUnsupportedType)
		}
		return Type{Kind: KindTimestamp}, nil

	case format.Float:
		return Type{Kind: KindFloat32}, nil

	case format.Double:
		return Type{Kind: KindFloat64}, nil

	case format.ByteArray:
		switch {
		case isStringAnnotated(elem):
			return Type{Kind: KindString}, nil
		case opts.binaryAsString && !isAnnotated(elem):
			return Type{Kind: KindString}, nil
		default:
			return Type{Kind: KindBinary}, nil
		}

	case format.FixedLenByteArray:
		return Type{Kind: KindBinary}, nil

	default:
		return Type{}, fmt.Errorf("%w: parquet type %s", ErrUnsupportedType, elem.Type)
	}
}

// -----------------------------------------------------------------------------
// Annotation helpers
// -----------------------------------------------------------------------------

func repetitionOf(elem *format.SchemaElement) format.FieldRepetitionType {
	if elem.RepetitionType == nil {
		return format.Required
	}
	return *elem.RepetitionType
}

// childCount reads the optional child count; primitive elements omit it.
func childCount(elem *format.SchemaElement) int {
	if elem.NumChildren == nil {
		return 0
	}
	return int(*elem.NumChildren)
}

func hasConverted(elem *format.SchemaElement, ct deprecated.ConvertedType) bool {
	return elem.ConvertedType != nil && *elem.ConvertedType == ct
}

func isAnnotated(elem *format.SchemaElement) bool {
	return elem.ConvertedType != nil || elem.LogicalType != nil
}

func isListAnnotated(elem *format.SchemaElement) bool {
	if elem.LogicalType != nil && elem.LogicalType.List != nil {
		return true
	}
	return hasConverted(elem, deprecated.List)
}

func isMapAnnotated(elem *format.SchemaElement) bool {
	if elem.LogicalType != nil && elem.LogicalType.Map != nil {
		return true
	}
	return hasConverted(elem, deprecated.Map) || hasConverted(elem, deprecated.MapKeyValue)
}

func isStringAnnotated(elem *format.SchemaElement) bool {
	if lt := elem.LogicalType; lt != nil && (lt.UTF8 != nil || lt.Enum != nil || lt.Json != nil) {
		return true
	}
	return hasConverted(elem, deprecated.UTF8) ||
		hasConverted(elem, deprecated.Enum) ||
		hasConverted(elem, deprecated.Json)
}

func isDateAnnotated(elem *format.SchemaElement) bool {
	if elem.LogicalType != nil && elem.LogicalType.Date != nil {
		return true
	}
	return hasConverted(elem, deprecated.Date)
}

func isTimestampAnnotated(elem *format.SchemaElement) bool {
	if elem.LogicalType != nil && elem.LogicalType.Timestamp != nil {
		return true
	}
	return hasConverted(elem, deprecated.TimestampMillis) || hasConverted(elem, deprecated.TimestampMicros)
}

func isUnsignedWidth(elem *format.SchemaElement, width int8) bool {
	if lt := elem.LogicalType; lt != nil && lt.Integer != nil {
		return !lt.Integer.IsSigned && lt.Integer.BitWidth == width
	}
	switch width {
	case 32:
		return hasConverted(elem, deprecated.Uint32)
	case 64:
		return hasConverted(elem, deprecated.Uint64)
	default:
		return false
	}
}
