package assay

import "fmt"

// SchemaConflictError reports two schemas assigning incompatible types to
// the same field name. It unwraps to ErrSchemaConflict.
type SchemaConflictError struct {
	// Name is the conflicting field's name.
	Name string

	// Left and Right are the incompatible types.
	Left  Type
	Right Type
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema conflict: field %q has type %s on one side and %s on the other", e.Name, e.Left, e.Right)
}

func (e *SchemaConflictError) Unwrap() error { return ErrSchemaConflict }

// Merge combines two schemas by field name.
//
// A name present in both schemas must carry the identical type on both
// sides; the merged field is nullable if either side is. A name present in
// only one schema is included with nullability forced on, since some files
// in the union lack it. The receiver's field order is preserved; fields
// unique to other are appended in their original relative order.
//
// Merge is associative and commutative with respect to the resulting set
// of (name, type, nullable) triples, and merging a schema with itself
// returns an equal schema.
func (s Schema) Merge(other Schema) (Schema, error) {
	pending := make(map[string]Field, len(other.fields))
	for _, field := range other.fields {
		pending[field.Name] = field
	}

	merged := make([]Field, 0, len(s.fields)+len(other.fields))
	for _, left := range s.fields {
		right, shared := pending[left.Name]
		if !shared {
			left.Nullable = true
			merged = append(merged, left)
			continue
		}
		if !left.Type.Equal(right.Type) {
			return Schema{}, &SchemaConflictError{Name: left.Name, Left: left.Type, Right: right.Type}
		}
		left.Nullable = left.Nullable || right.Nullable
		merged = append(merged, left)
		delete(pending, left.Name)
	}

	for _, right := range other.fields {
		if _, unmatched := pending[right.Name]; !unmatched {
			continue
		}
		right.Nullable = true
		merged = append(merged, right)
	}

	return Schema{fields: merged}, nil
}
