package assay

import (
	"errors"
	"strings"
	"testing"
)

func TestMerge_DisjointFields_ForcesNullable(t *testing.T) {
	left := mustSchema(t, Field{Name: "x", Type: Type{Kind: KindInt64}})
	right := mustSchema(t, Field{Name: "y", Type: Type{Kind: KindInt64}})

	merged, err := left.Merge(right)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	want := mustSchema(t,
		Field{Name: "x", Type: Type{Kind: KindInt64}, Nullable: true},
		Field{Name: "y", Type: Type{Kind: KindInt64}, Nullable: true},
	)
	if !merged.Equal(want) {
		t.Errorf("Merge() = %s, want %s", merged, want)
	}
}

func TestMerge_SharedField_NullableIsOr(t *testing.T) {
	left := mustSchema(t,
		Field{Name: "id", Type: Type{Kind: KindInt64}},
		Field{Name: "name", Type: Type{Kind: KindString}, Nullable: true},
	)
	right := mustSchema(t,
		Field{Name: "id", Type: Type{Kind: KindInt64}},
		Field{Name: "name", Type: Type{Kind: KindString}},
	)

	merged, err := left.Merge(right)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	id, _ := merged.FieldByName("id")
	if id.Nullable {
		t.Error("id nullable after merge, want required on both sides to stay required")
	}
	name, _ := merged.FieldByName("name")
	if !name.Nullable {
		t.Error("name required after merge, want nullable when either side is")
	}
}

func TestMerge_PreservesLeftOrder_AppendsRightExclusives(t *testing.T) {
	left := mustSchema(t,
		Field{Name: "a", Type: Type{Kind: KindInt32}},
		Field{Name: "b", Type: Type{Kind: KindInt32}},
	)
	right := mustSchema(t,
		Field{Name: "c", Type: Type{Kind: KindInt32}},
		Field{Name: "b", Type: Type{Kind: KindInt32}},
		Field{Name: "d", Type: Type{Kind: KindInt32}},
	)

	merged, err := left.Merge(right)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	var names []string
	for _, field := range merged.Fields() {
		names = append(names, field.Name)
	}
	want := "a,b,c,d"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("merged order = %s, want %s", got, want)
	}
}

func TestMerge_TypeConflict(t *testing.T) {
	left := mustSchema(t, Field{Name: "value", Type: Type{Kind: KindInt64}})
	right := mustSchema(t, Field{Name: "value", Type: Type{Kind: KindString}})

	_, err := left.Merge(right)
	if !errors.Is(err, ErrSchemaConflict) {
		t.Fatalf("Merge() error = %v, want ErrSchemaConflict", err)
	}

	var conflict *SchemaConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Merge() error type = %T, want *SchemaConflictError", err)
	}
	if conflict.Name != "value" {
		t.Errorf("conflict.Name = %q, want %q", conflict.Name, "value")
	}
	if !strings.Contains(err.Error(), "int64") || !strings.Contains(err.Error(), "string") {
		t.Errorf("conflict message = %q, want both types named", err.Error())
	}
}

func TestMerge_NestedTypeConflict(t *testing.T) {
	left := mustSchema(t, Field{Name: "tags", Type: ListOf(Type{Kind: KindString})})
	right := mustSchema(t, Field{Name: "tags", Type: ListOf(Type{Kind: KindInt64})})

	_, err := left.Merge(right)
	if !errors.Is(err, ErrSchemaConflict) {
		t.Errorf("Merge() error = %v, want ErrSchemaConflict", err)
	}
}

func TestMerge_StructFieldMismatch_IsConflict(t *testing.T) {
	// Struct types merge by identity, not recursively.
	left := mustSchema(t, Field{Name: "loc", Type: StructOf(
		Field{Name: "lat", Type: Type{Kind: KindFloat64}},
	)})
	right := mustSchema(t, Field{Name: "loc", Type: StructOf(
		Field{Name: "lat", Type: Type{Kind: KindFloat64}},
		Field{Name: "lon", Type: Type{Kind: KindFloat64}},
	)})

	_, err := left.Merge(right)
	if !errors.Is(err, ErrSchemaConflict) {
		t.Errorf("Merge() error = %v, want ErrSchemaConflict", err)
	}
}

func TestMerge_WithEmptySchema_ForcesNullable(t *testing.T) {
	// An empty schema describes files with no columns at all, so every
	// column of the other side is missing somewhere in the union.
	schema := mustSchema(t, Field{Name: "id", Type: Type{Kind: KindInt64}})
	empty := Schema{}

	merged, err := schema.Merge(empty)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if got := merged.Field(0); !got.Nullable {
		t.Errorf("Merge(empty) field = %s, want nullable", got)
	}

	merged, err = empty.Merge(schema)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if got := merged.Field(0); !got.Nullable {
		t.Errorf("empty.Merge() field = %s, want nullable", got)
	}
}

func TestMerge_SelfMerge_IsIdentity(t *testing.T) {
	schema := mustSchema(t,
		Field{Name: "id", Type: Type{Kind: KindInt64}},
		Field{Name: "name", Type: Type{Kind: KindString}, Nullable: true},
		Field{Name: "tags", Type: ListOf(Type{Kind: KindString}), Nullable: true},
	)

	merged, err := schema.Merge(schema)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !merged.Equal(schema) {
		t.Errorf("self merge = %s, want %s", merged, schema)
	}
}

func TestMerge_Associative_UpToOrder(t *testing.T) {
	// pk is required everywhere and must stay required under either
	// grouping; the rest mixes shared and one-sided fields.
	a := mustSchema(t,
		Field{Name: "pk", Type: Type{Kind: KindInt64}},
		Field{Name: "a", Type: Type{Kind: KindInt32}},
		Field{Name: "shared", Type: Type{Kind: KindString}},
	)
	b := mustSchema(t,
		Field{Name: "pk", Type: Type{Kind: KindInt64}},
		Field{Name: "b", Type: Type{Kind: KindFloat64}, Nullable: true},
		Field{Name: "shared", Type: Type{Kind: KindString}, Nullable: true},
	)
	c := mustSchema(t,
		Field{Name: "pk", Type: Type{Kind: KindInt64}},
		Field{Name: "c", Type: ListOf(Type{Kind: KindString})},
	)

	ab, err := a.Merge(b)
	if err != nil {
		t.Fatalf("a.Merge(b) error = %v", err)
	}
	abThenC, err := ab.Merge(c)
	if err != nil {
		t.Fatalf("ab.Merge(c) error = %v", err)
	}
	bc, err := b.Merge(c)
	if err != nil {
		t.Fatalf("b.Merge(c) error = %v", err)
	}
	aThenBC, err := a.Merge(bc)
	if err != nil {
		t.Fatalf("a.Merge(bc) error = %v", err)
	}

	if abThenC.Len() != aThenBC.Len() {
		t.Fatalf("grouping changed field count: %d vs %d", abThenC.Len(), aThenBC.Len())
	}
	for _, field := range abThenC.Fields() {
		counterpart, ok := aThenBC.FieldByName(field.Name)
		if !ok {
			t.Fatalf("field %q missing from regrouped merge", field.Name)
		}
		if !field.Equal(counterpart) {
			t.Errorf("field %q differs across grouping: %s vs %s", field.Name, field, counterpart)
		}
	}

	if pk, _ := abThenC.FieldByName("pk"); pk.Nullable {
		t.Error("pk nullable after merges, want required on all sides to stay required")
	}
}

func TestMerge_Commutative_UpToOrder(t *testing.T) {
	left := mustSchema(t,
		Field{Name: "a", Type: Type{Kind: KindInt32}},
		Field{Name: "shared", Type: Type{Kind: KindString}},
	)
	right := mustSchema(t,
		Field{Name: "b", Type: Type{Kind: KindFloat64}, Nullable: true},
		Field{Name: "shared", Type: Type{Kind: KindString}, Nullable: true},
	)

	lr, err := left.Merge(right)
	if err != nil {
		t.Fatalf("left.Merge(right) error = %v", err)
	}
	rl, err := right.Merge(left)
	if err != nil {
		t.Fatalf("right.Merge(left) error = %v", err)
	}

	if lr.Len() != rl.Len() {
		t.Fatalf("merge lengths differ: %d vs %d", lr.Len(), rl.Len())
	}
	for _, field := range lr.Fields() {
		counterpart, ok := rl.FieldByName(field.Name)
		if !ok {
			t.Fatalf("field %q missing from reversed merge", field.Name)
		}
		if !field.Equal(counterpart) {
			t.Errorf("field %q differs across merge order: %s vs %s", field.Name, field, counterpart)
		}
	}
}
