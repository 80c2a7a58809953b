package assay

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewTable_Validations(t *testing.T) {
	tests := []struct {
		name      string
		factory   StoreFactory
		locations []string
		wantMsg   string
	}{
		{"nil factory", nil, []string{"t"}, "store factory is required"},
		{"factory error", func() (Store, error) { return nil, errors.New("no credentials") }, []string{"t"}, "store factory failed"},
		{"nil store", func() (Store, error) { return nil, nil }, []string{"t"}, "nil store"},
		{"no locations", NewMemoryFactory(), nil, "at least one location"},
		{"empty location", NewMemoryFactory(), []string{"t", ""}, "location cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.factory, tt.locations)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("NewTable() error = %v, want message containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestTable_SchemaAndFiles(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	schema := mustSchema(t,
		Field{Name: "id", Type: Type{Kind: KindInt64}},
		Field{Name: "name", Type: Type{Kind: KindString}, Nullable: true},
	)
	payload := summaryBytes(t, schema)

	part1 := seedObject(t, store, "events/part-1.parquet", payload)
	part2 := seedObject(t, store, "events/part-2.parquet", payload)
	seedObject(t, store, "events/_common_metadata", payload)
	seedObject(t, store, "events/_metadata", payload)
	seedObject(t, store, "events/_SUCCESS", nil)

	table, err := NewTable(func() (Store, error) { return store, nil }, []string{"events"})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	got, err := table.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if !got.Equal(schema) {
		t.Errorf("Schema() = %s, want %s", got, schema)
	}

	data, err := table.DataFiles(ctx)
	if err != nil {
		t.Fatalf("DataFiles() error = %v", err)
	}
	if !sameEntries(data, []FileEntry{part1, part2}) {
		t.Errorf("DataFiles() = %v, want the two part files", data)
	}

	summaries, err := table.SummaryFiles(ctx)
	if err != nil {
		t.Fatalf("SummaryFiles() error = %v", err)
	}
	if len(summaries) != 2 || summaries[0].Path != "events/_common_metadata" {
		t.Errorf("SummaryFiles() = %v, want common metadata first", summaries)
	}

	size, err := table.SizeInBytes(ctx)
	if err != nil {
		t.Fatalf("SizeInBytes() error = %v", err)
	}
	if want := part1.Size + part2.Size; size != want {
		t.Errorf("SizeInBytes() = %d, want %d", size, want)
	}
}

func TestTable_RefreshSkipsUnchangedListing(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{Store: NewMemory()}

	schema := mustSchema(t, Field{Name: "id", Type: Type{Kind: KindInt64}})
	seedObject(t, counting.Store, "t/part-1.parquet", summaryBytes(t, schema))

	table, err := NewTable(func() (Store, error) { return counting, nil }, []string{"t"})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	if _, err := table.Schema(ctx); err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if counting.readerAtCalls != 1 {
		t.Fatalf("footer reads after first resolve = %d, want 1", counting.readerAtCalls)
	}

	if err := table.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if counting.readerAtCalls != 1 {
		t.Errorf("footer reads after unchanged refresh = %d, want 1", counting.readerAtCalls)
	}

	// A new file invalidates the cached listing.
	seedObject(t, counting.Store, "t/part-2.parquet", summaryBytes(t, schema))
	if err := table.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if counting.readerAtCalls != 2 {
		t.Errorf("footer reads after listing change = %d, want 2", counting.readerAtCalls)
	}
}

func TestTable_ListingCacheDisabled(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{Store: NewMemory()}

	schema := mustSchema(t, Field{Name: "id", Type: Type{Kind: KindInt64}})
	seedObject(t, counting.Store, "t/part-1.parquet", summaryBytes(t, schema))

	table, err := NewTable(func() (Store, error) { return counting, nil }, []string{"t"},
		WithListingCache(false))
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	if err := table.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := table.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if counting.readerAtCalls != 2 {
		t.Errorf("footer reads = %d, want one per refresh", counting.readerAtCalls)
	}
}

func TestTable_SchemaNotFound(t *testing.T) {
	table, err := NewTable(NewMemoryFactory(), []string{"empty/dir"})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	_, err = table.Schema(context.Background())
	if !errors.Is(err, ErrSchemaNotFound) {
		t.Fatalf("Schema() error = %v, want ErrSchemaNotFound", err)
	}
	if !strings.Contains(err.Error(), "empty/dir") {
		t.Errorf("Schema() error = %v, want location in message", err)
	}
}

func TestTable_CatalogFallback_WhenNoFiles(t *testing.T) {
	catalog := mustSchema(t,
		Field{Name: "id", Type: Type{Kind: KindInt64}},
		Field{Name: "note", Type: Type{Kind: KindString}, Nullable: true},
	)

	table, err := NewTable(NewMemoryFactory(), []string{"empty"},
		WithCatalogSchema(catalog))
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	got, err := table.Schema(context.Background())
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if !got.Equal(catalog) {
		t.Errorf("Schema() = %s, want the catalog schema %s", got, catalog)
	}
}

func TestTable_CatalogReconciliation(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	stored := mustSchema(t, Field{Name: "UserID", Type: Type{Kind: KindInt64}})
	seedObject(t, store, "t/part-1.parquet", summaryBytes(t, stored))

	catalog := mustSchema(t,
		Field{Name: "userid", Type: Type{Kind: KindInt64}},
		Field{Name: "extra", Type: Type{Kind: KindString}, Nullable: true},
	)

	table, err := NewTable(func() (Store, error) { return store, nil }, []string{"t"},
		WithCatalogSchema(catalog))
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	got, err := table.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}

	want := mustSchema(t,
		Field{Name: "UserID", Type: Type{Kind: KindInt64}},
		Field{Name: "extra", Type: Type{Kind: KindString}, Nullable: true},
	)
	if !got.Equal(want) {
		t.Errorf("Schema() = %s, want %s", got, want)
	}
}

func TestTable_CatalogMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	stored := mustSchema(t, Field{Name: "other", Type: Type{Kind: KindInt64}})
	seedObject(t, store, "t/part-1.parquet", summaryBytes(t, stored))

	catalog := mustSchema(t, Field{Name: "id", Type: Type{Kind: KindInt64}})

	table, err := NewTable(func() (Store, error) { return store, nil }, []string{"t"},
		WithCatalogSchema(catalog))
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	if _, err := table.Schema(ctx); !errors.Is(err, ErrCatalogMismatch) {
		t.Errorf("Schema() error = %v, want ErrCatalogMismatch", err)
	}
}

func TestTable_DeclaredSchema_SkipsDiscovery(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{Store: NewMemory()}

	// The corrupt data file would fail discovery if it were read.
	seedObject(t, counting.Store, "t/part-1.parquet", []byte("xxxxxxxxxxxxxxxx"))

	declared := mustSchema(t, Field{Name: "id", Type: Type{Kind: KindInt64}})
	table, err := NewTable(func() (Store, error) { return counting, nil }, []string{"t"},
		WithDeclaredSchema(declared))
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	got, err := table.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if !got.Equal(declared) {
		t.Errorf("Schema() = %s, want %s", got, declared)
	}
	if counting.readerAtCalls != 0 {
		t.Errorf("footer reads = %d, want 0 with a declared schema", counting.readerAtCalls)
	}
}

func TestTable_DuplicateColumns(t *testing.T) {
	declared := mustSchema(t,
		Field{Name: "ID", Type: Type{Kind: KindInt64}},
		Field{Name: "id", Type: Type{Kind: KindInt32}},
	)

	table, err := NewTable(NewMemoryFactory(), []string{"t"},
		WithDeclaredSchema(declared))
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	_, err = table.Schema(context.Background())
	if !errors.Is(err, ErrDuplicateColumns) {
		t.Fatalf("Schema() error = %v, want ErrDuplicateColumns", err)
	}
	if !strings.Contains(err.Error(), "ID and id") {
		t.Errorf("Schema() error = %v, want colliding names in message", err)
	}
}

func TestTable_RefreshPicksUpNewFiles(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	v1 := mustSchema(t, Field{Name: "id", Type: Type{Kind: KindInt64}})
	seedObject(t, store, "t/part-1.parquet", summaryBytes(t, v1))

	table, err := NewTable(func() (Store, error) { return store, nil }, []string{"t"},
		WithMergeSchemas(true))
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	got, err := table.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if !got.Equal(v1) {
		t.Fatalf("Schema() = %s, want %s", got, v1)
	}

	v2 := mustSchema(t,
		Field{Name: "id", Type: Type{Kind: KindInt64}},
		Field{Name: "name", Type: Type{Kind: KindString}, Nullable: true},
	)
	seedObject(t, store, "t/part-2.parquet", summaryBytes(t, v2))

	// The cached schema holds until a refresh observes the new file.
	got, err = table.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if !got.Equal(v1) {
		t.Errorf("Schema() before refresh = %s, want cached %s", got, v1)
	}

	if err := table.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	got, err = table.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if !got.Equal(v2) {
		t.Errorf("Schema() after refresh = %s, want %s", got, v2)
	}
}

func TestTable_Locations_ReturnsCopy(t *testing.T) {
	table, err := NewTable(NewMemoryFactory(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	locations := table.Locations()
	locations[0] = "mutated"

	if got := table.Locations()[0]; got != "a" {
		t.Errorf("Locations()[0] = %q after mutation, want %q", got, "a")
	}
}

// countingStore counts footer opens to observe discovery work.
type countingStore struct {
	Store
	readerAtCalls int
}

func (s *countingStore) ReaderAt(ctx context.Context, path string) (SizedReaderAt, error) {
	s.readerAtCalls++
	return s.Store.ReaderAt(ctx, path)
}
