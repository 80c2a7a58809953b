package assay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// tableConfig collects table construction settings.
type tableConfig struct {
	discover       DiscoverOptions
	listingCache   bool
	catalogSchema  *Schema
	declaredSchema *Schema
}

// TableOption configures table behavior.
type TableOption func(*tableConfig)

// WithMergeSchemas reads and merges every eligible footer instead of one
// representative file.
func WithMergeSchemas(merge bool) TableOption {
	return func(cfg *tableConfig) { cfg.discover.MergeSchemas = merge }
}

// WithRespectSummaries trusts summary files during a merging discovery,
// skipping individual data footers.
func WithRespectSummaries(respect bool) TableOption {
	return func(cfg *tableConfig) { cfg.discover.RespectSummaries = respect }
}

// WithBinaryAsString maps unannotated BYTE_ARRAY columns to string.
func WithBinaryAsString(asString bool) TableOption {
	return func(cfg *tableConfig) { cfg.discover.BinaryAsString = asString }
}

// WithInt96AsTimestamp maps INT96 columns to timestamp. On by default.
func WithInt96AsTimestamp(asTimestamp bool) TableOption {
	return func(cfg *tableConfig) { cfg.discover.Int96AsTimestamp = asTimestamp }
}

// WithStrictFormat rejects legacy list and repeated-field layouts.
func WithStrictFormat(strict bool) TableOption {
	return func(cfg *tableConfig) { cfg.discover.StrictFormat = strict }
}

// WithParallelism bounds concurrent footer reads during discovery.
func WithParallelism(n int) TableOption {
	return func(cfg *tableConfig) { cfg.discover.Parallelism = n }
}

// WithListingCache toggles reuse of the previous schema when the file
// listing is unchanged. On by default; disabling it forces every Refresh
// to rediscover.
func WithListingCache(enabled bool) TableOption {
	return func(cfg *tableConfig) { cfg.listingCache = enabled }
}

// WithCatalogSchema supplies an authoritative catalog schema. The resolved
// schema is reconciled against it, and it serves as the fallback when
// discovery finds no files.
func WithCatalogSchema(schema Schema) TableOption {
	return func(cfg *tableConfig) { cfg.catalogSchema = &schema }
}

// WithDeclaredSchema pins the table schema, skipping footer discovery.
func WithDeclaredSchema(schema Schema) TableOption {
	return func(cfg *tableConfig) { cfg.declaredSchema = &schema }
}

// -----------------------------------------------------------------------------
// Table implementation
// -----------------------------------------------------------------------------

// tableState is one immutable refresh result. Accessors read whichever
// state pointer is current; Refresh swaps in a replacement.
type tableState struct {
	files  listing
	schema Schema
}

// table implements the Table interface.
type table struct {
	store     Store
	locations []string
	cfg       tableConfig

	mu    sync.RWMutex
	state *tableState
}

// NewTable creates a table over the given storage locations.
//
// Defaults: single-file discovery (no schema merging), INT96 timestamps
// on, listing cache on. Use option functions to override.
func NewTable(factory StoreFactory, locations []string, opts ...TableOption) (Table, error) {
	if factory == nil {
		return nil, errors.New("assay: store factory is required")
	}
	store, err := factory()
	if err != nil {
		return nil, fmt.Errorf("assay: store factory failed: %w", err)
	}
	if store == nil {
		return nil, errors.New("assay: store factory returned nil store")
	}
	if len(locations) == 0 {
		return nil, errors.New("assay: at least one location is required")
	}
	for _, location := range locations {
		if location == "" {
			return nil, errors.New("assay: location cannot be empty")
		}
	}

	cfg := tableConfig{
		discover:     DefaultDiscoverOptions(),
		listingCache: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	copied := make([]string, len(locations))
	copy(copied, locations)

	return &table{store: store, locations: copied, cfg: cfg}, nil
}

func (t *table) Locations() []string {
	copied := make([]string, len(t.locations))
	copy(copied, t.locations)
	return copied
}

// Refresh re-lists the locations and re-resolves the schema. With the
// listing cache enabled, an unchanged listing keeps the previous state
// without rediscovery. Concurrent calls serialize.
func (t *table) Refresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshLocked(ctx)
}

func (t *table) refreshLocked(ctx context.Context) error {
	entries, err := listFiles(ctx, t.store, t.locations)
	if err != nil {
		return err
	}

	if t.cfg.listingCache && t.state != nil && sameEntries(t.state.files.entries, entries) {
		return nil
	}

	files := classifyEntries(entries)
	schema, err := t.resolveSchema(ctx, files)
	if err != nil {
		return err
	}
	if err := checkDuplicateColumns(schema); err != nil {
		return err
	}

	t.state = &tableState{files: files, schema: schema}
	return nil
}

// snapshot returns the current state, performing the first refresh lazily.
func (t *table) snapshot(ctx context.Context) (*tableState, error) {
	t.mu.RLock()
	state := t.state
	t.mu.RUnlock()
	if state != nil {
		return state, nil
	}

	if err := t.Refresh(ctx); err != nil {
		return nil, err
	}

	t.mu.RLock()
	state = t.state
	t.mu.RUnlock()
	return state, nil
}

// resolveSchema resolves the table schema from, in order, the declared
// schema, footer discovery, and the catalog schema. A configured catalog
// schema is reconciled against whichever source won.
func (t *table) resolveSchema(ctx context.Context, files listing) (Schema, error) {
	source, err := t.sourceSchema(ctx, files)
	if err != nil {
		return Schema{}, err
	}
	if source == nil {
		return Schema{}, fmt.Errorf("assay: no schema for table at %s: %w",
			strings.Join(t.locations, ", "), ErrSchemaNotFound)
	}

	if t.cfg.catalogSchema != nil {
		return MergeCatalogSchema(*t.cfg.catalogSchema, *source)
	}
	return *source, nil
}

func (t *table) sourceSchema(ctx context.Context, files listing) (*Schema, error) {
	if t.cfg.declaredSchema != nil {
		return t.cfg.declaredSchema, nil
	}
	discovered, err := DiscoverSchema(ctx, t.store, files.entries, t.cfg.discover)
	if err != nil {
		return nil, err
	}
	if discovered != nil {
		return discovered, nil
	}
	return t.cfg.catalogSchema, nil
}

// checkDuplicateColumns rejects resolved schemas whose column names
// collide case-insensitively. Reconciliation and lookups match names
// case-insensitively, so such schemas are ambiguous.
func checkDuplicateColumns(schema Schema) error {
	seen := make(map[string]string, schema.Len())
	var collisions []string
	for _, field := range schema.fields {
		lower := strings.ToLower(field.Name)
		if first, ok := seen[lower]; ok {
			collisions = append(collisions, fmt.Sprintf("%s and %s", first, field.Name))
			continue
		}
		seen[lower] = field.Name
	}
	if len(collisions) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateColumns, strings.Join(collisions, "; "))
	}
	return nil
}

func (t *table) Schema(ctx context.Context) (Schema, error) {
	state, err := t.snapshot(ctx)
	if err != nil {
		return Schema{}, err
	}
	return state.schema, nil
}

func (t *table) DataFiles(ctx context.Context) ([]FileEntry, error) {
	state, err := t.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	files := make([]FileEntry, len(state.files.data))
	copy(files, state.files.data)
	return files, nil
}

func (t *table) SummaryFiles(ctx context.Context) ([]FileEntry, error) {
	state, err := t.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return state.files.summaries(), nil
}

func (t *table) SizeInBytes(ctx context.Context) (int64, error) {
	state, err := t.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entry := range state.files.data {
		total += entry.Size
	}
	return total, nil
}
