package assay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// readFileSchema extracts one file's logical schema, preferring an
// embedded serialized schema over conversion of the physical one. Only the
// trailing metadata region of the file is read.
//
// seen tracks serialized schema strings already handled by this worker; a
// repeat is skipped and yields no schema. A serialized schema that fails to
// parse degrades to physical conversion rather than failing the file.
func readFileSchema(ctx context.Context, store Store, entry FileEntry, opts convertOptions, seen map[string]struct{}) (*Schema, error) {
	ra, err := store.ReaderAt(ctx, entry.Path)
	if err != nil {
		return nil, fmt.Errorf("assay: open %s: %w", entry.Path, err)
	}
	defer func() { _ = ra.Close() }()

	file, err := parquet.OpenFile(ra, entry.Size,
		parquet.SkipPageIndex(true),
		parquet.SkipBloomFilters(true),
	)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("assay: read footer %s: %w", entry.Path, ErrInvalidFormat)
		}
		return nil, fmt.Errorf("assay: read footer %s: %w", entry.Path, err)
	}

	if serialized, ok := file.Lookup(SchemaKey); ok {
		if _, dup := seen[serialized]; dup {
			return nil, nil
		}
		seen[serialized] = struct{}{}
		if schema, err := DecodeSchema(serialized); err == nil {
			return &schema, nil
		}
	}

	schema, err := fromParquetSchema(file.Metadata().Schema, opts)
	if err != nil {
		return nil, fmt.Errorf("assay: convert %s: %w", entry.Path, err)
	}
	return &schema, nil
}
