package assay

import (
	"fmt"
	"sort"
	"strings"
)

// MergeCatalogSchema reconciles a discovered storage schema against an
// authoritative catalog schema.
//
// Catalog-only nullable fields are first gap-filled into the storage
// schema, since catalog definitions may gain optional columns after files
// were written. Fields are then aligned to the catalog's order by
// case-insensitive name, and each aligned pair yields a field carrying the
// storage name casing with the catalog's type and nullability. The catalog
// must not claim more fields than the gap-filled storage schema supplies,
// and aligned names must match case-insensitively; violations fail with
// ErrCatalogMismatch.
func MergeCatalogSchema(catalog, storage Schema) (Schema, error) {
	gapFilled := gapFillMissingNullables(catalog, storage)
	if catalog.Len() > gapFilled.Len() {
		return Schema{}, mismatchError(catalog, storage)
	}

	aligned := alignToCatalog(catalog, gapFilled)

	fields := make([]Field, catalog.Len())
	for i := range fields {
		catalogField := catalog.Field(i)
		storageField := aligned.Field(i)
		if !strings.EqualFold(catalogField.Name, storageField.Name) {
			return Schema{}, mismatchError(catalog, storage)
		}
		merged := catalogField
		merged.Name = storageField.Name
		fields[i] = merged
	}
	return Schema{fields: fields}, nil
}

func mismatchError(catalog, storage Schema) error {
	return fmt.Errorf("%w: catalog %s is not compatible with storage %s", ErrCatalogMismatch, catalog, storage)
}

// gapFillMissingNullables appends catalog-only nullable fields to the
// storage schema. Catalog-only non-nullable fields are left missing so the
// length invariant surfaces the conflict.
func gapFillMissingNullables(catalog, storage Schema) Schema {
	present := make(map[string]struct{}, storage.Len())
	for _, field := range storage.fields {
		present[strings.ToLower(field.Name)] = struct{}{}
	}

	fields := storage.Fields()
	for _, field := range catalog.fields {
		if _, ok := present[strings.ToLower(field.Name)]; ok {
			continue
		}
		if field.Nullable {
			fields = append(fields, field)
		}
	}
	return Schema{fields: fields}
}

// alignToCatalog stably sorts fields into the catalog's ordinal positions.
// Fields unknown to the catalog sort after all known ones in their
// original relative order.
func alignToCatalog(catalog, storage Schema) Schema {
	ordinals := make(map[string]int, catalog.Len())
	for i, field := range catalog.fields {
		ordinals[strings.ToLower(field.Name)] = i
	}

	rank := func(f Field) int {
		if i, ok := ordinals[strings.ToLower(f.Name)]; ok {
			return i
		}
		return catalog.Len() + 1
	}

	fields := storage.Fields()
	sort.SliceStable(fields, func(i, j int) bool { return rank(fields[i]) < rank(fields[j]) })
	return Schema{fields: fields}
}
