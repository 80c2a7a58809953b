package assay

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Summary file names, matching the convention used by Parquet writers.
const (
	// MetadataFileName aggregates footer metadata for one directory.
	MetadataFileName = "_metadata"

	// CommonMetadataFileName carries only the schema, shared across
	// directories.
	CommonMetadataFileName = "_common_metadata"
)

// isSummaryFile reports whether the path names either summary file.
func isSummaryFile(p string) bool {
	base := path.Base(p)
	return base == MetadataFileName || base == CommonMetadataFileName
}

// isHiddenFile reports whether the path names a bookkeeping file that is
// neither data nor summary (success markers, checksums, temporaries).
func isHiddenFile(p string) bool {
	base := path.Base(p)
	if base == MetadataFileName || base == CommonMetadataFileName {
		return false
	}
	return strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".")
}

// listFiles lists every file under the given locations, deduplicated by
// path and sorted.
func listFiles(ctx context.Context, store Store, locations []string) ([]FileEntry, error) {
	seen := make(map[string]struct{})
	var entries []FileEntry

	for _, location := range locations {
		objects, err := store.List(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("assay: list %s: %w", location, err)
		}
		for _, obj := range objects {
			if _, dup := seen[obj.Key]; dup {
				continue
			}
			seen[obj.Key] = struct{}{}
			entries = append(entries, FileEntry{Path: obj.Key, Size: obj.SizeBytes})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// sameEntries reports whether two sorted listings contain the same files
// at the same sizes.
func sameEntries(a, b []FileEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// listing is a classified snapshot of the files under a table's locations.
type listing struct {
	// entries holds every file, sorted by path. Listing-change detection
	// compares this slice.
	entries []FileEntry

	// data holds non-hidden, non-summary files.
	data []FileEntry

	// metadata holds _metadata summaries; common holds _common_metadata.
	metadata []FileEntry
	common   []FileEntry
}

// classifyEntries splits a sorted file listing into data and summary
// subsets. Hidden bookkeeping files stay in entries only.
func classifyEntries(entries []FileEntry) listing {
	l := listing{entries: entries}
	for _, entry := range entries {
		switch path.Base(entry.Path) {
		case MetadataFileName:
			l.metadata = append(l.metadata, entry)
		case CommonMetadataFileName:
			l.common = append(l.common, entry)
		default:
			if !isHiddenFile(entry.Path) {
				l.data = append(l.data, entry)
			}
		}
	}
	return l
}

// summaries returns the summary entries, most widely scoped first.
func (l listing) summaries() []FileEntry {
	out := make([]FileEntry, 0, len(l.common)+len(l.metadata))
	out = append(out, l.common...)
	out = append(out, l.metadata...)
	return out
}
