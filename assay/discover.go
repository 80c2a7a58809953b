package assay

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DiscoverOptions configures schema discovery over a file listing.
type DiscoverOptions struct {
	// MergeSchemas reads every eligible footer and merges the results.
	// When false only one representative file is read.
	MergeSchemas bool

	// RespectSummaries trusts summary files to describe every data file,
	// skipping data footers during a merging discovery.
	RespectSummaries bool

	// BinaryAsString maps unannotated BYTE_ARRAY columns to string.
	BinaryAsString bool

	// Int96AsTimestamp maps INT96 columns to timestamp. Files written
	// with INT96 timestamps fail conversion without it.
	Int96AsTimestamp bool

	// StrictFormat rejects legacy list and repeated-field layouts.
	StrictFormat bool

	// Parallelism bounds concurrent footer reads. Zero or negative means
	// one worker per CPU.
	Parallelism int
}

// DefaultDiscoverOptions returns the documented defaults: single-file
// discovery with INT96 timestamp interpretation on.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{Int96AsTimestamp: true}
}

func (o DiscoverOptions) convertOptions() convertOptions {
	return convertOptions{
		binaryAsString:   o.BinaryAsString,
		int96AsTimestamp: o.Int96AsTimestamp,
		strictFormat:     o.StrictFormat,
	}
}

// DiscoverSchema derives one schema for a set of files.
//
// With MergeSchemas unset, exactly one representative footer is read: the
// first _common_metadata summary if any, else the first _metadata summary,
// else the first data file in path order. With MergeSchemas set, every
// summary footer is read plus, unless RespectSummaries is set, every data
// footer, and the per-file schemas are merged.
//
// A nil schema with a nil error means no file was eligible to inspect.
func DiscoverSchema(ctx context.Context, store Store, files []FileEntry, opts DiscoverOptions) (*Schema, error) {
	sorted := make([]FileEntry, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	selected := selectFiles(sorted, opts)
	if len(selected) == 0 {
		return nil, nil
	}
	return discoverSelected(ctx, store, selected, opts)
}

// selectFiles applies the summary-preference policy to a sorted listing.
func selectFiles(files []FileEntry, opts DiscoverOptions) []FileEntry {
	l := classifyEntries(files)

	if !opts.MergeSchemas {
		switch {
		case len(l.common) > 0:
			return l.common[:1]
		case len(l.metadata) > 0:
			return l.metadata[:1]
		case len(l.data) > 0:
			return l.data[:1]
		default:
			return nil
		}
	}

	selected := make([]FileEntry, 0, len(l.data)+len(l.metadata)+len(l.common))
	if !opts.RespectSummaries {
		selected = append(selected, l.data...)
	}
	selected = append(selected, l.metadata...)
	selected = append(selected, l.common...)
	return selected
}

// discoverSelected fans footer reads out over independent chunk workers
// and reduces their partial schemas.
//
// Workers share no state and are not cancelled by a sibling's failure;
// errors surface only after every chunk has finished.
func discoverSelected(ctx context.Context, store Store, files []FileEntry, opts DiscoverOptions) (*Schema, error) {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	chunks := chunkFiles(files, parallelism)
	partials := make([]*Schema, len(chunks))
	conv := opts.convertOptions()

	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			partial, err := discoverChunk(ctx, store, chunk, conv)
			if err != nil {
				return err
			}
			partials[i] = partial
			return nil
		})
	}
	waitErr := g.Wait()

	var merged *Schema
	for _, partial := range partials {
		if partial == nil {
			continue
		}
		if merged == nil {
			merged = partial
			continue
		}
		combined, err := merged.Merge(*partial)
		if err != nil {
			return nil, err
		}
		merged = &combined
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return merged, nil
}

// discoverChunk reads one worker's share of footers sequentially, merging
// as it goes. The dedup set is local to the worker.
func discoverChunk(ctx context.Context, store Store, chunk []FileEntry, conv convertOptions) (*Schema, error) {
	seen := make(map[string]struct{})
	var merged *Schema

	for _, entry := range chunk {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		schema, err := readFileSchema(ctx, store, entry, conv, seen)
		if err != nil {
			return nil, err
		}
		if schema == nil {
			continue
		}
		if merged == nil {
			merged = schema
			continue
		}
		combined, err := merged.Merge(*schema)
		if err != nil {
			return nil, err
		}
		merged = &combined
	}
	return merged, nil
}

// chunkFiles splits files into at most n contiguous, near-equal chunks.
func chunkFiles(files []FileEntry, n int) [][]FileEntry {
	if n > len(files) {
		n = len(files)
	}
	chunks := make([][]FileEntry, 0, n)
	for i := 0; i < n; i++ {
		start := i * len(files) / n
		end := (i + 1) * len(files) / n
		if start < end {
			chunks = append(chunks, files[start:end])
		}
	}
	return chunks
}
