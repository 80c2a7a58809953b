// Package assay discovers, merges, and reconciles schemas for partitioned
// Parquet datasets in object storage.
//
// Assay focuses on metadata: file listings, Parquet footers, and logical
// schemas. It never decodes row data and does not implement query execution
// or partition value inference.
package assay

import (
	"context"
	"io"
)

// -----------------------------------------------------------------------------
// Core types
// -----------------------------------------------------------------------------

// FileEntry describes a single file discovered under a table location.
type FileEntry struct {
	// Path is the slash-separated path of the file within its store.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`
}

// ObjectInfo describes an object returned by Store.List.
type ObjectInfo struct {
	// Key is the slash-separated object key relative to the store root.
	Key string

	// SizeBytes is the object size in bytes.
	SizeBytes int64
}

// -----------------------------------------------------------------------------
// Store interface
// -----------------------------------------------------------------------------

// SizedReaderAt provides random access reads over a single object.
//
// Parquet footers live at the end of the file, so schema discovery needs
// ranged reads with a known total size rather than full-object streams.
type SizedReaderAt interface {
	io.ReaderAt
	io.Closer

	// Size returns the total object size in bytes.
	Size() int64
}

// Store abstracts the underlying object storage system.
//
// Implementations may target filesystems, S3, or other object stores.
// The interface is intentionally minimal to avoid backend-specific leakage.
type Store interface {
	// Put writes data to the given path.
	Put(ctx context.Context, path string, r io.Reader) error

	// Get retrieves data from the given path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks whether a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns objects under the given prefix, recursively.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete removes the path if it exists.
	Delete(ctx context.Context, path string) error

	// ReaderAt opens the path for random access reads.
	ReaderAt(ctx context.Context, path string) (SizedReaderAt, error)
}

// StoreFactory constructs the Store a table reads from.
//
// Factories let callers defer store construction (and its credentials or
// filesystem checks) until the table is actually built.
type StoreFactory func() (Store, error)

// -----------------------------------------------------------------------------
// Table interface
// -----------------------------------------------------------------------------

// Table provides schema and file metadata for a set of storage locations.
//
// A table caches its file listing and resolved schema. All accessors share
// one immutable snapshot; Refresh replaces it.
type Table interface {
	// Locations returns the storage locations this table reads from.
	Locations() []string

	// Refresh re-lists the locations and re-resolves the schema if the
	// listing changed.
	Refresh(ctx context.Context) error

	// Schema returns the table's resolved schema.
	Schema(ctx context.Context) (Schema, error)

	// DataFiles returns the data files backing the table.
	DataFiles(ctx context.Context) ([]FileEntry, error)

	// SummaryFiles returns the metadata summary files under the locations.
	SummaryFiles(ctx context.Context) ([]FileEntry, error)

	// SizeInBytes returns the total size of the table's data files.
	SizeInBytes(ctx context.Context) (int64, error)
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrNotFound indicates a requested object does not exist.
	ErrNotFound = errNotFound{}

	// ErrPathExists indicates an attempt to write to an existing path.
	ErrPathExists = errPathExists{}

	// ErrSchemaConflict indicates two schemas assign incompatible types to
	// the same field name.
	ErrSchemaConflict = errSchemaConflict{}

	// ErrInvalidFieldName indicates a field name that cannot round-trip
	// through Parquet metadata.
	ErrInvalidFieldName = errInvalidFieldName{}

	// ErrUnsupportedType indicates a Parquet type with no logical mapping
	// under the active conversion flags.
	ErrUnsupportedType = errUnsupportedType{}

	// ErrInvalidFormat indicates a file that is not valid Parquet.
	ErrInvalidFormat = errInvalidFormat{}

	// ErrCatalogMismatch indicates a catalog schema that cannot be
	// reconciled with the discovered schema.
	ErrCatalogMismatch = errCatalogMismatch{}

	// ErrSchemaNotFound indicates no schema source was available for a table.
	ErrSchemaNotFound = errSchemaNotFound{}

	// ErrDuplicateColumns indicates a resolved schema with column names
	// that collide case-insensitively.
	ErrDuplicateColumns = errDuplicateColumns{}
)

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type errPathExists struct{}

func (errPathExists) Error() string { return "path exists" }

type errSchemaConflict struct{}

func (errSchemaConflict) Error() string { return "schema conflict" }

type errInvalidFieldName struct{}

func (errInvalidFieldName) Error() string { return "invalid field name" }

type errUnsupportedType struct{}

func (errUnsupportedType) Error() string { return "unsupported type" }

type errInvalidFormat struct{}

func (errInvalidFormat) Error() string { return "invalid format" }

type errCatalogMismatch struct{}

func (errCatalogMismatch) Error() string { return "catalog schema mismatch" }

type errSchemaNotFound struct{}

func (errSchemaNotFound) Error() string { return "schema not found" }

type errDuplicateColumns struct{}

func (errDuplicateColumns) Error() string { return "duplicate column names" }
