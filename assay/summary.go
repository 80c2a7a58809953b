package assay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/parquet-go/parquet-go"
)

// WriteSummaries writes schema-only _common_metadata and _metadata files
// for a directory, embedding the serialized logical schema in each footer.
// Existing summaries are replaced. The common file is written first so a
// failed second write still leaves a valid summary behind.
func WriteSummaries(ctx context.Context, store Store, dir string, schema Schema) error {
	if schema.Len() == 0 {
		return errors.New("assay: cannot write summary for empty schema")
	}

	payload, err := renderSummary(schema)
	if err != nil {
		return fmt.Errorf("assay: render summary: %w", err)
	}

	for _, name := range []string{CommonMetadataFileName, MetadataFileName} {
		target := path.Join(dir, name)
		if err := store.Delete(ctx, target); err != nil {
			return fmt.Errorf("assay: replace %s: %w", target, err)
		}
		if err := store.Put(ctx, target, bytes.NewReader(payload)); err != nil {
			return fmt.Errorf("assay: write %s: %w", target, err)
		}
	}
	return nil
}

// renderSummary produces a zero-row Parquet file carrying the schema in
// both its physical layout and its footer key-value metadata.
func renderSummary(schema Schema) ([]byte, error) {
	fileSchema, err := buildFileSchema(schema)
	if err != nil {
		return nil, err
	}
	serialized, err := EncodeSchema(schema)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := parquet.NewWriter(&buf, fileSchema, parquet.KeyValueMetadata(SchemaKey, serialized))
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildFileSchema renders a logical schema as a Parquet schema tree.
func buildFileSchema(schema Schema) (*parquet.Schema, error) {
	group, err := buildGroup(schema.Fields())
	if err != nil {
		return nil, err
	}
	return parquet.NewSchema("record", group), nil
}

func buildGroup(fields []Field) (parquet.Group, error) {
	group := make(parquet.Group, len(fields))
	for _, field := range fields {
		if err := checkFieldName(field.Name); err != nil {
			return nil, err
		}
		node, err := buildFieldNode(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		if field.Nullable {
			node = parquet.Optional(node)
		}
		group[field.Name] = node
	}
	return group, nil
}

// buildFieldNode maps one logical type to a Parquet node. The inverse of
// the footer conversion, up to the annotations this engine models.
func buildFieldNode(t Type) (parquet.Node, error) {
	switch t.Kind {
	case KindBool:
		return parquet.Leaf(parquet.BooleanType), nil
	case KindInt32:
		return parquet.Int(32), nil
	case KindInt64:
		return parquet.Int(64), nil
	case KindFloat32:
		return parquet.Leaf(parquet.FloatType), nil
	case KindFloat64:
		return parquet.Leaf(parquet.DoubleType), nil
	case KindBinary:
		return parquet.Leaf(parquet.ByteArrayType), nil
	case KindString:
		return parquet.String(), nil
	case KindDate:
		return parquet.Date(), nil
	case KindTimestamp:
		return parquet.Timestamp(parquet.Nanosecond), nil
	case KindStruct:
		return buildGroup(t.Fields)
	case KindList:
		element, err := buildFieldNode(*t.Element)
		if err != nil {
			return nil, err
		}
		return parquet.List(element), nil
	case KindMap:
		key, err := buildFieldNode(*t.Key)
		if err != nil {
			return nil, err
		}
		value, err := buildFieldNode(*t.Value)
		if err != nil {
			return nil, err
		}
		return parquet.Map(key, value), nil
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnsupportedType, t.Kind)
	}
}
