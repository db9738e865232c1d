package backup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/schema"
)

// Metadata is everything about a collection except its rows.
type Metadata struct {
	Schema      schema.Descriptor
	Partitions  []schema.Partition
	Indexes     map[string]schema.Index
	EntityCount int64

	// Warnings records non-fatal capture problems, e.g. unreadable index
	// definitions. They end up in the manifest.
	Warnings []string
}

// MetadataExporter captures the schema, partitions, index definitions and
// entity count of a collection. It never writes to the store.
type MetadataExporter struct {
	logger *slog.Logger
}

// NewMetadataExporter creates a metadata exporter.
func NewMetadataExporter(optFns ...func(o *Options)) *MetadataExporter {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.normalize()

	return &MetadataExporter{logger: opts.Logger}
}

// Export reads the collection's metadata. Schema, partition and count
// failures abort with an *ExportError; index capture is best-effort and
// degrades to a warning, since a backup without index definitions is still
// restorable.
func (e *MetadataExporter) Export(ctx context.Context, store collection.Store, name string) (*Metadata, error) {
	desc, err := store.DescribeSchema(ctx, name)
	if err != nil {
		return nil, exportErr(name, "schema", err)
	}
	if err := desc.Validate(); err != nil {
		return nil, exportErr(name, "schema", err)
	}

	partitions, err := store.ListPartitions(ctx, name)
	if err != nil {
		return nil, exportErr(name, "partitions", err)
	}

	meta := &Metadata{
		Schema:     desc,
		Partitions: partitions,
	}

	indexes, err := store.DescribeIndexes(ctx, name)
	if err != nil {
		e.logger.WarnContext(ctx, "index capture failed, continuing without index definitions",
			"collection", name,
			"error", err,
		)
		meta.Warnings = append(meta.Warnings, fmt.Sprintf("index capture failed: %v", err))
	} else {
		meta.Indexes = indexes
	}

	count, err := store.GetEntityCount(ctx, name)
	if err != nil {
		return nil, exportErr(name, "count", err)
	}
	meta.EntityCount = count

	return meta, nil
}
