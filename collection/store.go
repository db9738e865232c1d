// Package collection defines the vector-store surface vecback backs up and
// restores, plus an in-memory reference implementation used by tests,
// recovery drills, and the demo CLI wiring.
//
// Vecback consumes this interface; it never implements a vector store of its
// own beyond the reference MemoryStore.
package collection

import (
	"context"
	"errors"

	"github.com/hupe1980/vecback/schema"
)

var (
	// ErrNotFound is returned when a named collection does not exist.
	ErrNotFound = errors.New("collection not found")
	// ErrExists is returned when creating a collection that already exists.
	ErrExists = errors.New("collection already exists")
	// ErrPartitionNotFound is returned when a named partition does not exist.
	ErrPartitionNotFound = errors.New("partition not found")
	// ErrPartitionExists is returned when creating a partition that already exists.
	ErrPartitionExists = errors.New("partition already exists")
)

// Record is one entity as a field-name to value map. Vector fields hold
// []float32 (FloatVector) or []byte (BinaryVector).
type Record map[string]any

// Clone returns a copy of the record. Vector slices are copied too, so the
// clone never aliases store-owned memory.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		switch vec := v.(type) {
		case []float32:
			c := make([]float32, len(vec))
			copy(c, vec)
			out[k] = c
		case []byte:
			c := make([]byte, len(vec))
			copy(c, vec)
			out[k] = c
		default:
			out[k] = v
		}
	}
	return out
}

// ApproxSize estimates the in-memory footprint of the record in bytes,
// used for buffer budget accounting. It undercounts map overhead on
// purpose; budgets should leave headroom.
func (r Record) ApproxSize() int64 {
	var size int64
	for k, v := range r {
		size += int64(len(k)) + 16 // key plus per-entry overhead
		switch val := v.(type) {
		case string:
			size += int64(len(val))
		case []float32:
			size += int64(len(val)) * 4
		case []byte:
			size += int64(len(val))
		case []any:
			size += int64(len(val)) * 16
		default:
			size += 8
		}
	}
	return size
}

// ApproxPageSize estimates the footprint of a page of records.
func ApproxPageSize(rows []Record) int64 {
	var size int64
	for _, r := range rows {
		size += r.ApproxSize()
	}
	return size
}

// SearchHit is one result of a vector search.
type SearchHit struct {
	// Score is the distance to the query vector (metric-dependent, lower is
	// closer for L2).
	Score float32
	// Fields is the materialized record.
	Fields Record
}

// Store is the collection surface a backing vector store must expose for
// backup and restore.
//
// Implementations must be safe for concurrent use. All methods honor context
// cancellation where they block.
type Store interface {
	// DescribeSchema returns the field layout of a collection.
	DescribeSchema(ctx context.Context, name string) (schema.Descriptor, error)

	// ListPartitions returns all partitions, including the default one.
	ListPartitions(ctx context.Context, name string) ([]schema.Partition, error)

	// DescribeIndexes returns the declared indexes keyed by field name.
	DescribeIndexes(ctx context.Context, name string) (map[string]schema.Index, error)

	// HasCollection reports whether a collection exists.
	HasCollection(ctx context.Context, name string) (bool, error)

	// CreateCollection creates an empty collection with the given layout.
	CreateCollection(ctx context.Context, name string, d schema.Descriptor) error

	// DropCollection removes a collection and all of its data.
	DropCollection(ctx context.Context, name string) error

	// CreatePartition adds a named partition to a collection.
	CreatePartition(ctx context.Context, name string, p schema.Partition) error

	// CreateIndex declares an index on a field.
	CreateIndex(ctx context.Context, name, field string, idx schema.Index) error

	// ScanPage returns up to limit records starting at offset, in a stable
	// order, projected to the requested fields (nil means all fields). A
	// short or empty page marks the end of the collection.
	ScanPage(ctx context.Context, name string, offset, limit int, fields []string) ([]Record, error)

	// Insert appends rows to a partition ("" means the default partition)
	// and returns the number of rows written.
	Insert(ctx context.Context, name, partition string, rows []Record) (int64, error)

	// Search runs a nearest-neighbor query on a vector field with an
	// optional boolean filter expression.
	Search(ctx context.Context, name, field string, vector []float32, topK int, filter string) ([]SearchHit, error)

	// Query returns up to limit records matching a boolean filter
	// expression ("" matches everything).
	Query(ctx context.Context, name, filter string, limit int) ([]Record, error)

	// GetEntityCount returns the number of entities in a collection.
	GetEntityCount(ctx context.Context, name string) (int64, error)
}

// VectorScanner is an optional capability: stores whose ScanPage can return
// vector fields inline with scalars implement it and return true.
//
// For stores without it (or returning false), exporters fall back to a
// scalar scan plus a vector scan per page and mark the backup as reduced
// fidelity, since the two reads are not atomic.
type VectorScanner interface {
	ScanIncludesVectors() bool
}
