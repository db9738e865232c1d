package collection

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecback/schema"
)

func testSchema() schema.Descriptor {
	return schema.Descriptor{
		Fields: []schema.Field{
			{Name: "id", Type: schema.FieldTypeInt64, IsPrimary: true, AutoID: true},
			{Name: "content", Type: schema.FieldTypeVarChar, MaxLength: 100},
			{Name: "priority", Type: schema.FieldTypeInt32},
			{Name: "vector", Type: schema.FieldTypeFloatVector, Dim: 4},
		},
	}
}

func seedStore(t *testing.T, n int) *MemoryStore {
	t.Helper()
	ctx := context.Background()

	store := NewMemoryStore()
	require.NoError(t, store.CreateCollection(ctx, "docs", testSchema()))

	rows := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, Record{
			"content":  fmt.Sprintf("doc-%d", i),
			"priority": int64(i % 5),
			"vector":   []float32{float32(i), 0, 0, 0},
		})
	}
	_, err := store.Insert(ctx, "docs", "", rows)
	require.NoError(t, err)

	return store
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	// 1. Create a collection
	require.NoError(t, store.CreateCollection(ctx, "docs", testSchema()))
	err := store.CreateCollection(ctx, "docs", testSchema())
	require.ErrorIs(t, err, ErrExists)

	ok, err := store.HasCollection(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, ok)

	// 2. Partitions: default exists implicitly
	require.NoError(t, store.CreatePartition(ctx, "docs", schema.Partition{Name: "region_us"}))
	err = store.CreatePartition(ctx, "docs", schema.Partition{Name: "region_us"})
	require.ErrorIs(t, err, ErrPartitionExists)

	parts, err := store.ListPartitions(ctx, "docs")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, schema.DefaultPartitionName, parts[0].Name)
	assert.Equal(t, "region_us", parts[1].Name)

	// 3. Index declarations round trip
	require.NoError(t, store.CreateIndex(ctx, "docs", "vector", schema.Index{
		Type:   "IVF_FLAT",
		Metric: "COSINE",
		Params: map[string]any{"nlist": 128},
	}))
	idx, err := store.DescribeIndexes(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "IVF_FLAT", idx["vector"].Type)

	// 4. Drop removes everything
	require.NoError(t, store.DropCollection(ctx, "docs"))
	ok, err = store.HasCollection(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, ok)

	err = store.DropCollection(ctx, "docs")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreInsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateCollection(ctx, "docs", testSchema()))

	n, err := store.Insert(ctx, "docs", "", []Record{
		{"content": "a", "priority": int64(1), "vector": []float32{1, 2, 3, 4}},
		{"content": "b", "priority": int64(2), "vector": []float32{4, 3, 2, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := store.GetEntityCount(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Auto-id assigned distinct primary keys.
	rows, err := store.ScanPage(ctx, "docs", 0, 10, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotEqual(t, rows[0]["id"], rows[1]["id"])

	// Wrong vector dim is rejected without partial writes.
	_, err = store.Insert(ctx, "docs", "", []Record{
		{"content": "c", "vector": []float32{1, 2}},
	})
	require.Error(t, err)
	count, _ = store.GetEntityCount(ctx, "docs")
	assert.Equal(t, int64(2), count)

	// Unknown partition.
	_, err = store.Insert(ctx, "docs", "nope", []Record{
		{"content": "c", "vector": []float32{1, 2, 3, 4}},
	})
	require.ErrorIs(t, err, ErrPartitionNotFound)
}

func TestMemoryStoreInsertRequiresPrimaryKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	d := testSchema()
	d.Fields[0].AutoID = false
	require.NoError(t, store.CreateCollection(ctx, "docs", d))

	_, err := store.Insert(ctx, "docs", "", []Record{{"content": "a", "vector": []float32{0, 0, 0, 0}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary key")

	_, err = store.Insert(ctx, "docs", "", []Record{{"id": int64(7), "content": "a", "vector": []float32{0, 0, 0, 0}}})
	require.NoError(t, err)
}

func TestMemoryStoreScanPage(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 25)

	// Full pages then a short final page.
	page, err := store.ScanPage(ctx, "docs", 0, 10, nil)
	require.NoError(t, err)
	assert.Len(t, page, 10)
	assert.Equal(t, "doc-0", page[0]["content"])

	page, err = store.ScanPage(ctx, "docs", 20, 10, nil)
	require.NoError(t, err)
	assert.Len(t, page, 5)

	page, err = store.ScanPage(ctx, "docs", 25, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, page)

	// Projection keeps only requested fields.
	page, err = store.ScanPage(ctx, "docs", 0, 1, []string{"content"})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, Record{"content": "doc-0"}, page[0])

	// Returned records do not alias store memory.
	page, err = store.ScanPage(ctx, "docs", 0, 1, nil)
	require.NoError(t, err)
	page[0]["vector"].([]float32)[0] = 999
	again, err := store.ScanPage(ctx, "docs", 0, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(0), again[0]["vector"].([]float32)[0])

	_, err = store.ScanPage(ctx, "docs", -1, 10, nil)
	require.Error(t, err)
}

func TestMemoryStoreSearch(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 10)

	hits, err := store.Search(ctx, "docs", "vector", []float32{0, 0, 0, 0}, 3, "")
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "doc-0", hits[0].Fields["content"])
	assert.LessOrEqual(t, hits[0].Score, hits[1].Score)
	assert.LessOrEqual(t, hits[1].Score, hits[2].Score)

	// Filtered search only sees matching rows.
	hits, err = store.Search(ctx, "docs", "vector", []float32{0, 0, 0, 0}, 10, "priority >= 3")
	require.NoError(t, err)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Fields["priority"], int64(3))
	}

	_, err = store.Search(ctx, "docs", "vector", []float32{0, 0}, 3, "")
	require.Error(t, err)

	_, err = store.Search(ctx, "docs", "content", []float32{0, 0, 0, 0}, 3, "")
	require.Error(t, err)
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 10)

	rows, err := store.Query(ctx, "docs", "", 5)
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	rows, err = store.Query(ctx, "docs", `content == "doc-3"`, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "doc-3", rows[0]["content"])

	_, err = store.Query(ctx, "docs", "priority ~ 3", 10)
	require.Error(t, err)
}

func TestMemoryStoreInsertHook(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateCollection(ctx, "docs", testSchema()))

	boom := errors.New("disk full")
	store.SetInsertHook(func(name, partition string, rows []Record) error { return boom })

	_, err := store.Insert(ctx, "docs", "", []Record{{"content": "a", "vector": []float32{0, 0, 0, 0}}})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), store.InsertCalls())

	count, err := store.GetEntityCount(ctx, "docs")
	require.NoError(t, err)
	assert.Zero(t, count)

	store.SetInsertHook(nil)
	_, err = store.Insert(ctx, "docs", "", []Record{{"content": "a", "vector": []float32{0, 0, 0, 0}}})
	require.NoError(t, err)
}
