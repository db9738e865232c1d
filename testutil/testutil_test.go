package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/schema"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(0.0))
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformVectors(1, 10)

	rng.Reset()
	v2 := rng.UniformVectors(1, 10)

	assert.Equal(t, v1, v2)
}

func TestDemoRecords_Deterministic(t *testing.T) {
	a := DemoRecords(NewRNG(7), 0, 5)
	b := DemoRecords(NewRNG(7), 0, 5)

	require.Len(t, a, 5)
	assert.Equal(t, a, b)

	for i, rec := range a {
		assert.NotContains(t, rec, "id")
		assert.Contains(t, rec["content"], "Demo document")
		assert.Contains(t, demoSources, rec["source"])
		assert.Equal(t, demoEpoch+int64(i), rec["timestamp"])
		assert.Len(t, rec["vector"], DemoDim)
	}
}

func TestSeedCollection(t *testing.T) {
	ctx := context.Background()
	store := collection.NewMemoryStore()

	require.NoError(t, SeedCollection(ctx, store, "demo", 600))

	count, err := store.GetEntityCount(ctx, "demo")
	require.NoError(t, err)
	assert.EqualValues(t, 600, count)

	parts, err := store.ListPartitions(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, parts, len(DemoPartitionNames)+1)
	assert.Equal(t, schema.DefaultPartitionName, parts[0].Name)

	indexes, err := store.DescribeIndexes(ctx, "demo")
	require.NoError(t, err)
	require.Contains(t, indexes, "vector")
	assert.Equal(t, "IVF_FLAT", indexes["vector"].Type)

	rows, err := store.ScanPage(ctx, "demo", 0, 3, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, rec := range rows {
		assert.Contains(t, rec, "id")
		assert.Len(t, rec["vector"], DemoDim)
	}
}

func TestSeedCollection_ExistingCollection(t *testing.T) {
	ctx := context.Background()
	store := collection.NewMemoryStore()

	require.NoError(t, SeedCollection(ctx, store, "demo", 10))
	require.ErrorIs(t, SeedCollection(ctx, store, "demo", 10), collection.ErrExists)
}
