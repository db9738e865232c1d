package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecback/backup"
	"github.com/hupe1980/vecback/blobstore"
	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/manifest"
	"github.com/hupe1980/vecback/schema"
)

func testDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Fields: []schema.Field{
			{Name: "id", Type: schema.FieldTypeInt64, IsPrimary: true},
			{Name: "content", Type: schema.FieldTypeVarChar, MaxLength: 256},
			{Name: "embedding", Type: schema.FieldTypeFloatVector, Dim: 4},
		},
	}
}

func seedStore(t *testing.T, name string, rows int) *collection.MemoryStore {
	t.Helper()

	ctx := context.Background()
	store := collection.NewMemoryStore()
	require.NoError(t, store.CreateCollection(ctx, name, testDescriptor()))

	recs := make([]collection.Record, 0, rows)
	for i := 0; i < rows; i++ {
		recs = append(recs, collection.Record{
			"id":        int64(i + 1),
			"content":   fmt.Sprintf("row-%d", i),
			"embedding": []float32{float32(i), 1, 2, 3},
		})
	}
	if len(recs) > 0 {
		_, err := store.Insert(ctx, name, "", recs)
		require.NoError(t, err)
	}
	return store
}

func collectionManifest(entities int64) *manifest.Manifest {
	m := manifest.New("articles", "nightly")
	m.Schema = testDescriptor()
	m.EntityCount = entities
	return m
}

func TestVerifyCollection_Passes(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "articles", 10)

	v := New(store)
	res, err := v.VerifyCollection(ctx, collectionManifest(10), "articles")
	require.NoError(t, err)

	assert.True(t, res.Passed)
	require.Len(t, res.Checks, 4)
	names := []string{}
	for _, c := range res.Checks {
		assert.True(t, c.Passed, c.Name)
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"entity_count", "schema_parity", "smoke_search", "smoke_query"}, names)
	assert.Empty(t, res.Failed())
}

func TestVerifyCollection_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "articles", 10)
	m := collectionManifest(10)

	v := New(store)
	first, err := v.VerifyCollection(ctx, m, "articles")
	require.NoError(t, err)
	second, err := v.VerifyCollection(ctx, m, "articles")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestVerifyCollection_MissingCollection(t *testing.T) {
	ctx := context.Background()

	v := New(collection.NewMemoryStore())
	res, err := v.VerifyCollection(ctx, collectionManifest(0), "ghost")
	require.NoError(t, err)

	assert.False(t, res.Passed)
	require.Len(t, res.Checks, 1)
	assert.Equal(t, "collection_exists", res.Checks[0].Name)
}

func TestVerifyCollection_CountMismatchShortCircuits(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "articles", 10)

	v := New(store)
	res, err := v.VerifyCollection(ctx, collectionManifest(12), "articles")
	require.NoError(t, err)

	assert.False(t, res.Passed)
	require.Len(t, res.Checks, 1)
	assert.Equal(t, "entity_count", res.Checks[0].Name)
	assert.Contains(t, res.Checks[0].Detail, "manifest 12")
}

func TestVerifyCollection_CollectAll(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "articles", 10)

	v := New(store, WithCollectAll())
	res, err := v.VerifyCollection(ctx, collectionManifest(12), "articles")
	require.NoError(t, err)

	assert.False(t, res.Passed)
	require.Len(t, res.Checks, 4)
	assert.Equal(t, []string{"entity_count"}, res.Failed())
}

func TestVerifyCollection_SchemaParity(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "articles", 3)

	m := collectionManifest(3)
	m.Schema.Fields = m.Schema.Fields[:2] // manifest missing the vector field

	v := New(store)
	res, err := v.VerifyCollection(ctx, m, "articles")
	require.NoError(t, err)

	assert.False(t, res.Passed)
	assert.Equal(t, []string{"schema_parity"}, res.Failed())
}

func TestFailureError_Message(t *testing.T) {
	res := &Result{Checks: []Check{
		{Name: "entity_count", Passed: false},
		{Name: "smoke_query", Passed: true},
		{Name: "schema_parity", Passed: false},
	}}

	err := &FailureError{Result: res}
	assert.Equal(t, "verification failed: entity_count, schema_parity", err.Error())
}

// createBackup runs a real backup into a fresh memory blobstore.
func createBackup(t *testing.T, rows int) (*blobstore.MemoryStore, *manifest.Catalog) {
	t.Helper()

	blobs := blobstore.NewMemoryStore()
	cat := manifest.NewCatalog(blobs)
	coord := backup.NewCoordinator(seedStore(t, "articles", rows), cat, nil, backup.WithPageSize(4))

	_, err := coord.CreateFullBackup(context.Background(), "articles", "nightly")
	require.NoError(t, err)

	return blobs, cat
}

func TestVerifyArtifact_Passes(t *testing.T) {
	ctx := context.Background()
	_, cat := createBackup(t, 10)

	res, err := VerifyArtifact(ctx, cat, "nightly")
	require.NoError(t, err)

	assert.True(t, res.Passed)
	names := []string{}
	for _, c := range res.Checks {
		assert.True(t, c.Passed, c.Name)
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"manifest_valid", "artifact_checksum", "container_decodes", "totals_match"}, names)
}

func TestVerifyArtifact_DetectsTamperedArtifact(t *testing.T) {
	ctx := context.Background()
	blobs, cat := createBackup(t, 10)

	blob, err := blobs.Open(ctx, "nightly/data.vbk")
	require.NoError(t, err)
	r, err := blob.NewReader(ctx)
	require.NoError(t, err)
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, blob.Close())

	raw[len(raw)/2] ^= 0xFF
	require.NoError(t, blobs.Put(ctx, "nightly/data.vbk", raw))

	res, err := VerifyArtifact(ctx, cat, "nightly")
	require.NoError(t, err)

	assert.False(t, res.Passed)
	assert.Equal(t, []string{"artifact_checksum"}, res.Failed())
	// Dependent checks never ran.
	assert.Len(t, res.Checks, 2)
}

func TestVerifyArtifact_TotalsMismatch(t *testing.T) {
	ctx := context.Background()
	blobs, cat := createBackup(t, 10)

	// Rewrite the stored manifest with a wrong entity count, bypassing the
	// write-once catalog. The checksum still matches the artifact, so only
	// the totals check can catch it.
	m, err := cat.Get(ctx, "nightly")
	require.NoError(t, err)
	m.EntityCount = 99

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, "nightly/manifest.json", raw))

	res, err := VerifyArtifact(ctx, cat, "nightly")
	require.NoError(t, err)

	assert.False(t, res.Passed)
	assert.Equal(t, []string{"totals_match"}, res.Failed())
}

func TestVerifyArtifact_MissingBackup(t *testing.T) {
	cat := manifest.NewCatalog(blobstore.NewMemoryStore())

	_, err := VerifyArtifact(context.Background(), cat, "ghost")
	require.ErrorIs(t, err, manifest.ErrNotFound)
}
