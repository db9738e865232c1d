package manifest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecback/blobstore"
)

func testManifest(collection, name string) *Manifest {
	m := validManifest()
	m.Collection = collection
	m.BackupName = name
	return m
}

func TestCatalog_SaveGet(t *testing.T) {
	ctx := context.Background()
	cat := NewCatalog(blobstore.NewMemoryStore())

	m := testManifest("documents", "nightly-001")
	require.NoError(t, cat.Save(ctx, m))

	got, err := cat.Get(ctx, "nightly-001")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "documents", got.Collection)
	assert.Equal(t, m.Checksum, got.Checksum)
	assert.Equal(t, m.Schema.Fields, got.Schema.Fields)

	exists, err := cat.Exists(ctx, "nightly-001")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = cat.Exists(ctx, "nightly-002")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCatalog_SaveRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	cat := NewCatalog(blobstore.NewMemoryStore())

	require.NoError(t, cat.Save(ctx, testManifest("documents", "nightly-001")))

	err := cat.Save(ctx, testManifest("documents", "nightly-001"))
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCatalog_SaveRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	cat := NewCatalog(blobstore.NewMemoryStore())

	m := testManifest("documents", "nightly-001")
	m.Checksum = ""
	require.Error(t, cat.Save(ctx, m))

	// Nothing may be persisted for a rejected manifest.
	exists, err := cat.Exists(ctx, "nightly-001")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCatalog_GetNotFound(t *testing.T) {
	ctx := context.Background()
	cat := NewCatalog(blobstore.NewMemoryStore())

	_, err := cat.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_GetIncompatibleVersion(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	cat := NewCatalog(store)

	require.NoError(t, store.Put(ctx, "future/manifest.json", []byte(`{"format_version": 99}`)))

	_, err := cat.Get(ctx, "future")
	require.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestCatalog_List(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	cat := NewCatalog(store)

	require.NoError(t, cat.Save(ctx, testManifest("documents", "nightly-002")))
	require.NoError(t, cat.Save(ctx, testManifest("articles", "nightly-001")))

	// Foreign and damaged blobs must not break the listing.
	require.NoError(t, store.Put(ctx, "stray.txt", []byte("not a backup")))
	require.NoError(t, store.Put(ctx, "broken/manifest.json", []byte("{")))

	manifests, err := cat.List(ctx)
	require.NoError(t, err)
	require.Len(t, manifests, 2)
	assert.Equal(t, "nightly-001", manifests[0].BackupName)
	assert.Equal(t, "nightly-002", manifests[1].BackupName)
}

func TestCatalog_Delete(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	cat := NewCatalog(store)

	m := testManifest("documents", "nightly-001")
	require.NoError(t, cat.Save(ctx, m))
	require.NoError(t, store.Put(ctx, m.ArtifactKey(), []byte("artifact bytes")))

	require.NoError(t, cat.Delete(ctx, "nightly-001"))

	// Manifest and artifact are both gone.
	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	err = cat.Delete(ctx, "nightly-001")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_OpenArtifact(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	cat := NewCatalog(store)

	m := testManifest("documents", "nightly-001")

	_, err := cat.OpenArtifact(ctx, m)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, m.ArtifactKey(), []byte("artifact bytes")))

	b, err := cat.OpenArtifact(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, int64(len("artifact bytes")), b.Size())
	require.NoError(t, b.Close())
}

func TestCatalog_LocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	cat := NewCatalog(blobstore.NewLocalStore(t.TempDir()))

	m := testManifest("documents", "nightly-001")
	m.FinishedAt = m.StartedAt.Add(3 * time.Second)
	require.NoError(t, cat.Save(ctx, m))

	got, err := cat.Get(ctx, "nightly-001")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.WithinDuration(t, m.FinishedAt, got.FinishedAt, time.Millisecond)
}
