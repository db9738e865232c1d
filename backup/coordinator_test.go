package backup

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecback/artifact"
	"github.com/hupe1980/vecback/blobstore"
	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/internal/keyedmutex"
	"github.com/hupe1980/vecback/manifest"
)

// faultBlobStore wraps a BlobStore and lets tests fail Put calls.
type faultBlobStore struct {
	blobstore.BlobStore
	putErr func(name string) error
}

func (f *faultBlobStore) Put(ctx context.Context, name string, data []byte) error {
	if f.putErr != nil {
		if err := f.putErr(name); err != nil {
			return err
		}
	}
	return f.BlobStore.Put(ctx, name, data)
}

func TestCoordinator_CreateFullBackup(t *testing.T) {
	ctx := context.Background()
	source := seedStore(t, "articles", 40)
	blobs := blobstore.NewMemoryStore()
	cat := manifest.NewCatalog(blobs)

	coord := NewCoordinator(source, cat, nil, WithPageSize(16))

	m, err := coord.CreateFullBackup(ctx, "articles", "nightly")
	require.NoError(t, err)

	assert.Equal(t, "articles", m.Collection)
	assert.Equal(t, "nightly", m.BackupName)
	assert.EqualValues(t, 40, m.EntityCount)
	assert.Equal(t, 3, m.BatchCount)
	assert.Equal(t, 16, m.PageSize)
	assert.Equal(t, "zstd", m.Compression)
	assert.Equal(t, "go-json", m.Codec)
	assert.False(t, m.ReducedFidelity)
	assert.True(t, strings.HasPrefix(m.Checksum, artifact.ChecksumPrefix))
	assert.Greater(t, m.ArtifactSize, int64(0))
	assert.False(t, m.FinishedAt.Before(m.StartedAt))
	assert.Equal(t, testDescriptor(), m.Schema)
	assert.Len(t, m.Partitions, 2)
	assert.Contains(t, m.Indexes, "embedding")
	assert.Empty(t, m.Warnings)

	// Exactly two blobs exist: the artifact and the manifest.
	names, err := blobs.List(ctx, "nightly/")
	require.NoError(t, err)
	assert.Equal(t, []string{"nightly/data.vbk", "nightly/manifest.json"}, names)

	got, err := cat.Get(ctx, "nightly")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Checksum, got.Checksum)

	blob, err := cat.OpenArtifact(ctx, got)
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, m.ArtifactSize, blob.Size())

	r, err := blob.NewReader(ctx)
	require.NoError(t, err)
	require.NoError(t, artifact.VerifyChecksum(r, m.Checksum))
	require.NoError(t, r.Close())

	r2, err := blob.NewReader(ctx)
	require.NoError(t, err)
	defer r2.Close()

	ar, err := artifact.NewReader(r2)
	require.NoError(t, err)

	rows := 0
	for {
		f, err := ar.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		rows += len(f.Rows)
	}
	assert.Equal(t, 40, rows)
	assert.EqualValues(t, 40, ar.Rows())
}

func TestCoordinator_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	source := seedStore(t, "articles", 0)
	cat := manifest.NewCatalog(blobstore.NewMemoryStore())

	coord := NewCoordinator(source, cat, nil)

	m, err := coord.CreateFullBackup(ctx, "articles", "empty")
	require.NoError(t, err)

	assert.EqualValues(t, 0, m.EntityCount)
	assert.Zero(t, m.BatchCount)
	assert.Greater(t, m.ArtifactSize, int64(0)) // header and footer still exist

	blob, err := cat.OpenArtifact(ctx, m)
	require.NoError(t, err)
	defer blob.Close()

	r, err := blob.NewReader(ctx)
	require.NoError(t, err)
	defer r.Close()

	ar, err := artifact.NewReader(r)
	require.NoError(t, err)

	_, err = ar.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, ar.Frames())
}

func TestCoordinator_DuplicateBackupName(t *testing.T) {
	ctx := context.Background()
	source := seedStore(t, "articles", 5)
	cat := manifest.NewCatalog(blobstore.NewMemoryStore())

	coord := NewCoordinator(source, cat, nil)

	_, err := coord.CreateFullBackup(ctx, "articles", "nightly")
	require.NoError(t, err)

	_, err = coord.CreateFullBackup(ctx, "articles", "nightly")
	require.ErrorIs(t, err, manifest.ErrAlreadyExists)

	manifests, err := cat.List(ctx)
	require.NoError(t, err)
	assert.Len(t, manifests, 1)
}

func TestCoordinator_MissingCollection(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	cat := manifest.NewCatalog(blobs)

	coord := NewCoordinator(collection.NewMemoryStore(), cat, nil)

	_, err := coord.CreateFullBackup(ctx, "ghost", "nightly")
	require.ErrorIs(t, err, collection.ErrNotFound)

	names, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCoordinator_InvalidBackupName(t *testing.T) {
	coord := NewCoordinator(seedStore(t, "articles", 1), manifest.NewCatalog(blobstore.NewMemoryStore()), nil)

	_, err := coord.CreateFullBackup(context.Background(), "articles", "../evil")
	require.ErrorIs(t, err, manifest.ErrInvalidName)
}

func TestCoordinator_LockBusy(t *testing.T) {
	ctx := context.Background()
	source := seedStore(t, "articles", 5)
	cat := manifest.NewCatalog(blobstore.NewMemoryStore())

	locks := keyedmutex.New()
	require.True(t, locks.TryLock("articles"))

	coord := NewCoordinator(source, cat, locks)

	_, err := coord.CreateFullBackup(ctx, "articles", "nightly")
	require.ErrorIs(t, err, keyedmutex.ErrOperationInProgress)

	locks.Unlock("articles")

	_, err = coord.CreateFullBackup(ctx, "articles", "nightly")
	require.NoError(t, err)
	assert.False(t, locks.Held("articles"))
}

func TestCoordinator_ExportFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	scanFault := errors.New("segment unavailable")
	source := &faultStore{
		Store: seedStore(t, "articles", 20),
		scanErr: func(offset int) error {
			if offset == 8 {
				return scanFault
			}
			return nil
		},
	}
	blobs := blobstore.NewMemoryStore()
	cat := manifest.NewCatalog(blobs)
	locks := keyedmutex.New()

	coord := NewCoordinator(source, cat, locks, WithPageSize(4))

	_, err := coord.CreateFullBackup(ctx, "articles", "nightly")
	require.ErrorIs(t, err, scanFault)

	names, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = cat.Get(ctx, "nightly")
	require.ErrorIs(t, err, manifest.ErrNotFound)

	assert.False(t, locks.Held("articles"))
}

func TestCoordinator_CancellationLeavesNoTrace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &faultStore{
		Store: seedStore(t, "articles", 20),
		scanErr: func(offset int) error {
			if offset == 4 {
				cancel()
				return context.Canceled
			}
			return nil
		},
	}
	blobs := blobstore.NewMemoryStore()
	cat := manifest.NewCatalog(blobs)
	locks := keyedmutex.New()

	coord := NewCoordinator(source, cat, locks, WithPageSize(4))

	_, err := coord.CreateFullBackup(ctx, "articles", "nightly")
	require.ErrorIs(t, err, context.Canceled)

	// Cleanup runs detached from the cancelled context.
	names, err := blobs.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.False(t, locks.Held("articles"))
}

func TestCoordinator_ManifestSaveFailurePrunesArtifact(t *testing.T) {
	ctx := context.Background()
	source := seedStore(t, "articles", 10)
	blobs := blobstore.NewMemoryStore()

	saveFault := errors.New("catalog write rejected")
	cat := manifest.NewCatalog(&faultBlobStore{
		BlobStore: blobs,
		putErr: func(name string) error {
			if strings.HasSuffix(name, manifest.FileName) {
				return saveFault
			}
			return nil
		},
	})

	coord := NewCoordinator(source, cat, nil)

	_, err := coord.CreateFullBackup(ctx, "articles", "nightly")
	require.ErrorIs(t, err, saveFault)

	// The published artifact must not outlive the failed manifest write.
	names, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCoordinator_EntityCountDriftWarning(t *testing.T) {
	ctx := context.Background()
	source := &faultStore{
		Store:       seedStore(t, "articles", 12),
		entityCount: func() (int64, bool) { return 50, true },
	}
	cat := manifest.NewCatalog(blobstore.NewMemoryStore())

	coord := NewCoordinator(source, cat, nil, WithPageSize(8))

	m, err := coord.CreateFullBackup(ctx, "articles", "nightly")
	require.NoError(t, err)

	// The manifest records what was actually captured.
	assert.EqualValues(t, 12, m.EntityCount)
	require.NotEmpty(t, m.Warnings)
	assert.Contains(t, m.Warnings[len(m.Warnings)-1], "entity count changed")
}
