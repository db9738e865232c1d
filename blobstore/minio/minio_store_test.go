package minio

import (
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecback/blobstore"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-vecback"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	store := NewStore(client, bucket, "test-prefix/")

	// Put and Open
	data := []byte("backup artifact payload")
	err = store.Put(ctx, "nightly/data.vbk", data)
	require.NoError(t, err)

	blob, err := store.Open(ctx, "nightly/data.vbk")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	rc, err := blob.NewReader(ctx)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, data, got)
	require.NoError(t, blob.Close())

	// Streaming create
	w, err := store.Create(ctx, "nightly/manifest.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"collection":"demo"}`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// List under the store prefix
	names, err := store.List(ctx, "nightly/")
	require.NoError(t, err)
	require.Equal(t, []string{"nightly/data.vbk", "nightly/manifest.json"}, names)

	// Open of a missing blob reports ErrNotFound
	_, err = store.Open(ctx, "missing.vbk")
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	// Aborted create leaves no object behind
	w, err = store.Create(ctx, "nightly/aborted.vbk")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	_, err = store.Open(ctx, "nightly/aborted.vbk")
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	// Cleanup
	require.NoError(t, store.Delete(ctx, "nightly/data.vbk"))
	require.NoError(t, store.Delete(ctx, "nightly/manifest.json"))

	// Delete of a missing blob is not an error
	require.NoError(t, store.Delete(ctx, "nightly/data.vbk"))
}
