package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for storing immutable data blobs (artifacts,
// manifests).
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create starts a streaming write. The blob becomes visible under its
	// name only when the returned WritableBlob is closed successfully.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a small blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names under the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	// NewReader returns a sequential reader over the whole blob. It may be
	// called more than once; each call returns an independent reader.
	NewReader(ctx context.Context) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	io.Closer
}

// WritableBlob is a streaming write handle.
type WritableBlob interface {
	io.Writer

	// Sync flushes written data to stable storage where the backend
	// supports it.
	Sync() error

	// Close finalizes the blob and publishes it under its name.
	io.Closer

	// Abort discards the blob and any bytes written so far. Calling Abort
	// after a successful Close is a no-op.
	Abort() error
}
