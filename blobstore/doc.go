// Package blobstore provides storage abstraction for vecback's backup
// artifacts and manifests.
//
// BlobStore is the interface for reading and writing immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with atomic temp-file + rename publishes
//   - MemoryStore: in-memory store for tests
//   - s3.Store: Amazon S3 with multipart uploads
//   - minio.Store: MinIO and other S3-compatible object stores
//
// # Write semantics
//
// Blobs only become visible under their name when the WritableBlob is
// closed. Abort discards everything written so far, which is how backup
// cancellation guarantees no partial artifacts are left behind.
package blobstore
