// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore
// used as a remote backup target.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("backups/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// # Features
//
//   - Multipart uploads for large artifacts, aborted cleanly on error
//   - Optional CRC32C integrity validation on upload
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
