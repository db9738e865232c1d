package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hupe1980/vecback"
	"github.com/hupe1980/vecback/artifact"
	"github.com/hupe1980/vecback/blobstore"
	"github.com/hupe1980/vecback/blobstore/minio"
	"github.com/hupe1980/vecback/blobstore/s3"
	"github.com/hupe1980/vecback/collection"
)

// app bundles everything a command invocation needs: the loaded config,
// the blob backend, the in-memory reference store and a client wired to
// both.
type app struct {
	cfg    *Config
	blobs  blobstore.BlobStore
	store  *collection.MemoryStore
	client *vecback.Client
}

// newApp loads the config, opens the blob backend and builds a client
// around a fresh in-memory reference store.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	compression, err := artifact.CompressionByName(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("invalid compression: %w", err)
	}

	opts := []vecback.Option{
		vecback.WithPageSize(cfg.PageSize),
		vecback.WithConcurrency(cfg.Workers),
		vecback.WithCompression(compression),
		vecback.WithInsertRetries(cfg.InsertRetries),
	}
	if flagVerbose {
		opts = append(opts, vecback.WithLogLevel(slog.LevelDebug))
	}

	store := collection.NewMemoryStore()

	return &app{
		cfg:    cfg,
		blobs:  blobs,
		store:  store,
		client: vecback.New(store, blobs, opts...),
	}, nil
}

// openBlobStore creates the blob backend named by the config.
func openBlobStore(ctx context.Context, cfg *Config) (blobstore.BlobStore, error) {
	switch cfg.Backend {
	case "", "local":
		root, err := ExpandPath(cfg.Root)
		if err != nil {
			return nil, err
		}
		return blobstore.NewLocalStore(root), nil

	case "s3":
		var opts []s3.Option
		if cfg.S3.Prefix != "" {
			opts = append(opts, s3.WithPrefix(cfg.S3.Prefix))
		}
		if cfg.S3.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.S3.Region))
		}
		return s3.New(ctx, cfg.S3.Bucket, opts...)

	case "minio":
		return minio.New(minio.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			Prefix:    cfg.MinIO.Prefix,
			Secure:    cfg.MinIO.Secure,
		})

	default:
		return nil, fmt.Errorf("unknown backend %q (expected local, s3 or minio)", cfg.Backend)
	}
}
