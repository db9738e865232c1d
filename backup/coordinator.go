package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/vecback/artifact"
	"github.com/hupe1980/vecback/blobstore"
	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/internal/keyedmutex"
	"github.com/hupe1980/vecback/manifest"
	"github.com/hupe1980/vecback/resource"
)

// Coordinator runs full backups end to end: metadata capture, data export
// into an artifact, and manifest persistence as the final step.
type Coordinator struct {
	store   collection.Store
	catalog *manifest.Catalog
	locks   *keyedmutex.KeyedMutex
	opts    Options

	meta *MetadataExporter
	data *DataExporter
}

// NewCoordinator creates a backup coordinator. The lock set should be shared
// with the restore coordinator so backups and restores of the same
// collection exclude each other; pass nil to use a private set.
func NewCoordinator(store collection.Store, catalog *manifest.Catalog, locks *keyedmutex.KeyedMutex, optFns ...func(o *Options)) *Coordinator {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.normalize()

	if locks == nil {
		locks = keyedmutex.New()
	}

	return &Coordinator{
		store:   store,
		catalog: catalog,
		locks:   locks,
		opts:    opts,
		meta:    &MetadataExporter{logger: opts.Logger},
		data: &DataExporter{
			pageSize:  opts.PageSize,
			workers:   opts.Concurrency,
			resources: opts.Resources,
			logger:    opts.Logger,
		},
	}
}

// CreateFullBackup backs up every entity of a collection under backupName.
//
// The manifest is persisted only after the artifact is complete and
// published, so observers never see a manifest without its data. On any
// failure or cancellation everything written for this backup is removed.
// The source collection is only read, never modified.
func (c *Coordinator) CreateFullBackup(ctx context.Context, collectionName, backupName string) (*manifest.Manifest, error) {
	if err := manifest.ValidateName(backupName); err != nil {
		return nil, err
	}

	if !c.locks.TryLock(collectionName) {
		return nil, fmt.Errorf("backup %s: %w", collectionName, keyedmutex.ErrOperationInProgress)
	}
	defer c.locks.Unlock(collectionName)

	exists, err := c.catalog.Exists(ctx, backupName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", manifest.ErrAlreadyExists, backupName)
	}

	ok, err := c.store.HasCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", collectionName, collection.ErrNotFound)
	}

	start := time.Now()
	c.opts.Logger.InfoContext(ctx, "backup started",
		"collection", collectionName,
		"backup", backupName,
		"page_size", c.opts.PageSize,
		"concurrency", c.opts.Concurrency,
	)

	m := manifest.New(collectionName, backupName)
	m.ArtifactPath = c.opts.ArtifactName
	m.PageSize = c.opts.PageSize

	meta, err := c.meta.Export(ctx, c.store, collectionName)
	if err != nil {
		c.opts.Logger.ErrorContext(ctx, "backup failed", "backup", backupName, "error", err)
		return nil, err
	}
	m.Schema = meta.Schema
	m.Partitions = meta.Partitions
	m.Indexes = meta.Indexes
	m.Warnings = append(m.Warnings, meta.Warnings...)

	blob, err := c.catalog.Store().Create(ctx, m.ArtifactKey())
	if err != nil {
		return nil, err
	}

	stats, err := c.writeArtifact(ctx, blob, collectionName, m)
	if err != nil {
		c.cleanup(ctx, blob, backupName)
		c.opts.Logger.ErrorContext(ctx, "backup failed", "backup", backupName, "error", err)
		return nil, err
	}

	if meta.EntityCount != stats.Rows {
		m.Warnings = append(m.Warnings, fmt.Sprintf(
			"entity count changed during export: counted %d, captured %d", meta.EntityCount, stats.Rows))
	}

	m.FinishedAt = time.Now().UTC()

	// Persisting the manifest is the commit point.
	if err := c.catalog.Save(ctx, m); err != nil {
		c.cleanup(ctx, nil, backupName)
		c.opts.Logger.ErrorContext(ctx, "backup failed", "backup", backupName, "error", err)
		return nil, err
	}

	c.opts.Logger.InfoContext(ctx, "backup complete",
		"collection", collectionName,
		"backup", backupName,
		"rows", m.EntityCount,
		"batches", m.BatchCount,
		"bytes", m.ArtifactSize,
		"reduced_fidelity", m.ReducedFidelity,
		"duration", time.Since(start),
	)

	return m, nil
}

// writeArtifact streams the data export into the writable blob and fills in
// the manifest's data fields. The blob is published on success; the caller
// aborts it on failure.
func (c *Coordinator) writeArtifact(ctx context.Context, blob blobstore.WritableBlob, collectionName string, m *manifest.Manifest) (*ExportStats, error) {
	dst := resource.NewThrottledWriter(ctx, blob, c.opts.Resources)

	w, err := artifact.NewWriter(dst, func(o *artifact.Options) {
		o.Compression = c.opts.Compression
		o.Codec = c.opts.Codec
	})
	if err != nil {
		return nil, err
	}

	stats, err := c.data.Export(ctx, c.store, collectionName, m.Schema, func(b Batch) error {
		return w.WriteBatch(b.Page, b.Rows)
	})
	if err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	if err := blob.Close(); err != nil {
		return nil, err
	}

	m.EntityCount = stats.Rows
	m.BatchCount = stats.Batches
	m.ArtifactSize = w.Size()
	m.Checksum = w.Sum()
	m.Compression = c.opts.Compression.String()
	m.Codec = c.opts.Codec.Name()
	m.ReducedFidelity = stats.ReducedFidelity
	m.Warnings = append(m.Warnings, stats.Warnings...)

	if !stats.Contiguous() {
		m.Warnings = append(m.Warnings, "export skipped pages; artifact batches do not map 1:1 to scan pages")
	}

	return stats, nil
}

// cleanup removes every trace of a failed backup. It runs detached from the
// caller's context so cancellation does not leave orphans behind.
func (c *Coordinator) cleanup(ctx context.Context, blob blobstore.WritableBlob, backupName string) {
	ctx = context.WithoutCancel(ctx)

	if blob != nil {
		if err := blob.Abort(); err != nil {
			c.opts.Logger.WarnContext(ctx, "artifact abort failed", "backup", backupName, "error", err)
		}
	}

	keys, err := c.catalog.Store().List(ctx, backupName+"/")
	if err != nil {
		c.opts.Logger.WarnContext(ctx, "backup cleanup failed", "backup", backupName, "error", err)
		return
	}
	for _, key := range keys {
		if err := c.catalog.Store().Delete(ctx, key); err != nil {
			c.opts.Logger.WarnContext(ctx, "backup cleanup failed", "blob", key, "error", err)
		}
	}
}
