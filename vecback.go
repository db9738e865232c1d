package vecback

import (
	"context"
	"time"

	"github.com/hupe1980/vecback/backup"
	"github.com/hupe1980/vecback/blobstore"
	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/drill"
	"github.com/hupe1980/vecback/internal/keyedmutex"
	"github.com/hupe1980/vecback/manifest"
	"github.com/hupe1980/vecback/resource"
	"github.com/hupe1980/vecback/restore"
	"github.com/hupe1980/vecback/verify"
)

// Client bundles the backup, restore, verification and drill coordinators
// behind one surface. All of them share a single per-collection lock set, so
// a backup and a restore can never race on the same collection name.
//
// A Client is safe for concurrent use.
type Client struct {
	store     collection.Store
	catalog   *manifest.Catalog
	locks     *keyedmutex.KeyedMutex
	backups   *backup.Coordinator
	restores  *restore.Coordinator
	drills    *drill.Runner
	verifier  *verify.Verifier
	resources *resource.Controller
	metrics   MetricsCollector
	logger    *Logger
}

// New creates a Client backing up collections from store into blobs.
func New(store collection.Store, blobs blobstore.BlobStore, optFns ...Option) *Client {
	o := applyOptions(optFns)

	catalog := manifest.NewCatalog(blobs)
	locks := keyedmutex.New()

	backupOpts := []func(*backup.Options){
		backup.WithPageSize(o.pageSize),
		backup.WithConcurrency(o.concurrency),
		backup.WithCompression(o.compression),
		backup.WithCodec(o.codec),
		backup.WithLogger(o.logger.Logger),
		backup.WithResources(o.resources),
	}

	restoreOpts := []func(*restore.Options){
		restore.WithInsertRetries(o.insertRetries),
		restore.WithRetryBackoff(o.retryBackoff),
		restore.WithLogger(o.logger.Logger),
		restore.WithResources(o.resources),
	}
	if o.failFast {
		restoreOpts = append(restoreOpts, restore.WithFailFast())
	}

	return &Client{
		store:    store,
		catalog:  catalog,
		locks:    locks,
		backups:  backup.NewCoordinator(store, catalog, locks, backupOpts...),
		restores: restore.NewCoordinator(store, catalog, locks, restoreOpts...),
		drills: drill.NewRunner(store, catalog, locks,
			drill.WithLogger(o.logger.Logger),
			drill.WithRestoreOptions(restoreOpts...),
		),
		verifier:  verify.New(store, verify.WithLogger(o.logger.Logger), verify.WithResources(o.resources)),
		resources: o.resources,
		metrics:   o.metricsCollector,
		logger:    o.logger,
	}
}

// Catalog exposes the backup catalog for inventory tooling.
func (c *Client) Catalog() *manifest.Catalog {
	return c.catalog
}

// CreateBackup snapshots a collection into a named backup and returns its
// manifest.
func (c *Client) CreateBackup(ctx context.Context, collectionName, backupName string) (*manifest.Manifest, error) {
	start := time.Now()
	m, err := c.backups.CreateFullBackup(ctx, collectionName, backupName)

	var entities, size int64
	if m != nil {
		entities, size = m.EntityCount, m.ArtifactSize
	}
	c.metrics.RecordBackup(entities, size, time.Since(start), err)
	c.logger.LogBackup(ctx, backupName, collectionName, entities, err)
	return m, err
}

// RestoreBackup restores a backup into targetCollection, replacing it if it
// exists. An empty target restores into "<collection>_restored". The report
// is returned alongside any error so partial outcomes stay visible.
func (c *Client) RestoreBackup(ctx context.Context, backupName, targetCollection string) (*restore.Report, error) {
	start := time.Now()
	report, err := c.restores.RestoreFromBackup(ctx, backupName, targetCollection)

	var inserted, failed int64
	target := targetCollection
	if report != nil {
		inserted, failed = report.Inserted, report.FailedRows
		target = report.Target
	}
	c.metrics.RecordRestore(inserted, failed, time.Since(start), err)
	c.logger.LogRestore(ctx, backupName, target, inserted, err)
	return report, err
}

// VerifyBackup checks a stored backup end to end without touching any
// collection: manifest validity, artifact checksum, container decode and
// totals.
func (c *Client) VerifyBackup(ctx context.Context, backupName string) (*verify.Result, error) {
	start := time.Now()
	res, err := verify.VerifyArtifact(ctx, c.catalog, backupName,
		verify.WithLogger(c.logger.Logger),
		verify.WithResources(c.resources),
	)

	passed := err == nil && res.Passed
	c.metrics.RecordVerify(passed, time.Since(start), err)
	c.logger.LogVerify(ctx, backupName, passed, err)
	return res, err
}

// VerifyCollection checks a restored collection against the manifest of the
// backup it came from.
func (c *Client) VerifyCollection(ctx context.Context, backupName, collectionName string) (*verify.Result, error) {
	start := time.Now()

	m, err := c.catalog.Get(ctx, backupName)
	if err != nil {
		c.metrics.RecordVerify(false, time.Since(start), err)
		return nil, err
	}

	res, err := c.verifier.VerifyCollection(ctx, m, collectionName)
	passed := err == nil && res.Passed
	c.metrics.RecordVerify(passed, time.Since(start), err)
	c.logger.LogVerify(ctx, backupName, passed, err)
	return res, err
}

// ListBackups returns the manifests of all stored backups.
func (c *Client) ListBackups(ctx context.Context) ([]*manifest.Manifest, error) {
	return c.catalog.List(ctx)
}

// GetBackup returns the manifest of one stored backup.
func (c *Client) GetBackup(ctx context.Context, backupName string) (*manifest.Manifest, error) {
	return c.catalog.Get(ctx, backupName)
}

// DeleteBackup removes a backup's manifest and artifact.
func (c *Client) DeleteBackup(ctx context.Context, backupName string) error {
	start := time.Now()
	err := c.catalog.Delete(ctx, backupName)
	c.metrics.RecordDelete(time.Since(start), err)
	c.logger.LogDelete(ctx, backupName, err)
	return err
}

// RunDrill rehearses recovery of a backup against a scenario. The drill
// restores into a throwaway collection and removes it afterwards; the
// production collection is never touched.
func (c *Client) RunDrill(ctx context.Context, scenario drill.Scenario, backupName string) (*drill.Report, error) {
	start := time.Now()
	report, err := c.drills.Run(ctx, scenario, backupName)

	passed := err == nil && report != nil && report.Passed
	c.metrics.RecordDrill(passed, time.Since(start), err)
	c.logger.LogDrill(ctx, backupName, passed, err)
	return report, err
}
