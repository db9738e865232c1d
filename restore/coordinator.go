package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecback/artifact"
	"github.com/hupe1980/vecback/blobstore"
	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/internal/keyedmutex"
	"github.com/hupe1980/vecback/manifest"
	"github.com/hupe1980/vecback/resource"
	"github.com/hupe1980/vecback/schema"
	"github.com/hupe1980/vecback/verify"
)

const (
	stepVerifyArtifact    = "verify_artifact"
	stepReconstructSchema = "reconstruct_schema"
	stepRecreate          = "recreate_partitions_and_indexes"
	stepLoadData          = "load_data"
	stepVerifyIntegrity   = "verify_integrity"
)

// Coordinator rebuilds collections from backups.
type Coordinator struct {
	store    collection.Store
	catalog  *manifest.Catalog
	locks    *keyedmutex.KeyedMutex
	opts     Options
	verifier *verify.Verifier
}

// NewCoordinator creates a restore coordinator. The lock set should be the
// one the backup coordinator uses, so backups and restores touching the same
// collection exclude each other; pass nil for a private set.
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
		store:    store,
		catalog:  catalog,
		locks:    locks,
		opts:     opts,
		verifier: verify.New(store, verify.WithLogger(opts.Logger)),
	}
}

// RestoreFromBackup replaces targetCollection with the contents of the named
// backup. An empty target restores into "<collection>_restored".
//
// The artifact checksum is verified before the target is touched; a corrupt
// artifact leaves the store exactly as it was. Batches that exhaust their
// insert retries are skipped and accumulated into a PartialError unless the
// coordinator is configured to fail fast.
//
// The report is returned for failed restores too, with State Failed and the
// failing step recorded.
func (c *Coordinator) RestoreFromBackup(ctx context.Context, backupName, targetCollection string) (*Report, error) {
	m, err := c.catalog.Get(ctx, backupName)
	if err != nil {
		return nil, err
	}

	target := targetCollection
	if target == "" {
		target = m.Collection + DefaultTargetSuffix
	}

	if !c.locks.TryLock(target) {
		return nil, fmt.Errorf("restore %s: %w", target, keyedmutex.ErrOperationInProgress)
	}
	defer c.locks.Unlock(target)

	report := &Report{
		Backup:    backupName,
		Target:    target,
		State:     StateIdle,
		StartedAt: time.Now(),
	}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	c.opts.Logger.InfoContext(ctx, "restore started",
		"backup", backupName,
		"target", target,
		"rows", m.EntityCount,
		"batches", m.BatchCount,
	)

	// The checksum pre-flight runs before anything else so a corrupt
	// artifact never costs the operator an existing collection.
	report.State = StateVerifyingArtifact
	start := time.Now()
	blob, err := c.catalog.OpenArtifact(ctx, m)
	if err != nil {
		report.step(stepVerifyArtifact, StepFailed, start, err.Error())
		return c.fail(ctx, report, err)
	}
	defer blob.Close()

	if err := c.verifyArtifact(ctx, blob, m); err != nil {
		report.step(stepVerifyArtifact, StepFailed, start, err.Error())
		return c.fail(ctx, report, err)
	}
	report.step(stepVerifyArtifact, StepSucceeded, start, m.Checksum)

	report.State = StateReconstructingSchema
	start = time.Now()
	desc, warnings, err := schema.Reconstruct(m.Schema)
	if err != nil {
		report.step(stepReconstructSchema, StepFailed, start, err.Error())
		return c.fail(ctx, report, err)
	}
	report.Warnings = append(report.Warnings, warnings...)
	if len(warnings) > 0 {
		report.step(stepReconstructSchema, StepDegraded, start,
			fmt.Sprintf("%d fields, %d downgraded", len(desc.Fields), len(warnings)))
	} else {
		report.step(stepReconstructSchema, StepSucceeded, start,
			fmt.Sprintf("%d fields", len(desc.Fields)))
	}

	report.State = StateRecreatingPartitionsAndIndexes
	start = time.Now()
	status, detail, err := c.recreate(ctx, m, desc, target, report)
	if err != nil {
		report.step(stepRecreate, StepFailed, start, err.Error())
		return c.fail(ctx, report, err)
	}
	report.step(stepRecreate, status, start, detail)

	report.State = StateLoadingData
	start = time.Now()
	loadRes, err := c.load(ctx, blob, desc, target)
	report.Inserted = loadRes.inserted
	report.FailedRows = loadRes.failed
	report.FailedBatches = loadRes.pages.ToArray()
	report.Coercions = loadRes.coercions
	if err != nil {
		// The target may hold a partial load; the row accounting above
		// tells the operator how much arrived before the failure.
		report.step(stepLoadData, StepFailed, start, err.Error())
		return c.fail(ctx, report, err)
	}

	if loadRes.failed > 0 {
		report.step(stepLoadData, StepDegraded, start,
			fmt.Sprintf("%d rows inserted, %d lost in %d batches",
				loadRes.inserted, loadRes.failed, loadRes.pages.GetCardinality()))
	} else {
		report.step(stepLoadData, StepSucceeded, start,
			fmt.Sprintf("%d rows inserted", loadRes.inserted))
	}

	report.State = StateVerifyingIntegrity
	start = time.Now()
	vres, err := c.verifier.VerifyCollection(ctx, m, target)
	if err != nil {
		report.step(stepVerifyIntegrity, StepFailed, start, err.Error())
		return c.fail(ctx, report, err)
	}
	report.Verification = vres
	if vres.Passed {
		report.step(stepVerifyIntegrity, StepSucceeded, start,
			fmt.Sprintf("%d checks passed", len(vres.Checks)))
	} else {
		report.step(stepVerifyIntegrity, StepDegraded, start,
			fmt.Sprintf("failed checks: %s", strings.Join(vres.Failed(), ", ")))
	}

	report.State = StateCompleted

	var errs []error
	if loadRes.failed > 0 {
		errs = append(errs, &PartialError{
			Attempted: loadRes.attempted,
			Inserted:  loadRes.inserted,
			Failed:    loadRes.failed,
			Pages:     loadRes.pages,
		})
	}
	if !vres.Passed {
		errs = append(errs, &verify.FailureError{Result: vres})
	}

	c.opts.Logger.InfoContext(ctx, "restore complete",
		"backup", backupName,
		"target", target,
		"inserted", report.Inserted,
		"failed_rows", report.FailedRows,
		"coercions", report.Coercions,
		"verified", vres.Passed,
		"duration", time.Since(report.StartedAt),
	)

	return report, errors.Join(errs...)
}

func (c *Coordinator) fail(ctx context.Context, report *Report, err error) (*Report, error) {
	report.State = StateFailed
	c.opts.Logger.ErrorContext(ctx, "restore failed",
		"backup", report.Backup,
		"target", report.Target,
		"error", err,
	)
	return report, err
}

// verifyArtifact streams the artifact through its checksum without decoding.
func (c *Coordinator) verifyArtifact(ctx context.Context, blob blobstore.Blob, m *manifest.Manifest) error {
	r, err := blob.NewReader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	return artifact.VerifyChecksum(resource.NewThrottledReader(ctx, r, c.opts.Resources), m.Checksum)
}

// recreate replaces the target collection and rebuilds its partitions and
// indexes. Index failures degrade the step; everything else is fatal.
func (c *Coordinator) recreate(ctx context.Context, m *manifest.Manifest, desc schema.Descriptor, target string, report *Report) (StepStatus, string, error) {
	exists, err := c.store.HasCollection(ctx, target)
	if err != nil {
		return StepFailed, "", err
	}

	dropped := "target absent"
	if exists {
		// Replace semantics: if the old collection cannot be dropped there
		// is nothing sensible to load into.
		if err := c.store.DropCollection(ctx, target); err != nil {
			return StepFailed, "", fmt.Errorf("drop existing %s: %w", target, err)
		}
		dropped = "dropped existing collection"
		c.opts.Logger.WarnContext(ctx, "dropped existing target collection", "target", target)
	}

	if err := c.store.CreateCollection(ctx, target, desc); err != nil {
		return StepFailed, "", fmt.Errorf("create %s: %w", target, err)
	}

	partitions := 0
	for _, p := range m.Partitions {
		if p.Name == schema.DefaultPartitionName {
			continue
		}
		if err := c.store.CreatePartition(ctx, target, p); err != nil {
			return StepFailed, "", fmt.Errorf("create partition %s: %w", p.Name, err)
		}
		partitions++
	}

	status := StepSucceeded
	indexes := 0
	for _, field := range sortedIndexFields(m.Indexes) {
		if err := c.store.CreateIndex(ctx, target, field, m.Indexes[field]); err != nil {
			status = StepDegraded
			report.Warnings = append(report.Warnings, fmt.Sprintf("index on %q not recreated: %v", field, err))
			c.opts.Logger.WarnContext(ctx, "index recreation failed",
				"target", target,
				"field", field,
				"error", err,
			)
			continue
		}
		indexes++
	}

	return status, fmt.Sprintf("%s; %d partitions, %d indexes", dropped, partitions, indexes), nil
}

type loadResult struct {
	attempted int64
	inserted  int64
	failed    int64
	pages     *roaring.Bitmap
	coercions int
}

// load streams the artifact frames into the target in stored order. The
// result carries whatever row accounting accumulated before an error, so a
// failed load still reports how much arrived.
func (c *Coordinator) load(ctx context.Context, blob blobstore.Blob, desc schema.Descriptor, target string) (*loadResult, error) {
	res := &loadResult{pages: roaring.New()}

	r, err := blob.NewReader(ctx)
	if err != nil {
		return res, err
	}
	defer r.Close()

	ar, err := artifact.NewReader(resource.NewThrottledReader(ctx, r, c.opts.Resources))
	if err != nil {
		return res, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		frame, err := ar.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}

		res.attempted += int64(len(frame.Rows))

		rows, coercions, err := c.normalizeBatch(desc, frame)
		res.coercions += coercions
		if err != nil {
			// Normalization failures are not transient; retries cannot help.
			if ferr := c.batchLost(ctx, res, frame, target, err); ferr != nil {
				return res, ferr
			}
			continue
		}

		if err := c.insertBatch(ctx, target, frame.Page, rows); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if ferr := c.batchLost(ctx, res, frame, target, err); ferr != nil {
				return res, ferr
			}
			continue
		}

		res.inserted += int64(len(rows))

		c.opts.Logger.DebugContext(ctx, "batch loaded",
			"target", target,
			"batch", frame.Page,
			"rows", len(rows),
		)
	}

	return res, nil
}

func (c *Coordinator) normalizeBatch(desc schema.Descriptor, frame *artifact.Frame) ([]collection.Record, int, error) {
	rows := make([]collection.Record, 0, len(frame.Rows))
	coercions := 0

	for i, rec := range frame.Rows {
		row, cs, err := schema.NormalizeRecord(desc, rec)
		coercions += len(cs)
		if err != nil {
			return nil, coercions, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, collection.Record(row))
	}

	return rows, coercions, nil
}

// insertBatch writes one batch with retries and linear backoff.
func (c *Coordinator) insertBatch(ctx context.Context, target string, page uint32, rows []collection.Record) error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.InsertRetries; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, time.Duration(attempt-1)*c.opts.RetryBackoff); err != nil {
				return err
			}
		}

		if _, err := c.store.Insert(ctx, target, "", rows); err != nil {
			lastErr = err
			c.opts.Logger.WarnContext(ctx, "batch insert failed",
				"target", target,
				"batch", page,
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		return nil
	}
	return lastErr
}

// batchLost records a lost batch and decides whether the restore goes on.
func (c *Coordinator) batchLost(ctx context.Context, res *loadResult, frame *artifact.Frame, target string, err error) error {
	res.failed += int64(len(frame.Rows))
	res.pages.Add(frame.Page)

	c.opts.Logger.ErrorContext(ctx, "batch lost",
		"target", target,
		"batch", frame.Page,
		"rows", len(frame.Rows),
		"error", err,
	)

	if !c.opts.ContinueOnError {
		return fmt.Errorf("batch %d: %w", frame.Page, err)
	}
	return nil
}

func sortedIndexFields(m map[string]schema.Index) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
