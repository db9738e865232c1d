package drill

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecback/backup"
	"github.com/hupe1980/vecback/blobstore"
	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/manifest"
	"github.com/hupe1980/vecback/restore"
	"github.com/hupe1980/vecback/testutil"
	"github.com/hupe1980/vecback/verify"
)

func fixture(t *testing.T, size int) (*collection.MemoryStore, *blobstore.MemoryStore, *manifest.Catalog) {
	t.Helper()
	ctx := context.Background()

	store := collection.NewMemoryStore()
	require.NoError(t, testutil.SeedCollection(ctx, store, "articles", size))

	blobs := blobstore.NewMemoryStore()
	cat := manifest.NewCatalog(blobs)

	coord := backup.NewCoordinator(store, cat, nil, backup.WithPageSize(500))
	_, err := coord.CreateFullBackup(ctx, "articles", "nightly")
	require.NoError(t, err)

	return store, blobs, cat
}

func stepNames(r *Report) []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	store, _, cat := fixture(t, 2000)

	runner := NewRunner(store, cat, nil)
	report, err := runner.Run(ctx, DataCorruptionScenario(), "nightly")
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Equal(t, KindDataCorruption, report.Scenario.Kind)
	assert.Equal(t, "nightly", report.Backup)
	assert.True(t, strings.HasPrefix(report.Target, "articles-drill-"), report.Target)
	assert.Positive(t, report.TotalDuration)

	assert.Equal(t, []string{
		StepBackupVerification,
		StepEnvironmentPreparation,
		StepDataRestoration,
		StepIntegrityVerification,
		StepServiceVerification,
		StepCleanup,
	}, stepNames(report))
	for _, s := range report.Steps {
		assert.Equal(t, restore.StepSucceeded, s.Status, s.Name)
	}

	require.NotNil(t, report.Restore)
	assert.Equal(t, restore.StateCompleted, report.Restore.State)
	assert.EqualValues(t, 2000, report.Restore.Inserted)
	require.NotNil(t, report.Service)
	assert.True(t, report.Service.Passed)

	// The throwaway collection is gone, the production one untouched.
	exists, err := store.HasCollection(ctx, report.Target)
	require.NoError(t, err)
	assert.False(t, exists)

	count, err := store.GetEntityCount(ctx, "articles")
	require.NoError(t, err)
	assert.EqualValues(t, 2000, count)
}

func TestRunner_Run_MissingBackup(t *testing.T) {
	store, _, cat := fixture(t, 10)

	runner := NewRunner(store, cat, nil)
	report, err := runner.Run(context.Background(), SystemFailureScenario(), "missing")
	require.ErrorIs(t, err, manifest.ErrNotFound)

	require.NotNil(t, report)
	assert.False(t, report.Passed)
	assert.Empty(t, report.Target)
	assert.Equal(t, []string{StepBackupVerification}, stepNames(report))
	assert.Equal(t, restore.StepFailed, report.Steps[0].Status)
}

func TestRunner_Run_CorruptArtifact(t *testing.T) {
	ctx := context.Background()
	store, blobs, cat := fixture(t, 20)

	blob, err := blobs.Open(ctx, "nightly/data.vbk")
	require.NoError(t, err)
	r, err := blob.NewReader(ctx)
	require.NoError(t, err)
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, blob.Close())

	raw[len(raw)/2] ^= 0xFF
	require.NoError(t, blobs.Put(ctx, "nightly/data.vbk", raw))

	runner := NewRunner(store, cat, nil)
	report, err := runner.Run(ctx, DataCorruptionScenario(), "nightly")

	var vErr *verify.FailureError
	require.ErrorAs(t, err, &vErr)
	assert.False(t, report.Passed)
	assert.Empty(t, report.Target)
	assert.Equal(t, []string{StepBackupVerification}, stepNames(report))
	assert.Contains(t, report.Steps[0].Detail, "artifact_checksum")
}

func TestRunner_Run_DegradedRestore(t *testing.T) {
	ctx := context.Background()
	store, _, cat := fixture(t, 20)

	// Every insert into a drill target fails; the production seeding above
	// is unaffected.
	store.SetInsertHook(func(name, _ string, _ []collection.Record) error {
		if strings.Contains(name, "-drill-") {
			return assert.AnError
		}
		return nil
	})

	runner := NewRunner(store, cat, nil,
		WithRestoreOptions(restore.WithRetryBackoff(time.Millisecond)))
	report, err := runner.Run(ctx, DataCorruptionScenario(), "nightly")
	require.NoError(t, err)

	assert.False(t, report.Passed)

	step, ok := report.StepByName(StepDataRestoration)
	require.True(t, ok)
	assert.Equal(t, restore.StepDegraded, step.Status)

	step, ok = report.StepByName(StepIntegrityVerification)
	require.True(t, ok)
	assert.Equal(t, restore.StepFailed, step.Status)
	assert.Contains(t, step.Detail, "entity_count")

	step, ok = report.StepByName(StepServiceVerification)
	require.True(t, ok)
	assert.Equal(t, restore.StepFailed, step.Status)

	step, ok = report.StepByName(StepCleanup)
	require.True(t, ok)
	assert.Equal(t, restore.StepSucceeded, step.Status)

	exists, err := store.HasCollection(ctx, report.Target)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunner_Run_FailFastRestoreCleansUp(t *testing.T) {
	ctx := context.Background()
	store, _, cat := fixture(t, 20)

	store.SetInsertHook(func(name, _ string, _ []collection.Record) error {
		if strings.Contains(name, "-drill-") {
			return assert.AnError
		}
		return nil
	})

	runner := NewRunner(store, cat, nil,
		WithRestoreOptions(restore.WithFailFast(), restore.WithRetryBackoff(time.Millisecond)))
	report, err := runner.Run(ctx, SystemFailureScenario(), "nightly")
	require.Error(t, err)

	assert.False(t, report.Passed)
	assert.Equal(t, []string{
		StepBackupVerification,
		StepEnvironmentPreparation,
		StepDataRestoration,
		StepCleanup,
	}, stepNames(report))

	step, ok := report.StepByName(StepDataRestoration)
	require.True(t, ok)
	assert.Equal(t, restore.StepFailed, step.Status)

	// The half-built drill collection is removed even on a hard failure.
	step, ok = report.StepByName(StepCleanup)
	require.True(t, ok)
	assert.Equal(t, restore.StepSucceeded, step.Status)

	exists, err := store.HasCollection(ctx, report.Target)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestScenarios(t *testing.T) {
	dc := DataCorruptionScenario()
	assert.Equal(t, KindDataCorruption, dc.Kind)
	assert.NotEmpty(t, dc.AffectedPartitions)
	assert.NotEmpty(t, dc.Symptoms)
	assert.Positive(t, dc.CorruptionPercent)

	sf := SystemFailureScenario()
	assert.Equal(t, KindSystemFailure, sf.Kind)
	assert.NotEmpty(t, sf.FailedComponents)
	assert.NotEmpty(t, sf.RecoveryRequirements)
}
