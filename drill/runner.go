package drill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/internal/keyedmutex"
	"github.com/hupe1980/vecback/manifest"
	"github.com/hupe1980/vecback/restore"
	"github.com/hupe1980/vecback/verify"
)

// Options configures a Runner.
type Options struct {
	// Logger receives drill progress. Defaults to a silent logger.
	Logger *slog.Logger

	// RestoreOptions configure the restore coordinator driving the drill.
	RestoreOptions []func(o *restore.Options)
}

// DefaultOptions returns the options used when none are overridden.
func DefaultOptions() Options {
	return Options{
		Logger: slog.New(slog.DiscardHandler),
	}
}

func (o *Options) normalize() {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithRestoreOptions passes options through to the restore coordinator.
func WithRestoreOptions(optFns ...func(o *restore.Options)) func(o *Options) {
	return func(o *Options) { o.RestoreOptions = append(o.RestoreOptions, optFns...) }
}

// Runner rehearses recovery from a backup without touching the collection
// the backup was taken from.
type Runner struct {
	store    collection.Store
	catalog  *manifest.Catalog
	restorer *restore.Coordinator
	verifier *verify.Verifier
	opts     Options
}

// NewRunner creates a drill runner. A nil locks falls back to a private
// mutex set; pass the shared set so drills exclude concurrent restores of
// the same target.
func NewRunner(store collection.Store, catalog *manifest.Catalog, locks *keyedmutex.KeyedMutex, optFns ...func(o *Options)) *Runner {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.normalize()

	if locks == nil {
		locks = keyedmutex.New()
	}

	restoreOpts := append([]func(o *restore.Options){restore.WithLogger(opts.Logger)}, opts.RestoreOptions...)

	return &Runner{
		store:    store,
		catalog:  catalog,
		restorer: restore.NewCoordinator(store, catalog, locks, restoreOpts...),
		verifier: verify.New(store, verify.WithLogger(opts.Logger), verify.WithCollectAll()),
		opts:     opts,
	}
}

// Run rehearses recovery of backupName against the given scenario. The
// returned error reports hard failures that aborted the rehearsal; a drill
// that ran to completion but found problems returns a report with
// Passed=false and a nil error.
func (r *Runner) Run(ctx context.Context, scenario Scenario, backupName string) (*Report, error) {
	report := &Report{
		Scenario:  scenario,
		Backup:    backupName,
		StartedAt: time.Now(),
	}
	defer func() {
		report.TotalDuration = time.Since(report.StartedAt)
		report.finish()
	}()

	r.opts.Logger.InfoContext(ctx, "recovery drill started",
		"backup", backupName,
		"scenario", scenario.Name,
		"kind", string(scenario.Kind),
	)

	err := r.rehearse(ctx, report, backupName)

	// The throwaway collection is removed even when the rehearsal aborted
	// half way through or the context is gone.
	if report.Target != "" {
		r.cleanup(context.WithoutCancel(ctx), report)
	}

	r.opts.Logger.InfoContext(ctx, "recovery drill finished",
		"backup", backupName,
		"target", report.Target,
		"steps", len(report.Steps),
	)

	if err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) rehearse(ctx context.Context, report *Report, backupName string) error {
	// Backup verification. Store-free, so a broken artifact is caught
	// before anything is created.
	start := time.Now()
	m, err := r.catalog.Get(ctx, backupName)
	if err != nil {
		report.step(StepBackupVerification, restore.StepFailed, start, err.Error())
		return fmt.Errorf("backup verification: %w", err)
	}

	res, err := verify.VerifyArtifact(ctx, r.catalog, backupName, verify.WithLogger(r.opts.Logger))
	if err != nil {
		report.step(StepBackupVerification, restore.StepFailed, start, err.Error())
		return fmt.Errorf("backup verification: %w", err)
	}
	if !res.Passed {
		report.step(StepBackupVerification, restore.StepFailed, start, failedChecks(res))
		return fmt.Errorf("backup verification: %w", &verify.FailureError{Result: res})
	}
	report.step(StepBackupVerification, restore.StepSucceeded, start, fmt.Sprintf("%d checks passed", len(res.Checks)))

	// Environment preparation. The target name is derived, never the
	// collection the backup came from.
	start = time.Now()
	report.Target = fmt.Sprintf("%s-drill-%d", m.Collection, time.Now().Unix())
	report.step(StepEnvironmentPreparation, restore.StepSucceeded, start, "target "+report.Target)

	// Data restoration.
	start = time.Now()
	rep, err := r.restorer.RestoreFromBackup(ctx, backupName, report.Target)
	report.Restore = rep
	switch {
	case rep == nil || rep.State != restore.StateCompleted:
		if err == nil {
			err = errors.New("restore did not complete")
		}
		report.step(StepDataRestoration, restore.StepFailed, start, err.Error())
		return fmt.Errorf("data restoration: %w", err)
	case err != nil:
		report.step(StepDataRestoration, restore.StepDegraded, start, err.Error())
	default:
		report.step(StepDataRestoration, restore.StepSucceeded, start, fmt.Sprintf("%d rows restored", rep.Inserted))
	}

	// Integrity verification. The restore already verified the target; the
	// drill records that embedded result as its own step.
	start = time.Now()
	switch {
	case rep.Verification == nil:
		report.step(StepIntegrityVerification, restore.StepFailed, start, "restore produced no verification result")
	case rep.Verification.Passed:
		report.step(StepIntegrityVerification, restore.StepSucceeded, start, fmt.Sprintf("%d checks passed", len(rep.Verification.Checks)))
	default:
		report.step(StepIntegrityVerification, restore.StepFailed, start, failedChecks(rep.Verification))
	}

	// Service verification. A fresh pass over every check, the way an
	// operator would probe the collection after a real recovery.
	start = time.Now()
	svc, err := r.verifier.VerifyCollection(ctx, m, report.Target)
	if err != nil {
		report.step(StepServiceVerification, restore.StepFailed, start, err.Error())
		return fmt.Errorf("service verification: %w", err)
	}
	report.Service = svc
	if svc.Passed {
		report.step(StepServiceVerification, restore.StepSucceeded, start, fmt.Sprintf("%d checks passed", len(svc.Checks)))
	} else {
		report.step(StepServiceVerification, restore.StepFailed, start, failedChecks(svc))
	}

	return nil
}

// cleanup drops the throwaway collection. Best-effort: a failure is
// recorded but never fails the drill.
func (r *Runner) cleanup(ctx context.Context, report *Report) {
	start := time.Now()

	exists, err := r.store.HasCollection(ctx, report.Target)
	if err != nil {
		report.step(StepCleanup, restore.StepFailed, start, err.Error())
		return
	}
	if !exists {
		report.step(StepCleanup, restore.StepSkipped, start, "nothing to remove")
		return
	}
	if err := r.store.DropCollection(ctx, report.Target); err != nil {
		report.step(StepCleanup, restore.StepFailed, start, err.Error())
		r.opts.Logger.WarnContext(ctx, "drill cleanup failed", "target", report.Target, "error", err)
		return
	}
	report.step(StepCleanup, restore.StepSucceeded, start, "dropped "+report.Target)
}

func failedChecks(res *verify.Result) string {
	return "failed checks: " + strings.Join(res.Failed(), ", ")
}
