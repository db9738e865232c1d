package drill

import (
	"time"

	"github.com/hupe1980/vecback/restore"
	"github.com/hupe1980/vecback/verify"
)

// Step names, in execution order.
const (
	StepBackupVerification     = "backup_verification"
	StepEnvironmentPreparation = "environment_preparation"
	StepDataRestoration        = "data_restoration"
	StepIntegrityVerification  = "integrity_verification"
	StepServiceVerification    = "service_verification"
	StepCleanup                = "cleanup"
)

// Step records one timed phase of a drill.
type Step struct {
	Name     string
	Status   restore.StepStatus
	Duration time.Duration
	Detail   string
}

// Report is the full account of one recovery rehearsal. It is never
// persisted.
type Report struct {
	Scenario Scenario
	Backup   string

	// Target is the throwaway collection the drill restored into, empty if
	// the drill failed before deriving one.
	Target string

	Steps []Step

	// Passed is true when every step before cleanup succeeded. Cleanup is
	// best-effort and never fails a drill.
	Passed bool

	// Restore holds the underlying restore report, nil if the drill failed
	// before restoring.
	Restore *restore.Report

	// Service holds the service verification results, nil if the drill
	// never reached that step.
	Service *verify.Result

	StartedAt     time.Time
	TotalDuration time.Duration
}

// step appends a timed step record.
func (r *Report) step(name string, status restore.StepStatus, start time.Time, detail string) {
	r.Steps = append(r.Steps, Step{
		Name:     name,
		Status:   status,
		Duration: time.Since(start),
		Detail:   detail,
	})
}

// StepByName returns the first step with the given name.
func (r *Report) StepByName(name string) (Step, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// finish computes the aggregate verdict. All five mandatory steps must have
// run and succeeded.
func (r *Report) finish() {
	passed := true
	mandatory := 0
	for _, s := range r.Steps {
		if s.Name == StepCleanup {
			continue
		}
		mandatory++
		if s.Status != restore.StepSucceeded {
			passed = false
		}
	}
	r.Passed = passed && mandatory == 5
}
