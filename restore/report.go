package restore

import (
	"time"

	"github.com/hupe1980/vecback/verify"
)

// StepStatus is the outcome of one restore step.
type StepStatus string

const (
	// StepSucceeded means the step did everything it set out to do.
	StepSucceeded StepStatus = "succeeded"
	// StepSkipped means the step had nothing to do, e.g. dropping a target
	// that does not exist.
	StepSkipped StepStatus = "skipped"
	// StepDegraded means the step finished but lost something on the way,
	// e.g. an index that could not be recreated.
	StepDegraded StepStatus = "degraded"
	// StepFailed means the step aborted the restore.
	StepFailed StepStatus = "failed"
)

// Step records one timed phase of a restore.
type Step struct {
	Name     string
	Status   StepStatus
	Duration time.Duration
	Detail   string
}

// Report is the full account of a restore run. It is never persisted.
type Report struct {
	Backup string
	Target string
	State  State
	Steps  []Step

	// Inserted is the number of rows written to the target.
	Inserted int64
	// FailedRows counts rows in batches that exhausted their retries.
	FailedRows int64
	// FailedBatches lists the page indexes of those batches.
	FailedBatches []uint32
	// Coercions counts field repairs applied while normalizing rows.
	Coercions int

	Warnings []string

	// Verification holds the post-load check results, nil if the restore
	// failed before verification.
	Verification *verify.Result

	StartedAt time.Time
	Duration  time.Duration
}

// step appends a timed step record.
func (r *Report) step(name string, status StepStatus, start time.Time, detail string) {
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
