package restore

import (
	"log/slog"
	"time"

	"github.com/hupe1980/vecback/resource"
)

// DefaultTargetSuffix is appended to the source collection name when no
// explicit restore target is given.
const DefaultTargetSuffix = "_restored"

// Options configures a restore coordinator.
type Options struct {
	// InsertRetries is the number of attempts per batch before it is
	// recorded as failed.
	InsertRetries int

	// RetryBackoff is the base wait between attempts; attempt n waits
	// (n-1) * RetryBackoff.
	RetryBackoff time.Duration

	// ContinueOnError keeps loading after a batch exhausts its retries,
	// accumulating a PartialError. When false the first lost batch fails
	// the restore.
	ContinueOnError bool

	// Logger receives structured progress and warning logs.
	Logger *slog.Logger

	// Resources applies IO limits to artifact reads. Nil means unlimited.
	Resources *resource.Controller
}

// DefaultOptions returns the default restore options.
func DefaultOptions() Options {
	return Options{
		InsertRetries:   3,
		RetryBackoff:    250 * time.Millisecond,
		ContinueOnError: true,
		Logger:          slog.New(slog.DiscardHandler),
	}
}

func (o *Options) normalize() {
	if o.InsertRetries <= 0 {
		o.InsertRetries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 250 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// WithInsertRetries sets the attempts per batch.
func WithInsertRetries(n int) func(o *Options) {
	return func(o *Options) { o.InsertRetries = n }
}

// WithRetryBackoff sets the base wait between insert attempts.
func WithRetryBackoff(d time.Duration) func(o *Options) {
	return func(o *Options) { o.RetryBackoff = d }
}

// WithFailFast aborts the restore on the first batch that exhausts its
// retries instead of accumulating a PartialError.
func WithFailFast() func(o *Options) {
	return func(o *Options) { o.ContinueOnError = false }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithResources sets the resource controller.
func WithResources(rc *resource.Controller) func(o *Options) {
	return func(o *Options) { o.Resources = rc }
}
