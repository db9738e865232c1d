package vecback

import (
	"log/slog"
	"time"

	"github.com/hupe1980/vecback/artifact"
	"github.com/hupe1980/vecback/codec"
	"github.com/hupe1980/vecback/resource"
)

type options struct {
	pageSize         int
	concurrency      int
	compression      artifact.Compression
	codec            codec.Codec
	insertRetries    int
	retryBackoff     time.Duration
	failFast         bool
	resources        *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Client behavior.
//
// Options apply to every operation the Client runs; per-operation tuning is
// available on the underlying backup, restore and drill packages.
type Option func(*options)

// WithPageSize configures the number of rows fetched per scan page during
// backup export.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithConcurrency configures the number of pages fetched in parallel during
// backup export. The artifact layout stays deterministic regardless.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithCompression configures the artifact frame compression.
func WithCompression(c artifact.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCodec configures the codec used to encode artifact frames.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithInsertRetries configures the insert attempts per batch during restore.
func WithInsertRetries(n int) Option {
	return func(o *options) {
		o.insertRetries = n
	}
}

// WithRetryBackoff configures the linear backoff between insert retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) {
		o.retryBackoff = d
	}
}

// WithFailFast makes restores abort on the first lost batch instead of
// collecting failures into a partial-restore report.
func WithFailFast() Option {
	return func(o *options) {
		o.failFast = true
	}
}

// WithResources configures memory, fetch and IO limits shared by every
// operation. Nil means unlimited.
func WithResources(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecback.BasicMetricsCollector{}
//	client := vecback.New(store, blobs, vecback.WithMetricsCollector(metrics))
//	// ... use client ...
//	stats := metrics.GetStats()
//	fmt.Printf("Backups: %d, Avg latency: %dns\n", stats.BackupCount, stats.BackupAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecback.NewJSONLogger(slog.LevelInfo)
//	client := vecback.New(store, blobs, vecback.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		compression:      artifact.CompressionZSTD,
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
