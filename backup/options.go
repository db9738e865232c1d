package backup

import (
	"log/slog"

	"github.com/hupe1980/vecback/artifact"
	"github.com/hupe1980/vecback/codec"
	"github.com/hupe1980/vecback/resource"
)

// DefaultArtifactName is the artifact blob name inside a backup directory.
const DefaultArtifactName = "data" + artifact.DefaultExtension

// Options configures backup coordinators and exporters.
type Options struct {
	// PageSize is the number of rows fetched per scan page.
	PageSize int

	// Concurrency is the number of pages fetched in parallel. 1 scans
	// sequentially.
	Concurrency int

	// Compression applied to artifact frames.
	Compression artifact.Compression

	// Codec used to encode artifact frames.
	Codec codec.Codec

	// ArtifactName is the artifact blob name inside the backup directory.
	ArtifactName string

	// Logger receives structured progress and warning logs.
	Logger *slog.Logger

	// Resources applies memory, fetch and IO limits. Nil means unlimited.
	Resources *resource.Controller
}

// DefaultOptions returns the default backup options.
func DefaultOptions() Options {
	return Options{
		PageSize:     1000,
		Concurrency:  1,
		Compression:  artifact.CompressionZSTD,
		Codec:        codec.Default,
		ArtifactName: DefaultArtifactName,
		Logger:       slog.New(slog.DiscardHandler),
	}
}

func (o *Options) normalize() {
	if o.PageSize <= 0 {
		o.PageSize = 1000
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	if o.ArtifactName == "" {
		o.ArtifactName = DefaultArtifactName
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// WithPageSize sets the rows fetched per page.
func WithPageSize(n int) func(o *Options) {
	return func(o *Options) { o.PageSize = n }
}

// WithConcurrency sets the number of parallel page fetches.
func WithConcurrency(n int) func(o *Options) {
	return func(o *Options) { o.Concurrency = n }
}

// WithCompression sets the artifact compression.
func WithCompression(c artifact.Compression) func(o *Options) {
	return func(o *Options) { o.Compression = c }
}

// WithCodec sets the artifact payload codec.
func WithCodec(c codec.Codec) func(o *Options) {
	return func(o *Options) { o.Codec = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithResources sets the resource controller.
func WithResources(rc *resource.Controller) func(o *Options) {
	return func(o *Options) { o.Resources = rc }
}
