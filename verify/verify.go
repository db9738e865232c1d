package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hupe1980/vecback/artifact"
	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/manifest"
	"github.com/hupe1980/vecback/resource"
	"github.com/hupe1980/vecback/schema"
)

// Check is the outcome of one verification probe.
type Check struct {
	Name   string
	Passed bool
	Detail string
}

// Result aggregates the checks of one verification run.
type Result struct {
	Passed bool
	Checks []Check
}

// Failed returns the names of the checks that did not pass.
func (r *Result) Failed() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}

// FailureError reports a verification run with at least one failed check.
// It is never retried automatically.
type FailureError struct {
	Result *Result
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("verification failed: %s", strings.Join(e.Result.Failed(), ", "))
}

// Options configures verification runs.
type Options struct {
	// CollectAll runs every collection check even after one fails. The
	// default short-circuits on the first failure.
	CollectAll bool

	// SampleSize is the topK for the smoke search and the limit for the
	// smoke query.
	SampleSize int

	// Logger receives structured check results.
	Logger *slog.Logger

	// Resources throttles artifact reads. Nil means unlimited.
	Resources *resource.Controller
}

// DefaultOptions returns the default verification options.
func DefaultOptions() Options {
	return Options{
		SampleSize: 5,
		Logger:     slog.New(slog.DiscardHandler),
	}
}

func (o *Options) normalize() {
	if o.SampleSize <= 0 {
		o.SampleSize = 5
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// WithCollectAll makes collection verification run every check instead of
// stopping at the first failure.
func WithCollectAll() func(o *Options) {
	return func(o *Options) { o.CollectAll = true }
}

// WithSampleSize sets the smoke search topK and smoke query limit.
func WithSampleSize(n int) func(o *Options) {
	return func(o *Options) { o.SampleSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithResources sets the resource controller used for artifact reads.
func WithResources(rc *resource.Controller) func(o *Options) {
	return func(o *Options) { o.Resources = rc }
}

// Verifier checks restored collections against their manifests.
type Verifier struct {
	store collection.Store
	opts  Options
}

// New creates a collection verifier.
func New(store collection.Store, optFns ...func(o *Options)) *Verifier {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.normalize()

	return &Verifier{store: store, opts: opts}
}

// VerifyCollection compares the target collection with what the manifest
// says was backed up: entity count, schema shape, and that a small search
// and query both execute. It never writes.
//
// A non-nil error means verification could not run; failed checks are
// reported through the result instead.
func (v *Verifier) VerifyCollection(ctx context.Context, m *manifest.Manifest, target string) (*Result, error) {
	exists, err := v.store.HasCollection(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", target, err)
	}
	if !exists {
		res := &Result{Checks: []Check{{
			Name:   "collection_exists",
			Detail: fmt.Sprintf("collection %q does not exist", target),
		}}}
		return res, nil
	}

	res := &Result{Passed: true}
	record := func(c Check) bool {
		res.Checks = append(res.Checks, c)
		if !c.Passed {
			res.Passed = false
		}
		v.opts.Logger.DebugContext(ctx, "verification check",
			"target", target,
			"check", c.Name,
			"passed", c.Passed,
			"detail", c.Detail,
		)
		return c.Passed || v.opts.CollectAll
	}

	count, err := v.store.GetEntityCount(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("verify %s: entity count: %w", target, err)
	}
	if !record(Check{
		Name:   "entity_count",
		Passed: count == m.EntityCount,
		Detail: fmt.Sprintf("manifest %d, collection %d", m.EntityCount, count),
	}) {
		return res, nil
	}

	desc, err := v.store.DescribeSchema(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("verify %s: schema: %w", target, err)
	}
	if !record(schemaParity(m.Schema, desc)) {
		return res, nil
	}

	if !record(v.smokeSearch(ctx, m, target)) {
		return res, nil
	}

	record(v.smokeQuery(ctx, target))

	return res, nil
}

// schemaParity compares field count and the primary key. Field types beyond
// the primary key are not compared: a downgraded restore legitimately
// changes them.
func schemaParity(want, got schema.Descriptor) Check {
	c := Check{Name: "schema_parity"}

	if len(got.Fields) != len(want.Fields) {
		c.Detail = fmt.Sprintf("manifest has %d fields, collection has %d", len(want.Fields), len(got.Fields))
		return c
	}

	wantPK, ok := want.PrimaryField()
	if !ok {
		c.Detail = "manifest schema has no primary key"
		return c
	}
	gotPK, ok := got.PrimaryField()
	if !ok {
		c.Detail = "collection schema has no primary key"
		return c
	}
	if wantPK.Name != gotPK.Name || wantPK.Type != gotPK.Type {
		c.Detail = fmt.Sprintf("primary key %s(%s) != %s(%s)", wantPK.Name, wantPK.Type, gotPK.Name, gotPK.Type)
		return c
	}

	c.Passed = true
	c.Detail = fmt.Sprintf("%d fields, primary key %s", len(got.Fields), gotPK.Name)
	return c
}

// smokeSearch runs a zero-vector nearest-neighbor query on the first float
// vector field. It checks that search executes, not what it returns.
func (v *Verifier) smokeSearch(ctx context.Context, m *manifest.Manifest, target string) Check {
	c := Check{Name: "smoke_search"}

	var field schema.Field
	for _, f := range m.Schema.Fields {
		if f.Type == schema.FieldTypeFloatVector {
			field = f
			break
		}
	}
	if field.Name == "" {
		c.Passed = true
		c.Detail = "no float vector field to search"
		return c
	}

	hits, err := v.store.Search(ctx, target, field.Name, make([]float32, field.Dim), v.opts.SampleSize, "")
	if err != nil {
		c.Detail = fmt.Sprintf("search on %q: %v", field.Name, err)
		return c
	}

	c.Passed = true
	c.Detail = fmt.Sprintf("search on %q returned %d hits", field.Name, len(hits))
	return c
}

// smokeQuery runs an unfiltered query. It checks that the scalar read path
// executes.
func (v *Verifier) smokeQuery(ctx context.Context, target string) Check {
	c := Check{Name: "smoke_query"}

	rows, err := v.store.Query(ctx, target, "", v.opts.SampleSize)
	if err != nil {
		c.Detail = fmt.Sprintf("query: %v", err)
		return c
	}

	c.Passed = true
	c.Detail = fmt.Sprintf("query returned %d rows", len(rows))
	return c
}

// VerifyArtifact checks a stored backup without touching any collection
// store: the manifest loads and validates, the artifact checksum matches,
// the container decodes end to end, and its totals equal the manifest's.
//
// The checks build on each other, so the first failure ends the run.
func VerifyArtifact(ctx context.Context, cat *manifest.Catalog, name string, optFns ...func(o *Options)) (*Result, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.normalize()

	m, err := cat.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	res := &Result{Passed: true}
	record := func(c Check) bool {
		res.Checks = append(res.Checks, c)
		if !c.Passed {
			res.Passed = false
		}
		opts.Logger.DebugContext(ctx, "verification check",
			"backup", name,
			"check", c.Name,
			"passed", c.Passed,
			"detail", c.Detail,
		)
		return c.Passed
	}

	if !record(manifestValid(m)) {
		return res, nil
	}

	blob, err := cat.OpenArtifact(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("verify %s: open artifact: %w", name, err)
	}
	defer blob.Close()

	if !record(artifactChecksum(ctx, blob, m, opts.Resources)) {
		return res, nil
	}

	frames, rows, decodeCheck := decodeContainer(ctx, blob, opts.Resources)
	if !record(decodeCheck) {
		return res, nil
	}

	record(Check{
		Name:   "totals_match",
		Passed: frames == uint32(m.BatchCount) && rows == uint64(m.EntityCount),
		Detail: fmt.Sprintf("container has %d frames / %d rows, manifest says %d / %d",
			frames, rows, m.BatchCount, m.EntityCount),
	})

	return res, nil
}

func manifestValid(m *manifest.Manifest) Check {
	c := Check{Name: "manifest_valid"}
	if err := m.Validate(); err != nil {
		c.Detail = err.Error()
		return c
	}
	c.Passed = true
	c.Detail = fmt.Sprintf("backup %q of %q, %d entities", m.BackupName, m.Collection, m.EntityCount)
	return c
}

func artifactChecksum(ctx context.Context, blob blobReader, m *manifest.Manifest, rc *resource.Controller) Check {
	c := Check{Name: "artifact_checksum"}

	r, err := blob.NewReader(ctx)
	if err != nil {
		c.Detail = fmt.Sprintf("open reader: %v", err)
		return c
	}
	defer r.Close()

	if err := artifact.VerifyChecksum(resource.NewThrottledReader(ctx, r, rc), m.Checksum); err != nil {
		c.Detail = err.Error()
		return c
	}

	c.Passed = true
	c.Detail = m.Checksum
	return c
}

func decodeContainer(ctx context.Context, blob blobReader, rc *resource.Controller) (uint32, uint64, Check) {
	c := Check{Name: "container_decodes"}

	r, err := blob.NewReader(ctx)
	if err != nil {
		c.Detail = fmt.Sprintf("open reader: %v", err)
		return 0, 0, c
	}
	defer r.Close()

	ar, err := artifact.NewReader(resource.NewThrottledReader(ctx, r, rc))
	if err != nil {
		c.Detail = err.Error()
		return 0, 0, c
	}

	for {
		if _, err := ar.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			c.Detail = err.Error()
			return 0, 0, c
		}
	}

	c.Passed = true
	c.Detail = fmt.Sprintf("%d frames, %d rows", ar.Frames(), ar.Rows())
	return ar.Frames(), ar.Rows(), c
}

// blobReader is the slice of blobstore.Blob these checks need.
type blobReader interface {
	NewReader(ctx context.Context) (io.ReadCloser, error)
}
