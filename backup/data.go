package backup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/resource"
	"github.com/hupe1980/vecback/schema"
)

// Batch is one exported page of rows. Pages arrive at the emit callback in
// strictly ascending order starting at zero.
type Batch struct {
	Page uint32
	Rows []collection.Record
}

// ExportStats summarizes a completed data export.
type ExportStats struct {
	Rows    int64
	Batches int

	// ReducedFidelity is set when rows and vectors had to be fetched in
	// separate scans, so their pairing is not a single point-in-time read.
	ReducedFidelity bool
	Warnings        []string

	// Pages holds the scan page indexes that contributed rows. For a
	// healthy export this is the contiguous range 0..Batches-1; a gap
	// means a mid-scan page merged to zero rows.
	Pages *roaring.Bitmap
}

// Contiguous reports whether every scanned page contributed a batch, i.e.
// the pages form the range 0..Batches-1.
func (s *ExportStats) Contiguous() bool {
	if s.Batches == 0 {
		return s.Pages.IsEmpty()
	}
	return s.Pages.GetCardinality() == uint64(s.Batches) &&
		s.Pages.Minimum() == 0 &&
		s.Pages.Maximum() == uint32(s.Batches-1)
}

// DataExporter streams every entity of a collection as ordered batches.
//
// Pages are fetched with bounded parallelism and handed to the caller in
// ascending page order, so the resulting artifact layout is deterministic
// regardless of concurrency.
type DataExporter struct {
	pageSize  int
	workers   int
	resources *resource.Controller
	logger    *slog.Logger
}

// NewDataExporter creates a data exporter.
func NewDataExporter(optFns ...func(o *Options)) *DataExporter {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.normalize()

	return &DataExporter{
		pageSize:  opts.PageSize,
		workers:   opts.Concurrency,
		resources: opts.Resources,
		logger:    opts.Logger,
	}
}

// scanPlan decides how rows are fetched for one export.
type scanPlan struct {
	// single is true when one scan returns scalars and vectors together.
	single bool

	scalarFields []string
	vectorCall   []string // primary key plus vector fields, for the second scan
	vectorNames  []string
}

func planScan(store collection.Store, desc schema.Descriptor) scanPlan {
	if vs, ok := store.(collection.VectorScanner); ok && vs.ScanIncludesVectors() {
		return scanPlan{single: true}
	}

	plan := scanPlan{
		scalarFields: desc.ScalarFieldNames(),
	}
	if pk, ok := desc.PrimaryField(); ok {
		plan.vectorCall = append(plan.vectorCall, pk.Name)
	}
	for _, f := range desc.VectorFields() {
		plan.vectorCall = append(plan.vectorCall, f.Name)
		plan.vectorNames = append(plan.vectorNames, f.Name)
	}
	return plan
}

type fetchResult struct {
	page     uint32
	rows     []collection.Record
	warnings []string
	size     int64 // reserved memory while buffered
	last     bool  // the scan is exhausted at this page
}

// Export scans the collection page by page and emits batches in ascending
// page order. A page returning fewer than PageSize rows ends the scan; an
// empty collection yields zero batches and is still a valid export.
func (e *DataExporter) Export(ctx context.Context, store collection.Store, name string, desc schema.Descriptor, emit func(Batch) error) (*ExportStats, error) {
	plan := planScan(store, desc)

	stats := &ExportStats{Pages: roaring.New()}
	if !plan.single {
		stats.ReducedFidelity = true
	}

	base := uint32(0)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Fetch one window of pages in parallel, then drain it in order.
		// Termination is decided while draining: the first short page ends
		// the scan and later speculative pages are discarded.
		window := e.workers
		results := make([]fetchResult, window)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)

		for i := 0; i < window; i++ {
			page := base + uint32(i)
			g.Go(func() error {
				if err := e.resources.AcquireFetch(gctx); err != nil {
					return err
				}
				defer e.resources.ReleaseFetch()

				res, err := e.fetchPage(gctx, store, name, plan, page)
				if err != nil {
					return err
				}

				res.size = collection.ApproxPageSize(res.rows)
				if err := e.resources.AcquireMemory(res.size); err != nil {
					res.size = 0
					return exportPageErr(name, int(page), err)
				}

				results[page-base] = res
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			for i := range results {
				e.resources.ReleaseMemory(results[i].size)
			}
			return nil, err
		}

		stop := false
		for i := range results {
			res := &results[i]
			if stop {
				e.resources.ReleaseMemory(res.size)
				continue
			}

			stats.Warnings = append(stats.Warnings, res.warnings...)

			if len(res.rows) > 0 {
				// Batches are numbered by emission order so the artifact
				// layout stays contiguous even if a scan page merged empty.
				if err := emit(Batch{Page: uint32(stats.Batches), Rows: res.rows}); err != nil {
					for j := i; j < len(results); j++ {
						e.resources.ReleaseMemory(results[j].size)
					}
					return nil, err
				}
				stats.Rows += int64(len(res.rows))
				stats.Batches++
				stats.Pages.Add(res.page)

				e.logger.DebugContext(ctx, "page exported",
					"collection", name,
					"page", res.page,
					"rows", len(res.rows),
				)
			}

			e.resources.ReleaseMemory(res.size)

			if res.last {
				stop = true
			}
		}

		if stop {
			break
		}
		base += uint32(window)
	}

	e.logger.InfoContext(ctx, "data export complete",
		"collection", name,
		"rows", stats.Rows,
		"batches", stats.Batches,
		"reduced_fidelity", stats.ReducedFidelity,
	)

	return stats, nil
}

// fetchPage reads one page. In two-scan mode the scalar page and the vector
// page are fetched at the same offset and merged by position; when their
// lengths diverge only the aligned prefix survives, with a warning.
func (e *DataExporter) fetchPage(ctx context.Context, store collection.Store, name string, plan scanPlan, page uint32) (fetchResult, error) {
	res := fetchResult{page: page}
	offset := int(page) * e.pageSize

	if err := e.resources.AcquireScan(ctx, e.pageSize); err != nil {
		return res, err
	}

	if plan.single {
		rows, err := store.ScanPage(ctx, name, offset, e.pageSize, nil)
		if err != nil {
			return res, exportPageErr(name, int(page), err)
		}
		res.rows = rows
		res.last = len(rows) < e.pageSize
		return res, nil
	}

	scalars, err := store.ScanPage(ctx, name, offset, e.pageSize, plan.scalarFields)
	if err != nil {
		return res, exportPageErr(name, int(page), err)
	}
	// The scalar scan drives pagination; a divergent vector scan must not
	// end the export early.
	res.last = len(scalars) < e.pageSize

	if err := e.resources.AcquireScan(ctx, e.pageSize); err != nil {
		return res, err
	}

	vectors, err := store.ScanPage(ctx, name, offset, e.pageSize, plan.vectorCall)
	if err != nil {
		return res, exportPageErr(name, int(page), err)
	}

	n := len(scalars)
	if len(vectors) != len(scalars) {
		if len(vectors) < n {
			n = len(vectors)
		}
		warning := fmt.Sprintf("page %d: scalar scan returned %d rows, vector scan returned %d; keeping the aligned prefix of %d",
			page, len(scalars), len(vectors), n)
		res.warnings = append(res.warnings, warning)
		e.logger.WarnContext(ctx, "scan divergence",
			"collection", name,
			"page", page,
			"scalar_rows", len(scalars),
			"vector_rows", len(vectors),
		)
	}

	rows := make([]collection.Record, n)
	for i := 0; i < n; i++ {
		row := scalars[i]
		for _, f := range plan.vectorNames {
			if v, ok := vectors[i][f]; ok {
				row[f] = v
			}
		}
		rows[i] = row
	}
	res.rows = rows

	return res, nil
}
