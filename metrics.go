package vecback

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    backupCounter   prometheus.Counter
//	    backupHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordBackup(entities, bytes int64, duration time.Duration, err error) {
//	    p.backupCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordBackup is called after each backup. entities and bytes are the
	// exported row count and artifact size, err is nil if successful.
	RecordBackup(entities, bytes int64, duration time.Duration, err error)

	// RecordRestore is called after each restore. inserted is the number of
	// rows written, failed the rows lost with exhausted retries.
	RecordRestore(inserted, failed int64, duration time.Duration, err error)

	// RecordVerify is called after each artifact or collection verification.
	RecordVerify(passed bool, duration time.Duration, err error)

	// RecordDrill is called after each recovery drill.
	RecordDrill(passed bool, duration time.Duration, err error)

	// RecordDelete is called after each backup deletion.
	RecordDelete(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBackup(int64, int64, time.Duration, error)  {}
func (NoopMetricsCollector) RecordRestore(int64, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordVerify(bool, time.Duration, error)          {}
func (NoopMetricsCollector) RecordDrill(bool, time.Duration, error)           {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)                {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BackupCount       atomic.Int64
	BackupErrors      atomic.Int64
	BackupEntities    atomic.Int64
	BackupBytes       atomic.Int64
	BackupTotalNanos  atomic.Int64
	RestoreCount      atomic.Int64
	RestoreErrors     atomic.Int64
	RestoreRows       atomic.Int64
	RestoreFailedRows atomic.Int64
	RestoreTotalNanos atomic.Int64
	VerifyCount       atomic.Int64
	VerifyFailures    atomic.Int64
	VerifyErrors      atomic.Int64
	DrillCount        atomic.Int64
	DrillFailures     atomic.Int64
	DrillErrors       atomic.Int64
	DeleteCount       atomic.Int64
	DeleteErrors      atomic.Int64
}

// RecordBackup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBackup(entities, bytes int64, duration time.Duration, err error) {
	b.BackupCount.Add(1)
	b.BackupTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BackupErrors.Add(1)
		return
	}
	b.BackupEntities.Add(entities)
	b.BackupBytes.Add(bytes)
}

// RecordRestore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRestore(inserted, failed int64, duration time.Duration, err error) {
	b.RestoreCount.Add(1)
	b.RestoreTotalNanos.Add(duration.Nanoseconds())
	b.RestoreRows.Add(inserted)
	b.RestoreFailedRows.Add(failed)
	if err != nil {
		b.RestoreErrors.Add(1)
	}
}

// RecordVerify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordVerify(passed bool, duration time.Duration, err error) {
	b.VerifyCount.Add(1)
	if err != nil {
		b.VerifyErrors.Add(1)
		return
	}
	if !passed {
		b.VerifyFailures.Add(1)
	}
}

// RecordDrill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDrill(passed bool, duration time.Duration, err error) {
	b.DrillCount.Add(1)
	if err != nil {
		b.DrillErrors.Add(1)
		return
	}
	if !passed {
		b.DrillFailures.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BackupCount:       b.BackupCount.Load(),
		BackupErrors:      b.BackupErrors.Load(),
		BackupEntities:    b.BackupEntities.Load(),
		BackupBytes:       b.BackupBytes.Load(),
		BackupAvgNanos:    avgNanos(b.BackupTotalNanos.Load(), b.BackupCount.Load()),
		RestoreCount:      b.RestoreCount.Load(),
		RestoreErrors:     b.RestoreErrors.Load(),
		RestoreRows:       b.RestoreRows.Load(),
		RestoreFailedRows: b.RestoreFailedRows.Load(),
		RestoreAvgNanos:   avgNanos(b.RestoreTotalNanos.Load(), b.RestoreCount.Load()),
		VerifyCount:       b.VerifyCount.Load(),
		VerifyFailures:    b.VerifyFailures.Load(),
		VerifyErrors:      b.VerifyErrors.Load(),
		DrillCount:        b.DrillCount.Load(),
		DrillFailures:     b.DrillFailures.Load(),
		DrillErrors:       b.DrillErrors.Load(),
		DeleteCount:       b.DeleteCount.Load(),
		DeleteErrors:      b.DeleteErrors.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BackupCount       int64
	BackupErrors      int64
	BackupEntities    int64
	BackupBytes       int64
	BackupAvgNanos    int64
	RestoreCount      int64
	RestoreErrors     int64
	RestoreRows       int64
	RestoreFailedRows int64
	RestoreAvgNanos   int64
	VerifyCount       int64
	VerifyFailures    int64
	VerifyErrors      int64
	DrillCount        int64
	DrillFailures     int64
	DrillErrors       int64
	DeleteCount       int64
	DeleteErrors      int64
}
