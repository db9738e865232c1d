package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a buffer reservation would push
// managed memory past the configured limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for buffered page data.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxConcurrentFetches is the process-wide cap on in-flight page
	// fetches across all running exports. If 0, defaults to 8.
	MaxConcurrentFetches int64

	// IOLimitBytesPerSec is the maximum throughput for artifact reads and
	// writes. If 0, unlimited.
	IOLimitBytesPerSec int64

	// ScanRowsPerSec limits how many rows per second exports may pull
	// from the source store. If 0, unlimited.
	ScanRowsPerSec int64
}

// Controller manages shared resources (memory, fetch concurrency, IO).
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Fetch concurrency
	fetchSem *semaphore.Weighted

	// IO
	ioLimiter   *rate.Limiter
	scanLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 8
	}

	c := &Controller{
		cfg:      cfg,
		fetchSem: semaphore.NewWeighted(cfg.MaxConcurrentFetches),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	if cfg.ScanRowsPerSec > 0 {
		c.scanLimiter = rate.NewLimiter(rate.Limit(cfg.ScanRowsPerSec), int(cfg.ScanRowsPerSec))
	}

	return c
}

// AcquireMemory attempts to reserve memory for buffered page data.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
// Non-blocking; callers control retry policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current managed memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireFetch reserves a page-fetch slot, blocking until one is free or
// the context is cancelled.
func (c *Controller) AcquireFetch(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.fetchSem.Acquire(ctx, 1)
}

// ReleaseFetch releases a page-fetch slot.
func (c *Controller) ReleaseFetch() {
	if c == nil {
		return
	}
	c.fetchSem.Release(1)
}

// TryAcquireFetch reserves a page-fetch slot without blocking.
func (c *Controller) TryAcquireFetch() bool {
	if c == nil {
		return true
	}
	return c.fetchSem.TryAcquire(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	// WaitN cannot admit bursts larger than the limiter's burst size, so
	// split oversized requests.
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// TryAcquireIO attempts to acquire IO tokens without blocking.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), bytes)
}

// AcquireScan waits until the scan limit allows fetching rows more rows
// from the source store.
func (c *Controller) AcquireScan(ctx context.Context, rows int) error {
	if c == nil || c.scanLimiter == nil {
		return nil
	}

	burst := c.scanLimiter.Burst()
	for rows > 0 {
		n := rows
		if n > burst {
			n = burst
		}
		if err := c.scanLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		rows -= n
	}
	return nil
}
