package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gofrs/flock"

	"github.com/hupe1980/vecback/blobstore/s3"
)

// lockTimeout bounds how long a mutating command waits for the
// cross-process guard before giving up.
const lockTimeout = 5 * time.Second

// acquireLock takes the guard excluding concurrent mutating commands and
// returns a func releasing it. The s3 backend with a lease table uses a
// DynamoDB lease, which also excludes other machines sharing the bucket;
// everything else uses a local file lock.
func acquireLock(ctx context.Context, cfg *Config, timeout time.Duration) (func(), error) {
	if cfg.Backend == "s3" && cfg.S3.LeaseTable != "" {
		return acquireLease(ctx, cfg, timeout)
	}
	return acquireFileLock(cfg, timeout)
}

func acquireFileLock(cfg *Config, timeout time.Duration) (func(), error) {
	lockFile, err := lockPath(cfg)
	if err != nil {
		return nil, err
	}

	l := flock.New(lockFile)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("another vecback operation is in progress (lock: %s)", lockFile)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func acquireLease(ctx context.Context, cfg *Config, timeout time.Duration) (func(), error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.S3.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("cannot load AWS config: %w", err)
	}

	leases := s3.NewLeaseStore(dynamodb.NewFromConfig(awsCfg),
		cfg.S3.LeaseTable, path.Join(cfg.S3.Bucket, cfg.S3.Prefix))

	deadline := time.Now().Add(timeout)
	for {
		lease, err := leases.Acquire(ctx, "mutate")
		if err == nil {
			// Release even when the command was cancelled.
			return func() { _ = lease.Release(context.WithoutCancel(ctx)) }, nil
		}
		if !errors.Is(err, s3.ErrLeaseHeld) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("another vecback operation is in progress (lease table: %s)", cfg.S3.LeaseTable)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// lockPath determines the lock file location. The local backend locks
// inside its backup root so independent roots don't contend; remote
// backends fall back to a per-user lock.
func lockPath(cfg *Config) (string, error) {
	if cfg.Backend == "" || cfg.Backend == "local" {
		root, err := ExpandPath(cfg.Root)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", err
		}
		return filepath.Join(root, ".vecback.lock"), nil
	}

	if cacheDir, err := os.UserCacheDir(); err == nil && cacheDir != "" {
		dir := filepath.Join(cacheDir, "vecback")
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return filepath.Join(dir, "vecback.lock"), nil
		}
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dir := filepath.Join(home, ".vecback")
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return filepath.Join(dir, "vecback.lock"), nil
		}
	}
	return "", fmt.Errorf("cannot determine writable lock directory")
}
