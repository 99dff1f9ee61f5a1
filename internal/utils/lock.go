package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetry is how often a waiting run polls the cache lock.
const lockRetry = 250 * time.Millisecond

// CacheLock keeps two geocode runs from writing the same cache file at once.
// The lock file sits next to the cache as <cache>.lock.
type CacheLock struct {
	fl    *flock.Flock
	cache string
}

// CacheLockPath returns the lock file guarding cachePath.
func CacheLockPath(cachePath string) string {
	return cachePath + ".lock"
}

// NewCacheLock resolves cachePath like CachePath does and prepares its lock.
func NewCacheLock(cachePath string) (*CacheLock, error) {
	abs, err := CachePath(cachePath)
	if err != nil {
		return nil, fmt.Errorf("resolving geocode cache path: %w", err)
	}
	return &CacheLock{fl: flock.New(CacheLockPath(abs)), cache: abs}, nil
}

// Acquire takes the lock. When another run holds it, Acquire logs once and waits until the
// lock is free or ctx is done.
func (l *CacheLock) Acquire(ctx context.Context) error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("locking geocode cache %s: %w", l.cache, err)
	}
	if ok {
		return nil
	}

	Log.Warnf("Geocode cache %s is in use by another run, waiting...", l.cache)
	ok, err = l.fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("waiting for geocode cache %s: %w", l.cache, err)
	}
	if !ok {
		return fmt.Errorf("geocode cache %s is still locked", l.cache)
	}
	return nil
}

// Release frees the lock. Releasing a lock whose file vanished is not an error.
func (l *CacheLock) Release() error {
	if err := l.fl.Unlock(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlocking geocode cache %s: %w", l.cache, err)
	}
	return nil
}

// CachePath resolves the geocode cache file, ~/.config/spotscope/geocode.sqlite when path is empty.
func CachePath(path string) (string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "spotscope", "geocode.sqlite"), nil
	}
	return filepath.Abs(path)
}
