package utils

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheLockPath(t *testing.T) {
	if got := CacheLockPath("/data/geocode.sqlite"); got != "/data/geocode.sqlite.lock" {
		t.Fatalf("CacheLockPath() = %q", got)
	}
	p, err := CachePath("")
	if err != nil {
		t.Fatalf("CachePath: %v", err)
	}
	if filepath.Base(p) != "geocode.sqlite" || filepath.Base(filepath.Dir(p)) != "spotscope" {
		t.Fatalf("default cache path = %q", p)
	}
}

func TestCacheLockWaitsForOtherRun(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "geocode.sqlite")

	first, err := NewCacheLock(cache)
	if err != nil {
		t.Fatalf("NewCacheLock: %v", err)
	}
	if err := first.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := os.Stat(CacheLockPath(cache)); err != nil {
		t.Fatalf("lock file not created: %v", err)
	}

	second, err := NewCacheLock(cache)
	if err != nil {
		t.Fatalf("NewCacheLock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := second.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Acquire while held = %v, want deadline exceeded", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := second.Acquire(context.Background()); err != nil {
		t.Fatalf("second Acquire after release: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
