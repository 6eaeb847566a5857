package mirror

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgets.lock")

	first, err := AcquireLock(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := AcquireLock(context.Background(), path, 150*time.Millisecond); err == nil {
		t.Fatalf("expected second acquire to time out")
	}

	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	second, err := AcquireLock(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = second.Release()
}

func TestLockHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgets.lock")
	held, err := AcquireLock(context.Background(), path, 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := AcquireLock(ctx, path, 0); err == nil {
		t.Fatalf("expected canceled context to abort the wait")
	}
}
