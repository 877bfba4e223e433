package importer

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ============================================================================
// importLimiter Tests
// ============================================================================

func TestImportLimiter_AcquireRelease(t *testing.T) {
	l := newImportLimiter(2, time.Second)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}

	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestImportLimiter_RejectsWhenFull(t *testing.T) {
	l := newImportLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	err := l.Acquire(ctx)
	if !errors.Is(err, ErrTooManyImports) {
		t.Fatalf("expected ErrTooManyImports, got %v", err)
	}
}

func TestImportLimiter_ContextCancellation(t *testing.T) {
	l := newImportLimiter(1, time.Minute)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := l.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestImportLimiter_ReleaseWithoutAcquire(t *testing.T) {
	l := newImportLimiter(1, time.Second)

	// Must not panic or corrupt the slot count.
	l.Release()

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after spurious release failed: %v", err)
	}
}

func TestImportLimiter_Defaults(t *testing.T) {
	l := newImportLimiter(0, 0)

	if cap(l.semaphore) != DefaultMaxConcurrentImports {
		t.Errorf("expected default capacity %d, got %d", DefaultMaxConcurrentImports, cap(l.semaphore))
	}
	if l.maxWait != DefaultMaxWaitTime {
		t.Errorf("expected default wait %v, got %v", DefaultMaxWaitTime, l.maxWait)
	}
}
