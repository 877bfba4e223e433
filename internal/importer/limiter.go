package importer

// limiter.go implements concurrency control for import submission.
//
// The limiter uses a semaphore pattern to restrict parallel submissions to
// a configurable maximum. When all slots are occupied, new requests wait up
// to maxWait before failing with ErrTooManyImports.

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyImports is returned when all submission slots are occupied and
// the wait timeout expires. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many imports in progress, please try again later")

// DefaultMaxConcurrentImports is the default limit for parallel submissions.
const DefaultMaxConcurrentImports = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// importLimiter bounds the number of concurrently running submissions.
type importLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration
}

func newImportLimiter(maxConcurrent int, maxWait time.Duration) *importLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &importLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire blocks until a slot is free, the wait timeout expires, or ctx is
// cancelled. The caller must Release exactly once per successful Acquire.
func (l *importLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}
}

// Release frees a slot acquired with Acquire.
func (l *importLimiter) Release() {
	select {
	case <-l.semaphore:
	default:
	}
}
