package ingest

import (
	"context"
	"time"
)

// Source feeds records from an external stream into a Coordinator until its
// context is cancelled.
type Source interface {
	Run(ctx context.Context) error
	Close() error
}

const (
	retryBase = time.Second
	retryMax  = 30 * time.Second
)

// backoff returns the wait before retry attempt n (starting at 0).
func backoff(n int) time.Duration {
	d := retryBase
	for i := 0; i < n && d < retryMax; i++ {
		d *= 2
	}
	return min(d, retryMax)
}

// sleep waits for d or until ctx is done. It reports whether the wait
// completed.
var sleep = func(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
