// Package work provides the shared bounded worker pool and progress reporting
// used by the fetch and enrichment stages.
package work

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Pool executes independent, stateless tasks with a bounded number of
// concurrent workers. Tasks never depend on each other's results, so no
// ordering is guaranteed between completions; results are index-addressed.
type Pool struct {
	width         int
	throttleEvery int
	throttleDelay time.Duration
}

// NewPool creates a pool with the given worker width (minimum 1).
func NewPool(width int) *Pool {
	if width < 1 {
		width = 1
	}
	return &Pool{width: width}
}

// WithThrottle makes the pool sleep for delay after every N completed tasks.
// This caps the sustained request rate against upstream rate limits.
// every <= 0 disables throttling.
func (p *Pool) WithThrottle(every int, delay time.Duration) *Pool {
	p.throttleEvery = every
	p.throttleDelay = delay
	return p
}

// Width returns the configured worker width.
func (p *Pool) Width() int {
	return p.width
}

// Run executes fn for every index in [0, total) using at most width workers.
// The returned slice is index-addressed: errs[i] is the error of task i, nil
// on success. Already-completed tasks are never discarded when siblings fail.
// Progress (if non-nil) is reported as tasks complete.
func (p *Pool) Run(ctx context.Context, total int, progress *ProgressReporter, fn func(ctx context.Context, idx int) error) []error {
	errs := make([]error, total)
	if total == 0 {
		return errs
	}

	width := p.width
	if width > total {
		width = total
	}

	sem := make(chan struct{}, width)
	var wg sync.WaitGroup
	var completed int64

	for i := 0; i < total; i++ {
		// A cancelled context stops launching new tasks; in-flight tasks
		// finish and their results are kept.
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer func() {
				<-sem
				wg.Done()
			}()

			errs[idx] = fn(ctx, idx)

			done := atomic.AddInt64(&completed, 1)
			progress.Report(int(done), total, "")

			if p.throttleEvery > 0 && done%int64(p.throttleEvery) == 0 {
				select {
				case <-time.After(p.throttleDelay):
				case <-ctx.Done():
				}
			}
		}(i)
	}

	wg.Wait()
	return errs
}
