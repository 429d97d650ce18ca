// Package retry provides a bounded retry-with-backoff helper shared by every
// upstream network call.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config controls retry behavior.
type Config struct {
	Attempts  int           // Number of retries after the first attempt
	BaseDelay time.Duration // First backoff delay; doubles each attempt
	MaxDelay  time.Duration // Cap for the backoff delay (0 = no cap)
}

// DefaultConfig matches the upstream API's tolerance: three retries starting
// at half a second.
var DefaultConfig = Config{
	Attempts:  3,
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  30 * time.Second,
}

// Do runs fn up to cfg.Attempts+1 times. Any error triggers a retry after an
// exponential backoff delay; the last error is returned once attempts are
// exhausted. Context cancellation aborts immediately, both between attempts
// and while sleeping.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.Attempts < 0 {
		cfg.Attempts = 0
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.Attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(cfg, attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", cfg.Attempts+1, lastErr)
}

// backoffDelay calculates the exponential backoff delay for an attempt.
// Exponential backoff: baseDelay * 2^(attempt-1), capped at MaxDelay.
func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
