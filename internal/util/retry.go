package util

import (
	"context"
	"fmt"
	"time"
)

// maxRetryDelay caps the doubling backoff so a long retry chain against a
// slow market-data endpoint never sleeps for minutes.
const maxRetryDelay = 30 * time.Second

// Retry runs fn until it succeeds, up to maxAttempts times. The wait between
// attempts starts at baseDelay and doubles after each failure, capped at
// maxRetryDelay. Cancelling the context aborts the wait; the final failure is
// returned wrapped with the attempt count.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("attempt %d/%d: %w", attempt, maxAttempts, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
