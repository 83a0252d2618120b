package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces operations evenly so at most perMinute of them start in
// any one-minute window. Callers reserve the next free slot under the lock
// and then sleep outside it, so concurrent callers queue in FIFO order of
// their Wait calls.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{interval: time.Minute / time.Duration(perMinute)}
}

// Wait blocks until the caller's slot arrives or the context is cancelled.
// The first call never blocks.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	wait := rl.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	rl.next = now.Add(wait + rl.interval)
	rl.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
