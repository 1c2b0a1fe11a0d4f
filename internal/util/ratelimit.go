package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces calls evenly across the minute. The trade stream
// can signal a recent-trades refresh hundreds of times a second; the
// limiter turns that into an even cadence of REST requests that stays
// inside the exchange's budget.
type RateLimiter struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewRateLimiter allows perMinute calls per minute, evenly spaced.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{interval: time.Minute / time.Duration(perMinute)}
}

// Wait reserves the next slot and blocks until it opens or ctx is
// cancelled. The first call never waits.
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
