package util

import (
	"context"
	"fmt"
	"time"
)

// Retry runs fn up to attempts times, sleeping delay before the first
// retry and growing the wait linearly on each subsequent one, so a
// briefly unreachable exchange gets progressively more room. It returns
// nil on the first success; when every attempt fails the last error is
// returned wrapped with the attempt count. Cancelling ctx ends the wait
// between attempts early.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var last error
	for n := 1; n <= attempts; n++ {
		if last = fn(); last == nil {
			return nil
		}
		if n == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(n) * delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, last)
}
