// Package ratelimit provides fixed-window request counting per
// (identity, route) pair, independent of the business quota. It is the
// coarse abuse shield in front of the allowance check.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/lingora-app/lingora/internal/store"
)

const keyPrefix = "ratelimit:"

// Window pairs a fixed window size with its request limit.
type Window struct {
	Size  time.Duration
	Limit int
}

// Result is the outcome of a multi-window check.
type Result struct {
	Allowed bool
	// Remaining per configured window, in the order the windows were
	// given. Zero means the window is exhausted.
	Remaining []int
	// RetryAfter is the shortest time until an exceeded window expires.
	// Zero when allowed.
	RetryAfter time.Duration
}

// Limiter counts every attempt against each configured window. Counts are
// never rolled back on denial — retries burn budget too, which is the point
// of abuse protection. Window reset is delegated entirely to key TTL; there
// is no timer and no cleanup.
type Limiter struct {
	store   store.Store
	windows []Window
}

func NewLimiter(st store.Store, windows ...Window) *Limiter {
	return &Limiter{store: st, windows: windows}
}

// Check increments every window's counter for the (identity, route) pair
// and denies if any post-increment count exceeds its limit.
func (l *Limiter) Check(ctx context.Context, identity, route string) (Result, error) {
	res := Result{Allowed: true, Remaining: make([]int, 0, len(l.windows))}

	for _, w := range l.windows {
		count, err := l.store.IncrBy(ctx, windowKey(identity, route, w.Size), 1, w.Size)
		if err != nil {
			return Result{}, fmt.Errorf("counting %s window: %w", w.Size, err)
		}

		remaining := w.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		res.Remaining = append(res.Remaining, remaining)

		if count > int64(w.Limit) {
			res.Allowed = false
			ttl, err := l.store.TTL(ctx, windowKey(identity, route, w.Size))
			if err != nil {
				return Result{}, fmt.Errorf("reading %s window ttl: %w", w.Size, err)
			}
			if res.RetryAfter == 0 || ttl < res.RetryAfter {
				res.RetryAfter = ttl
			}
		}
	}

	return res, nil
}

// Reset clears all windows for the pair. Administrative use and tests only.
func (l *Limiter) Reset(ctx context.Context, identity, route string) error {
	for _, w := range l.windows {
		if err := l.store.Del(ctx, windowKey(identity, route, w.Size)); err != nil {
			return fmt.Errorf("resetting %s window: %w", w.Size, err)
		}
	}
	return nil
}

func windowKey(identity, route string, size time.Duration) string {
	return fmt.Sprintf("%s%s:%s:%d", keyPrefix, identity, route, int(size.Seconds()))
}
