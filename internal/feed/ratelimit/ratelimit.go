// Package ratelimit throttles calls to an upstream feed.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"bullionrates/internal/feed"
)

// MinInterval spaces downloads at least Interval apart by start time.
// Each call reserves the next free slot before waiting, so concurrent
// callers are released one Interval after another. A canceled caller
// keeps its slot.
type MinInterval struct {
	F        feed.Feed
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Name() string { return m.F.Name() }

// reserve returns the start time granted to the caller.
func (m *MinInterval) reserve() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := time.Now()
	if m.next.After(at) {
		at = m.next
	}
	m.next = at.Add(m.Interval)
	return at
}

func (m *MinInterval) Download(ctx context.Context, symbols []string, period, interval string) (feed.Table, error) {
	if m.Interval > 0 {
		if err := sleepUntil(ctx, m.reserve()); err != nil {
			return nil, err
		}
	}
	return m.F.Download(ctx, symbols, period, interval)
}

func sleepUntil(ctx context.Context, at time.Time) error {
	wait := time.Until(at)
	if wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wrap applies the configured limits to f. Zero values disable a limit.
func Wrap(f feed.Feed, rpm, burst int, minInterval time.Duration) feed.Feed {
	if rpm > 0 {
		f = &TokenBucketFeed{F: f, TB: PerMinute(rpm, burst)}
	}
	if minInterval > 0 {
		f = &MinInterval{F: f, Interval: minInterval}
	}
	return f
}
