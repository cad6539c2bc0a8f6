package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bullionrates/internal/feed"
	"bullionrates/internal/feed/ratelimit"
)

type stubFeed struct{ calls atomic.Int32 }

func (s *stubFeed) Name() string { return "stub" }

func (s *stubFeed) Download(context.Context, []string, string, string) (feed.Table, error) {
	s.calls.Add(1)
	return feed.Table{}, nil
}

func TestTokenBucketFeed_Burst(t *testing.T) {
	t.Parallel()

	// Arrange: 1 token per minute, burst 2
	inner := &stubFeed{}
	f := &ratelimit.TokenBucketFeed{F: inner, TB: ratelimit.PerMinute(1, 2)}

	// Act: the burst passes at once
	for range 2 {
		_, err := f.Download(t.Context(), nil, "1d", "1m")
		require.NoError(t, err)
	}

	// Assert: the third call waits and gives up with the context
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Download(ctx, nil, "1d", "1m")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.EqualValues(t, 2, inner.calls.Load())
	require.Equal(t, "stub", f.Name())
}

func TestTokenBucket_Refills(t *testing.T) {
	t.Parallel()

	tb := ratelimit.NewTokenBucket(100, 1)
	require.NoError(t, tb.Wait(t.Context()))

	start := time.Now()
	require.NoError(t, tb.Wait(t.Context()))
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestMinInterval(t *testing.T) {
	t.Parallel()

	inner := &stubFeed{}
	f := &ratelimit.MinInterval{F: inner, Interval: 30 * time.Millisecond}

	start := time.Now()
	for range 2 {
		_, err := f.Download(t.Context(), nil, "1d", "1m")
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := f.Download(ctx, nil, "1d", "1m")
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 2, inner.calls.Load())
}

func TestMinInterval_ConcurrentCallersAreSpaced(t *testing.T) {
	t.Parallel()

	// Arrange
	inner := &stubFeed{}
	f := &ratelimit.MinInterval{F: inner, Interval: 50 * time.Millisecond}

	// Act: three callers arrive together
	start := time.Now()
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Download(context.Background(), nil, "1d", "1m")
			if err != nil {
				t.Errorf("download: %v", err)
			}
		}()
	}
	wg.Wait()

	// Assert: the third start is two intervals after the first
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	require.EqualValues(t, 3, inner.calls.Load())
}

func TestTokenBucket_ConcurrentWaitersQueue(t *testing.T) {
	t.Parallel()

	tb := ratelimit.NewTokenBucket(20, 1)

	start := time.Now()
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tb.Wait(context.Background()); err != nil {
				t.Errorf("wait: %v", err)
			}
		}()
	}
	wg.Wait()

	// one token immediately, then one every 50ms
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestTokenBucket_CanceledWaiterReturnsToken(t *testing.T) {
	t.Parallel()

	tb := ratelimit.NewTokenBucket(10, 1)
	require.NoError(t, tb.Wait(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, tb.Wait(ctx), context.Canceled)

	// Without the refund this waiter would queue behind the canceled one.
	start := time.Now()
	require.NoError(t, tb.Wait(t.Context()))
	require.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestWrap(t *testing.T) {
	t.Parallel()

	inner := &stubFeed{}
	require.Same(t, feed.Feed(inner), ratelimit.Wrap(inner, 0, 0, 0))

	wrapped := ratelimit.Wrap(inner, 30, 3, time.Second)
	_, isMin := wrapped.(*ratelimit.MinInterval)
	require.True(t, isMin)
	require.Equal(t, "stub", wrapped.Name())
}
