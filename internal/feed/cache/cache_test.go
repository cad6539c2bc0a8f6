package cache

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"bullionrates/internal/feed"
)

type countingFeed struct {
	calls   atomic.Int32
	mu      sync.Mutex
	asked   [][]string
	err     error
	release chan struct{}
}

func (f *countingFeed) Name() string { return "fake" }

func (f *countingFeed) Download(_ context.Context, symbols []string, _, _ string) (feed.Table, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.asked = append(f.asked, append([]string(nil), symbols...))
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	t := feed.Table{}
	for i, s := range symbols {
		v := float64(i + 1)
		t[s] = []feed.Observation{{Symbol: s, Time: time.Unix(int64(i), 0), Close: &v}}
	}
	return t, nil
}

func TestFeed_CachesPerSymbol(t *testing.T) {
	t.Parallel()

	// Arrange
	inner := &countingFeed{}
	c := &Feed{F: inner, Store: NewMemoryStore(0), TTL: time.Minute}

	// Act: first call misses everything, second only the new symbol
	t1, err := c.Download(t.Context(), []string{"GC=F", "SI=F"}, "1d", "1m")
	require.NoError(t, err)
	t2, err := c.Download(t.Context(), []string{"GC=F", "SI=F", "USDINR=X"}, "1d", "1m")
	require.NoError(t, err)
	t3, err := c.Download(t.Context(), []string{"SI=F", "USDINR=X"}, "1d", "1m")
	require.NoError(t, err)

	// Assert
	require.EqualValues(t, 2, inner.calls.Load())
	require.Equal(t, [][]string{{"GC=F", "SI=F"}, {"USDINR=X"}}, inner.asked)
	require.Len(t, t1, 2)
	require.Len(t, t2, 3)
	require.Len(t, t3, 2)
	require.Equal(t, "fake", c.Name())
}

func TestFeed_KeyIncludesPeriodAndInterval(t *testing.T) {
	t.Parallel()

	inner := &countingFeed{}
	c := &Feed{F: inner, Store: NewMemoryStore(0), TTL: time.Minute}

	_, err := c.Download(t.Context(), []string{"GC=F"}, "1d", "1m")
	require.NoError(t, err)
	_, err = c.Download(t.Context(), []string{"GC=F"}, "5d", "1h")
	require.NoError(t, err)

	require.EqualValues(t, 2, inner.calls.Load())
}

func TestFeed_Disabled(t *testing.T) {
	t.Parallel()

	inner := &countingFeed{}
	c := &Feed{F: inner, Store: NewMemoryStore(0)}

	for range 3 {
		_, err := c.Download(t.Context(), []string{"GC=F"}, "1d", "1m")
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, inner.calls.Load())
}

func TestFeed_ErrorFallsBackToCached(t *testing.T) {
	t.Parallel()

	inner := &countingFeed{}
	c := &Feed{F: inner, Store: NewMemoryStore(0), TTL: time.Minute}

	_, err := c.Download(t.Context(), []string{"GC=F"}, "1d", "1m")
	require.NoError(t, err)

	inner.err = errors.New("upstream down")
	table, err := c.Download(t.Context(), []string{"GC=F", "SI=F"}, "1d", "1m")
	require.NoError(t, err)
	require.Len(t, table, 1)
	require.Contains(t, table, "GC=F")

	_, err = c.Download(t.Context(), []string{"SI=F"}, "1d", "1m")
	require.ErrorContains(t, err, "upstream down")
}

func TestFeed_SharesConcurrentMisses(t *testing.T) {
	t.Parallel()

	inner := &countingFeed{release: make(chan struct{})}
	c := &Feed{F: inner, Store: NewMemoryStore(0), TTL: time.Minute}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table, err := c.Download(context.Background(), []string{"GC=F"}, "1d", "1m")
			if err != nil || len(table) != 1 {
				t.Errorf("unexpected result: %v %v", table, err)
			}
		}()
	}

	// Let the callers pile up behind the first download.
	require.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	require.LessOrEqual(t, inner.calls.Load(), int32(5))
	require.GreaterOrEqual(t, inner.calls.Load(), int32(1))
}

// slowFeed honors cancellation of the context it is given.
type slowFeed struct {
	calls atomic.Int32
	delay time.Duration
}

func (f *slowFeed) Name() string { return "slow" }

func (f *slowFeed) Download(ctx context.Context, symbols []string, _, _ string) (feed.Table, error) {
	f.calls.Add(1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(f.delay):
	}
	v := 1.0
	t := feed.Table{}
	for _, s := range symbols {
		t[s] = []feed.Observation{{Symbol: s, Time: time.Unix(0, 0), Close: &v}}
	}
	return t, nil
}

func TestFeed_CanceledCallerDoesNotFailSharedDownload(t *testing.T) {
	t.Parallel()

	// Arrange
	inner := &slowFeed{delay: 100 * time.Millisecond}
	c := &Feed{F: inner, Store: NewMemoryStore(0), TTL: time.Minute, Timeout: time.Second}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Download(firstCtx, []string{"GC=F"}, "1d", "1m")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		table feed.Table
		err   error
	}
	second := make(chan result, 1)
	go func() {
		table, err := c.Download(context.Background(), []string{"GC=F"}, "1d", "1m")
		second <- result{table, err}
	}()

	// Act: the first caller goes away mid-download
	time.Sleep(10 * time.Millisecond)
	cancel()

	// Assert
	require.ErrorIs(t, <-firstErr, context.Canceled)
	got := <-second
	require.NoError(t, got.err)
	require.Len(t, got.table, 1)
	require.EqualValues(t, 1, inner.calls.Load())

	// The detached download still filled the cache.
	_, err := c.Download(t.Context(), []string{"GC=F"}, "1d", "1m")
	require.NoError(t, err)
	require.EqualValues(t, 1, inner.calls.Load())
}

func TestFeed_SharedDownloadBoundedByTimeout(t *testing.T) {
	t.Parallel()

	inner := &slowFeed{delay: time.Second}
	c := &Feed{F: inner, Store: NewMemoryStore(0), TTL: time.Minute, Timeout: 20 * time.Millisecond}

	_, err := c.Download(context.Background(), []string{"GC=F"}, "1d", "1m")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryStore_ExpiryAndCap(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemoryStore(2)
	m.now = func() time.Time { return now }
	v := 1.0
	obs := []feed.Observation{{Symbol: "A", Time: now, Close: &v}}

	require.NoError(t, m.Set(t.Context(), "a", obs, time.Second))
	got, ok, err := m.Get(t.Context(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, obs, got)

	now = now.Add(2 * time.Second)
	_, ok, _ = m.Get(t.Context(), "a")
	require.False(t, ok)

	require.NoError(t, m.Set(t.Context(), "b", obs, time.Minute))
	require.NoError(t, m.Set(t.Context(), "c", obs, time.Minute))
	require.Equal(t, 2, m.Len())
	_, ok, _ = m.Get(t.Context(), "c")
	require.True(t, ok, "newest key is never evicted")
}

// fakeRedis implements the subset of the redis client used by RedisStore.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	b, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(b), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = value.([]byte)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	fake := &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
	s := &RedisStore{client: fake}

	_, ok, err := s.Get(t.Context(), "k")
	require.NoError(t, err)
	require.False(t, ok)

	good, nan := 2001.5, math.NaN()
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.Set(t.Context(), "k", []feed.Observation{
		{Symbol: "GC=F", Time: at, Close: &good},
		{Symbol: "GC=F", Time: at.Add(time.Minute), Close: &nan},
	}, 30*time.Second))
	require.Equal(t, 30*time.Second, fake.ttls[KeyPrefix+"k"])

	got, ok, err := s.Get(t.Context(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	require.InDelta(t, good, *got[0].Close, 0)
	require.True(t, got[0].Time.Equal(at))
	require.Nil(t, got[1].Close)

	fake.err = errors.New("connection refused")
	_, _, err = s.Get(t.Context(), "k")
	require.ErrorContains(t, err, "connection refused")
	require.Error(t, s.Set(t.Context(), "k", nil, time.Second))
}

func TestFeed_WithRedisStore(t *testing.T) {
	t.Parallel()

	inner := &countingFeed{}
	store := &RedisStore{client: &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}}
	c := &Feed{F: inner, Store: store, TTL: time.Minute}

	for range 2 {
		table, err := c.Download(t.Context(), []string{"GC=F", "SI=F", "USDINR=X"}, "1d", "1m")
		require.NoError(t, err)
		_, ok := feed.Latest(table, "USDINR=X")
		require.True(t, ok)
	}
	require.EqualValues(t, 1, inner.calls.Load())
}
