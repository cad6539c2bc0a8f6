package ratelimit

import (
	"context"
	"sync"
	"time"

	"bullionrates/internal/feed"
)

// TokenBucket admits PerSecond calls on average with bursts of up to
// Burst. A caller that finds the bucket empty takes a token on credit and
// sleeps until the debt is repaid; the token is returned if it gives up.
type TokenBucket struct {
	perSecond float64
	burst     float64

	mu     sync.Mutex
	tokens float64 // negative while callers are queued
	at     time.Time
}

// NewTokenBucket starts full so an initial burst passes immediately.
func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	if perSecond <= 0 {
		perSecond = 1e-7
	}
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{perSecond: perSecond, burst: float64(burst), tokens: float64(burst), at: time.Now()}
}

// PerMinute builds a bucket from a requests-per-minute budget.
func PerMinute(rpm, burst int) *TokenBucket {
	return NewTokenBucket(float64(rpm)/60, burst)
}

// take withdraws one token and reports how long the caller must wait for it.
func (tb *TokenBucket) take() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	tb.tokens = min(tb.burst, tb.tokens+now.Sub(tb.at).Seconds()*tb.perSecond)
	tb.at = now
	tb.tokens--
	if tb.tokens >= 0 {
		return 0
	}
	return time.Duration(-tb.tokens / tb.perSecond * float64(time.Second))
}

func (tb *TokenBucket) refund() {
	tb.mu.Lock()
	tb.tokens++
	tb.mu.Unlock()
}

// Wait blocks until a token is granted or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	wait := tb.take()
	if err := sleepUntil(ctx, time.Now().Add(wait)); err != nil {
		tb.refund()
		return err
	}
	return nil
}

// TokenBucketFeed gates downloads with a token bucket.
type TokenBucketFeed struct {
	F  feed.Feed
	TB *TokenBucket
}

func (t *TokenBucketFeed) Name() string { return t.F.Name() }

func (t *TokenBucketFeed) Download(ctx context.Context, symbols []string, period, interval string) (feed.Table, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return t.F.Download(ctx, symbols, period, interval)
}
