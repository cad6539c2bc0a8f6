// Package cache memoizes feed downloads per symbol.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"bullionrates/internal/feed"
)

// Store keeps observations for a key until the TTL passes.
type Store interface {
	Get(ctx context.Context, key string) ([]feed.Observation, bool, error)
	Set(ctx context.Context, key string, obs []feed.Observation, ttl time.Duration) error
}

// Feed caches results per symbol for a TTL.
// It requests only missing symbols from the underlying feed and
// combines cached and fresh results. Concurrent misses for the same
// request share one download, which runs detached from any single
// caller's cancellation and is bounded by Timeout when set.
type Feed struct {
	F       feed.Feed
	Store   Store
	TTL     time.Duration
	Timeout time.Duration
	Logger  *slog.Logger

	group singleflight.Group
}

func (c *Feed) Name() string { return c.F.Name() }

func key(symbol, period, interval string) string {
	return period + "|" + interval + "|" + symbol
}

func (c *Feed) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Download returns observations for the requested symbols using the store
// when valid.
func (c *Feed) Download(ctx context.Context, symbols []string, period, interval string) (feed.Table, error) {
	if c.Store == nil || c.TTL <= 0 {
		return c.F.Download(ctx, symbols, period, interval)
	}

	cached := make(feed.Table, len(symbols))
	missing := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}

		obs, ok, err := c.Store.Get(ctx, key(s, period, interval))
		if err != nil {
			c.logger().Warn("cache get failed", "symbol", s, "error", err)
		}
		if ok && len(obs) > 0 {
			cached[s] = obs
			continue
		}
		missing = append(missing, s)
	}

	if len(missing) == 0 {
		return cached, nil
	}

	sfKey := period + "|" + interval + "|" + strings.Join(missing, ",")
	ch := c.group.DoChan(sfKey, func() (any, error) {
		// Shared by every waiter: one caller leaving must not cancel it.
		dctx := context.WithoutCancel(ctx)
		if c.Timeout > 0 {
			var cancel context.CancelFunc
			dctx, cancel = context.WithTimeout(dctx, c.Timeout)
			defer cancel()
		}
		return c.F.Download(dctx, missing, period, interval)
	})
	var (
		v   any
		err error
	)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case r := <-ch:
		v, err = r.Val, r.Err
	}
	if err != nil {
		// Serve what is cached rather than failing entirely.
		if !cached.Empty() {
			c.logger().Warn("feed download failed, serving cached symbols", "missing", missing, "error", err)
			return cached, nil
		}
		return nil, err
	}
	fresh := v.(feed.Table)

	kept := make(feed.Table, len(missing))
	for _, s := range missing {
		obs, ok := fresh[s]
		if !ok || len(obs) == 0 {
			continue
		}
		kept[s] = obs
		if err := c.Store.Set(ctx, key(s, period, interval), obs, c.TTL); err != nil {
			c.logger().Warn("cache set failed", "symbol", s, "error", err)
		}
	}
	return feed.Merge(cached, kept), nil
}
