// Package app assembles feeds and sinks from configuration for the binaries.
package app

import (
	"context"
	"log/slog"
	"time"

	"bullionrates/internal/config"
	"bullionrates/internal/feed"
	"bullionrates/internal/feed/cache"
	"bullionrates/internal/feed/ratelimit"
	"bullionrates/internal/feed/yahoo"
	"bullionrates/internal/httpx"
	"bullionrates/internal/sink"
)

// FeedOptions selects the decorators applied around the chart client.
type FeedOptions struct {
	// Limit applies FEED_MAX_RPM/FEED_BURST and FEED_MIN_INTERVAL.
	Limit bool
	// MemoryCache caches in process when no Redis is configured. A one-shot
	// CLI only benefits from the shared Redis cache.
	MemoryCache bool
}

// NewFeed builds the chart client and its decorators. The returned cleanup
// releases connections and is never nil.
func NewFeed(ctx context.Context, cfg config.Config, logger *slog.Logger, opts FeedOptions) (feed.Feed, func()) {
	hc := httpx.New(cfg.Feed.Timeout)
	var f feed.Feed = yahoo.NewClient(
		yahoo.WithBaseURL(cfg.Feed.BaseURL),
		yahoo.WithHTTPClient(hc),
		yahoo.WithThreads(cfg.Feed.Threads),
		yahoo.WithLogger(logger),
	)

	if opts.Limit {
		f = ratelimit.Wrap(f, cfg.Feed.MaxRequestsPerMinute, cfg.Feed.Burst, cfg.Feed.MinInterval)
	}

	cleanup := func() {}
	if cfg.Feed.CacheTTL <= 0 {
		return f, cleanup
	}

	var store cache.Store
	if cfg.Redis.Addr != "" {
		rs, client, err := cache.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis cache unavailable", "addr", cfg.Redis.Addr, "error", err)
		} else {
			logger.Debug("using redis feed cache", "addr", cfg.Redis.Addr)
			store = rs
			cleanup = func() { _ = client.Close() }
		}
	}
	if store == nil && opts.MemoryCache {
		store = cache.NewMemoryStore(cfg.Feed.CacheMaxItems)
	}
	if store != nil {
		f = &cache.Feed{F: f, Store: store, TTL: cfg.Feed.CacheTTL, Timeout: RunDeadline(cfg), Logger: logger}
	}
	return f, cleanup
}

// NewSinks connects every configured sink. Sinks that cannot be reached
// are logged and skipped.
func NewSinks(ctx context.Context, cfg config.Config, logger *slog.Logger) *sink.Multi {
	m := &sink.Multi{Logger: logger}
	if cfg.Postgres.URL != "" {
		pg, err := sink.ConnectPostgres(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
		if err != nil {
			logger.Warn("postgres sink unavailable", "error", err)
		} else {
			m.Sinks = append(m.Sinks, pg)
		}
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
		m.Sinks = append(m.Sinks, sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	return m
}

// RunDeadline bounds one pipeline run. Sequential fetching gets one
// request timeout per symbol.
func RunDeadline(cfg config.Config) time.Duration {
	d := cfg.Feed.Timeout
	if !cfg.Feed.Threads {
		d *= 3
	}
	return d
}
