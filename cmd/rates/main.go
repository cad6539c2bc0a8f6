// Command rates prints current 22K gold, silver and USD/INR rates in INR per
// gram as a single JSON line. It exits 0 on success and 1 on any error.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"bullionrates/internal/app"
	"bullionrates/internal/config"
	"bullionrates/internal/feed"
	"bullionrates/internal/obs"
	"bullionrates/internal/rates"
	"bullionrates/internal/sink"
)

type deps struct {
	newFeed  func(ctx context.Context, cfg config.Config, logger *slog.Logger) (feed.Feed, func())
	newSinks func(ctx context.Context, cfg config.Config, logger *slog.Logger) *sink.Multi
	now      func() time.Time
}

func defaultDeps() deps {
	return deps{
		newFeed: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (feed.Feed, func()) {
			return app.NewFeed(ctx, cfg, logger, app.FeedOptions{})
		},
		newSinks: app.NewSinks,
		now:      time.Now,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, defaultDeps())
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer, d deps) int {
	fs := flag.NewFlagSet("rates", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "path to a JSON or YAML config file (optional)")
	fs.Usage = config.Usage(func() {
		fmt.Fprintln(fs.Output(), "Usage of rates:")
		fs.PrintDefaults()
	})
	// -h prints usage to stderr and still answers with one JSON line.
	if err := fs.Parse(args); err != nil {
		return emitFailure(stdout, fmt.Errorf("invalid arguments: %w", err), d.now())
	}

	if err := config.LoadDotEnv(); err != nil {
		obs.NewLogger("warn", "json").Warn("loading .env failed", "error", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return emitFailure(stdout, fmt.Errorf("configuration error: %w", err), d.now())
	}

	runID := uuid.NewString()
	logger := obs.NewLogger(cfg.Log.Level, cfg.Log.Format).With("run_id", runID)

	f, cleanup := d.newFeed(ctx, cfg, logger)
	defer cleanup()

	svc := rates.New(f, cfg.Rates(), rates.WithLogger(logger), rates.WithClock(d.now))

	runCtx, cancel := context.WithTimeout(ctx, app.RunDeadline(cfg))
	res := svc.Run(runCtx)
	cancel()

	if err := rates.Encode(stdout, res); err != nil {
		logger.Error("writing result failed", "error", err)
		return 1
	}

	ok, isOK := res.(rates.Success)
	if !isOK {
		return 1
	}
	publish(ctx, cfg, logger, d, runID, ok)
	return 0
}

// publish hands a success to the configured sinks. Connecting and
// publishing share one deadline; failures are logged only.
func publish(ctx context.Context, cfg config.Config, logger *slog.Logger, d deps, runID string, ok rates.Success) {
	pubCtx, cancel := context.WithTimeout(ctx, cfg.Feed.Timeout)
	defer cancel()

	sinks := d.newSinks(pubCtx, cfg, logger)
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Warn("closing sinks failed", "error", err)
		}
	}()
	if sinks.Len() == 0 {
		return
	}

	snap, err := sink.NewSnapshot(runID, ok, d.now())
	if err != nil {
		logger.Warn("building snapshot failed", "error", err)
		return
	}
	if err := sinks.Publish(pubCtx, snap); err != nil {
		logger.Warn("publishing snapshot failed", "snapshot_id", snap.ID, "error", err)
	}
}

func emitFailure(w io.Writer, err error, now time.Time) int {
	_ = rates.Encode(w, rates.NewFailure(err, now))
	return 1
}
