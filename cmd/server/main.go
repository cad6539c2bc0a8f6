// Command server serves current bullion rates over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"bullionrates/internal/app"
	"bullionrates/internal/config"
	"bullionrates/internal/metrics"
	"bullionrates/internal/obs"
	"bullionrates/internal/rates"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a JSON or YAML config file (optional)")
	flag.Usage = config.Usage(flag.PrintDefaults)
	flag.Parse()

	boot := obs.NewLogger("info", "json")
	if err := config.LoadDotEnv(); err != nil {
		boot.Warn("loading .env failed", "error", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Error("config", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	f, cleanup := app.NewFeed(ctx, cfg, logger, app.FeedOptions{Limit: true, MemoryCache: true})
	defer cleanup()

	svc := rates.New(f, cfg.Rates(), rates.WithLogger(logger), rates.WithObserver(m))
	s := &server{
		svc:        svc,
		logger:     logger,
		deadline:   app.RunDeadline(cfg),
		overrides:  rates.NewOverrides(cfg.ManualRates()),
		adminToken: cfg.Server.AdminToken,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.routes(m),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      app.RunDeadline(cfg) + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	logger.Info("server stopped")
}
