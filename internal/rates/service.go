package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"bullionrates/internal/feed"
)

// Observer is notified about each completed run. Implementations must be
// safe for concurrent use when the Service is shared.
type Observer interface {
	ObserveRun(status string, elapsed time.Duration)
	ObserveRates(s Success)
}

// Config controls a Service.
type Config struct {
	Symbols    Symbols
	Period     string // lookback window, e.g. "1d"
	Interval   string // sampling interval, e.g. "1m"
	Source     string // label reported in the success payload
	Conversion Conversion
}

// Service runs the fetch, validate, convert pipeline.
type Service struct {
	cfg      Config
	feed     feed.Feed
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithObserver sets a run observer, e.g. metrics.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithClock overrides time.Now for error timestamps and timing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service reading from f.
func New(f feed.Feed, cfg Config, opts ...Option) *Service {
	if cfg.Symbols == (Symbols{}) {
		cfg.Symbols = DefaultSymbols
	}
	if cfg.Period == "" {
		cfg.Period = "1d"
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	if cfg.Source == "" {
		cfg.Source = f.Name()
	}
	s := &Service{cfg: cfg, feed: f, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one pipeline pass and always returns a Result. Any failure,
// including a panic inside the feed, short-circuits to a Failure.
func (s *Service) Run(ctx context.Context) (res Result) {
	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("rates run panicked", "panic", r)
			res = NewFailure(fmt.Errorf("%v", r), s.now())
		}
		s.observe(res, start)
	}()

	ok, err := s.run(ctx)
	if err != nil {
		s.logger.Warn("rates run failed", "error", err)
		return NewFailure(err, s.now())
	}
	s.logger.Info("rates run succeeded",
		"gold_22k", ok.Gold22K,
		"silver", ok.Silver,
		"usd_inr", ok.USDINR,
		"tax_included", ok.Metadata.TaxIncluded,
	)
	return ok
}

func (s *Service) run(ctx context.Context) (Success, error) {
	symbols := s.cfg.Symbols.List()
	s.logger.Debug("fetching quotes", "feed", s.feed.Name(), "symbols", symbols,
		"period", s.cfg.Period, "interval", s.cfg.Interval)

	table, err := s.feed.Download(ctx, symbols, s.cfg.Period, s.cfg.Interval)
	if err != nil {
		return Success{}, fmt.Errorf("%w: %w", ErrNoData, err)
	}

	in, at, err := Gate(table, s.cfg.Symbols)
	if err != nil {
		return Success{}, err
	}

	out := Convert(in, s.cfg.Conversion)
	if !finite(out.Gold24K) || !finite(out.Gold22K) || !finite(out.Silver) {
		return Success{}, errors.New("conversion produced a non-finite price")
	}
	return NewSuccess(out, in.USDINR, at, s.cfg.Source, s.cfg.Conversion), nil
}

func (s *Service) observe(res Result, start time.Time) {
	if s.observer == nil || res == nil {
		return
	}
	status := StatusError
	if ok, isOK := res.(Success); isOK {
		status = StatusSuccess
		s.observer.ObserveRates(ok)
	}
	s.observer.ObserveRun(status, s.now().Sub(start))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
