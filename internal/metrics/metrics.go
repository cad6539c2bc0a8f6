package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bullionrates/internal/rates"
)

// RateMetrics holds the collectors for rate runs and the HTTP surface.
type RateMetrics struct {
	// Runs by final status (success/error)
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Last published INR per gram prices
	PriceINRPerGram *prometheus.GaugeVec
	USDINR          prometheus.Gauge
	LastSuccess     prometheus.Gauge

	HTTPRequestsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *RateMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &RateMetrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bullion_rate_runs_total",
				Help: "Rate pipeline runs by result status",
			},
			[]string{"status"},
		),
		RunDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bullion_rate_run_duration_seconds",
				Help:    "Wall time of a rate pipeline run",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
			},
			[]string{"status"},
		),
		PriceINRPerGram: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bullion_price_inr_per_gram",
				Help: "Last successful INR per gram price",
			},
			[]string{"metal", "purity", "tax_included"},
		),
		USDINR: f.NewGauge(prometheus.GaugeOpts{
			Name: "bullion_usd_inr",
			Help: "Last successful USD/INR rate",
		}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "bullion_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bullion_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		gatherer: reg,
	}
}

// ObserveRun records a completed run.
func (m *RateMetrics) ObserveRun(status string, elapsed time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveRates publishes the prices of a successful run.
func (m *RateMetrics) ObserveRates(s rates.Success) {
	tax := strconv.FormatBool(s.Metadata.TaxIncluded)
	m.PriceINRPerGram.WithLabelValues("gold", "22k", tax).Set(s.Gold22K)
	m.PriceINRPerGram.WithLabelValues("gold", "24k", tax).Set(s.Gold24K)
	m.PriceINRPerGram.WithLabelValues("silver", "fine", tax).Set(s.Silver)
	m.USDINR.Set(s.USDINR)
	m.LastSuccess.SetToCurrentTime()
}

// Handler exposes the registry in the Prometheus text format. Compression
// is left to the server middleware.
func (m *RateMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{DisableCompression: true})
}

// Instrument counts requests served by next under route.
func (m *RateMetrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

var _ rates.Observer = (*RateMetrics)(nil)
