package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bullionrates/internal/metrics"
	"bullionrates/internal/rates"
)

type runner interface {
	Run(ctx context.Context) rates.Result
}

type server struct {
	svc        runner
	logger     *slog.Logger
	deadline   time.Duration
	overrides  *rates.Overrides
	adminToken string
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *server) routes(m *metrics.RateMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", m.Instrument("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})))
	mux.Handle("GET /api/rates", m.Instrument("/api/rates", http.HandlerFunc(s.handleRates)))
	mux.Handle("GET /api/price", m.Instrument("/api/price", http.HandlerFunc(s.handlePrice)))
	mux.Handle("GET /api/manual-rates", m.Instrument("/api/manual-rates", http.HandlerFunc(s.handleGetManual)))
	if s.adminToken != "" && s.overrides != nil {
		mux.Handle("PUT /api/manual-rates", m.Instrument("/api/manual-rates", http.HandlerFunc(s.handlePutManual)))
	}
	mux.Handle("GET /metrics", m.Handler())

	return withJSONHeaders(withGzip(s.recoverPanic(mux)))
}

func (s *server) current(ctx context.Context) rates.Result {
	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}
	return s.svc.Run(ctx)
}

func (s *server) manual() rates.Manual {
	if s.overrides == nil {
		return rates.Manual{}
	}
	return s.overrides.Get()
}

// handleRates returns the rate result with overrides applied; failures
// map to 502.
func (s *server) handleRates(w http.ResponseWriter, r *http.Request) {
	res := s.current(r.Context())
	status := http.StatusOK
	if ok, isOK := res.(rates.Success); isOK {
		res = s.manual().Apply(ok)
	} else {
		status = http.StatusBadGateway
	}
	w.WriteHeader(status)
	if err := rates.Encode(w, res); err != nil {
		s.logger.Warn("writing response failed", "error", err)
	}
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metal := strings.TrimSpace(q.Get("metal"))
	if metal == "" {
		writeError(w, http.StatusBadRequest, "missing metal query param")
		return
	}
	grams, err := strconv.ParseFloat(strings.TrimSpace(q.Get("grams")), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "grams must be a number")
		return
	}

	if est, ok, err := rates.EstimateManual(metal, grams, s.manual()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	} else if ok {
		writeJSON(w, http.StatusOK, est)
		return
	}

	res := s.current(r.Context())
	ok, isOK := res.(rates.Success)
	if !isOK {
		w.WriteHeader(http.StatusBadGateway)
		_ = rates.Encode(w, res)
		return
	}

	est, err := rates.EstimatePrice(metal, grams, ok)
	switch {
	case errors.Is(err, rates.ErrUnknownMetal), errors.Is(err, rates.ErrInvalidWeight):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *server) handleGetManual(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manual())
}

// handlePutManual updates overrides; fields left out keep their value and 0
// clears one.
func (s *server) handlePutManual(w http.ResponseWriter, r *http.Request) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var p rates.ManualPatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	m, err := s.overrides.Update(p)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("manual rates updated", "gold", m.Gold, "silver", m.Silver)
	writeJSON(w, http.StatusOK, m)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Status: rates.StatusError, Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
