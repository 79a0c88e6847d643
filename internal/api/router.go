// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recengine/internal/middleware"
)

// RouterConfig controls per-client rate limiting of /api/v1.
type RouterConfig struct {
	// RateLimitRequests is the number of requests allowed per client IP in
	// each RateLimitWindow. Zero disables rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter wires the handler into a chi router.
//
// Global middleware, in order: request id, real client IP, access log,
// panic recovery. Health probes and /metrics are never rate limited.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(h *Handler, cfg RouterConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimiddleware.Recoverer)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(httprate.Limit(
				cfg.RateLimitRequests,
				cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(h.RateLimited),
			))
		}
		r.Use(middleware.PrometheusMetrics)

		r.Post("/interactions", h.RecordInteraction)
		r.Post("/items", h.UpsertItems)

		r.Route("/popularity", func(r chi.Router) {
			r.Post("/recompute", h.RecomputePopularity)
			r.Get("/status", h.PopularityStatus)
			r.Get("/top", h.TopPopular)
		})

		r.Get("/recommendations/{userID}", h.GetRecommendations)
		r.Delete("/recommendations/{userID}/cache", h.InvalidateRecommendations)
	})

	return r
}
