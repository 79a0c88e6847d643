// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

/*
Package middleware provides the HTTP middleware shared by the Recengine API.

All middleware uses the chi signature func(http.Handler) http.Handler.

  - RequestID: assigns X-Request-ID and a correlation ID, both visible to logging.Ctx
  - AccessLog: one zerolog line per request, leveled by status class
  - PrometheusMetrics: request count and latency labeled by chi route pattern

The router installs them in this order:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

Route patterns are only known after chi has routed the request, so
PrometheusMetrics and AccessLog read them once the handler returns.
*/
package middleware
