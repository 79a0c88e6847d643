// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"context"
	"net/http"
	"time"
)

// readinessTimeout bounds each dependency check in HealthReady.
const readinessTimeout = 2 * time.Second

// HealthLive reports that the process is running, regardless of
// dependencies.
//
// Method: GET
// Path: /health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports whether the interaction store and cache backend are
// reachable.
//
// Method: GET
// Path: /health/ready
//
// Response:
//   - 200: Ready to serve
//   - 503: A dependency failed its check
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	storeOK := ping(r.Context(), h.store)
	cacheOK := h.cache == nil || ping(r.Context(), h.cache)
	ready := storeOK && cacheOK

	data := map[string]interface{}{
		"store_connected":     storeOK,
		"cache_connected":     cacheOK,
		"ready_to_serve":      ready,
		"aggregation_running": h.recomputer.Running(),
		"uptime":              time.Since(h.startTime).Seconds(),
	}
	if ready {
		respondJSON(w, r, http.StatusOK, data)
		return
	}
	respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service not ready", nil, data)
}

func ping(ctx context.Context, p Pinger) bool {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return p.Ping(ctx) == nil
}
