// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/recengine/internal/recommend"
)

const (
	defaultTopK = 10
	maxTopK     = 1000
)

// RecomputePopularity runs an aggregation synchronously and returns its
// report. Completion hooks, including cache invalidation, run before the
// response is written.
//
// Method: POST
// Path: /api/v1/popularity/recompute
//
// Response:
//   - 200: Aggregation completed
//   - 409: Another aggregation is already running
//   - 503: Interaction store unavailable; no score changed
func (h *Handler) RecomputePopularity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	report, err := h.recomputer.Recompute(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSONWithQueryTime(w, r, http.StatusOK, report, time.Since(start))
}

// PopularityStatus reports whether an aggregation is running and the
// outcome of the most recent one.
//
// Method: GET
// Path: /api/v1/popularity/status
func (h *Handler) PopularityStatus(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Running    bool                         `json:"running"`
		LastReport *recommend.AggregationReport `json:"last_report,omitempty"`
		LastError  string                       `json:"last_error,omitempty"`
	}{
		Running:    h.recomputer.Running(),
		LastReport: h.recomputer.LastReport(),
		LastError:  h.recomputer.LastError(),
	}
	respondJSON(w, r, http.StatusOK, status)
}

// TopPopular returns the k most popular items from the current popularity
// snapshot, ranked by score then item id.
//
// Method: GET
// Path: /api/v1/popularity/top?k=10
//
// Response:
//   - 200: Ranked entries (possibly empty before the first aggregation)
//   - 400: k is not an integer in [1, 1000]
//   - 503: Interaction store unavailable
func (h *Handler) TopPopular(w http.ResponseWriter, r *http.Request) {
	k := defaultTopK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxTopK {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
				"k must be an integer between 1 and 1000", nil, map[string]interface{}{"field": "k"})
			return
		}
		k = parsed
	}

	start := time.Now()
	entries, err := h.recommender.Popular(r.Context(), k)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []recommend.Entry{}
	}

	respondJSONWithQueryTime(w, r, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	}, time.Since(start))
}
