// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// maxUserIDLen bounds the userID path parameter.
const maxUserIDLen = 256

// GetRecommendations returns the recommendation list for a user. The
// response reports which path served it (cache, personalized or popularity)
// and whether the popularity fallback was served because a dependency failed.
//
// Method: GET
// Path: /api/v1/recommendations/{userID}
//
// Response:
//   - 200: Recommendations served
//   - 400: Empty or oversized user id
//   - 503: Concurrency ceiling reached (with Retry-After) or the
//     popularity source is unavailable
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	resp, err := h.recommender.Recommend(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSONWithQueryTime(w, r, http.StatusOK, resp, time.Duration(resp.LatencyMS)*time.Millisecond)
}

// InvalidateRecommendations drops every cached list for a user, across all
// configuration fingerprints.
//
// Method: DELETE
// Path: /api/v1/recommendations/{userID}/cache
func (h *Handler) InvalidateRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	removed, err := h.recommender.InvalidateUser(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"removed": removed,
	})
}

// userIDParam extracts the userID path parameter. chi matches on RawPath
// when it is set, leaving the parameter escaped.
func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userID")
	var err error
	if r.URL.RawPath != "" {
		userID, err = url.PathUnescape(userID)
	}
	if err != nil || strings.TrimSpace(userID) == "" || len(userID) > maxUserIDLen {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid user ID", err,
			map[string]interface{}{"field": "userID"})
		return "", false
	}
	return userID, true
}
