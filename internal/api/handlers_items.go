// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"net/http"
)

// UpsertItems adds catalog items or renames existing ones. New items start
// with a popularity score of 0 until the next recompute.
//
// Method: POST
// Path: /api/v1/items
//
// Response:
//   - 200: Items stored
//   - 400: Malformed body, empty list, more than 1000 items or an empty item_id
//   - 503: Interaction store unavailable
func (h *Handler) UpsertItems(w http.ResponseWriter, r *http.Request) {
	var req ItemsRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, r, &req) {
		return
	}

	if err := h.store.UpsertItems(r.Context(), req.Items); err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"upserted": len(req.Items),
	})
}
