// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"net/http"
)

// RecordInteraction appends one interaction event to the store. Unknown
// items are added to the catalog by the store.
//
// Method: POST
// Path: /api/v1/interactions
//
// Response:
//   - 201: Interaction recorded; the stored record is returned
//   - 400: Malformed body, missing ids or an unknown interaction type
//   - 503: Interaction store unavailable
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	var req InteractionRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, r, &req) {
		return
	}

	rec, err := req.toRecord(h.now())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	if err := h.store.RecordInteraction(r.Context(), rec); err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, rec)
}
