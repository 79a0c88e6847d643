// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recengine/internal/recommend"
	"github.com/tomtom215/recengine/internal/store"
	"github.com/tomtom215/recengine/internal/validation"
)

// maxRequestBodyBytes caps JSON request bodies.
const maxRequestBodyBytes = 1 << 20

// InteractionRequest is the body of POST /api/v1/interactions.
type InteractionRequest struct {
	UserID string `json:"user_id" validate:"required,notblank,max=256"`
	ItemID string `json:"item_id" validate:"required,notblank,max=256"`
	Type   string `json:"type" validate:"required,interaction_type"`

	// Timestamp defaults to the time the request was received.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// toRecord converts the request, defaulting the timestamp to now.
func (req *InteractionRequest) toRecord(now time.Time) (*recommend.InteractionRecord, error) {
	typ, err := recommend.ParseInteractionType(req.Type)
	if err != nil {
		return nil, err
	}
	ts := now.UTC()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		ts = req.Timestamp.UTC()
	}
	return &recommend.InteractionRecord{
		UserID:    req.UserID,
		ItemID:    req.ItemID,
		Type:      typ,
		Timestamp: ts,
	}, nil
}

// ItemsRequest is the body of POST /api/v1/items. At most 1000 items are
// accepted per request.
type ItemsRequest struct {
	Items []store.Item `json:"items" validate:"required,min=1,max=1000,dive"`
}

// decodeJSON reads a size-limited JSON body into dst. Unknown fields are
// rejected. It writes a 400 and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large", err, nil)
			return false
		}
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", err, nil)
		return false
	}
	return true
}

// validateRequest runs struct validation on req. It writes a 400 and
// returns false on failure.
func validateRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	verr := validation.Struct(req)
	if verr == nil {
		return true
	}

	code := ErrCodeValidation
	if errors.Is(verr, recommend.ErrInvalidInteraction) {
		code = ErrCodeInvalidInteraction
	}
	respondError(w, r, http.StatusBadRequest, code, verr.Error(), verr, verr.Details())
	return false
}
