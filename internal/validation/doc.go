// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

// Package validation checks API request bodies with go-playground/validator.
//
// Failures are reported under the JSON field names clients send. Besides the
// built-in tags there are two more: interaction_type (view, click, like or
// purchase, case-insensitive) and notblank (non-empty after trimming).
//
//	type interactionRequest struct {
//	    UserID string `json:"user_id" validate:"required,notblank,max=256"`
//	    Type   string `json:"type" validate:"required,interaction_type"`
//	}
//
//	if verr := validation.Struct(&req); verr != nil {
//	    respondError(w, r, http.StatusBadRequest, ErrCodeValidation, verr.Error(), verr, verr.Details())
//	    return false
//	}
package validation
