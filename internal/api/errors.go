// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/tomtom215/recengine/internal/recommend"
	"github.com/tomtom215/recengine/internal/store"
)

// Error codes used in APIError.Code.
const (
	ErrCodeBadRequest            = "BAD_REQUEST"
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeInvalidInteraction    = "INVALID_INTERACTION"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeMethodNotAllowed      = "METHOD_NOT_ALLOWED"
	ErrCodeAggregationInProgress = "AGGREGATION_IN_PROGRESS"
	ErrCodeTooManyRequests       = "TOO_MANY_REQUESTS"
	ErrCodeCapacityExceeded      = "CAPACITY_EXCEEDED"
	ErrCodeSourceUnavailable     = "SOURCE_UNAVAILABLE"
	ErrCodeServiceUnavailable    = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout               = "TIMEOUT"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// retryAfterSeconds is sent with backpressure responses.
const retryAfterSeconds = 1

// errorMapping is the HTTP rendering of a domain error.
type errorMapping struct {
	status  int
	code    string
	message string
}

// mapError translates errors from the recommend and store packages.
// Order matters: the first match wins.
func mapError(err error) errorMapping {
	switch {
	case errors.Is(err, recommend.ErrInvalidInteraction):
		return errorMapping{http.StatusBadRequest, ErrCodeInvalidInteraction, "Invalid interaction"}
	case errors.Is(err, recommend.ErrInvalidRequest), errors.Is(err, store.ErrEmptyItemID):
		return errorMapping{http.StatusBadRequest, ErrCodeBadRequest, "Invalid request"}
	case errors.Is(err, recommend.ErrAggregationInProgress):
		return errorMapping{http.StatusConflict, ErrCodeAggregationInProgress, "A popularity aggregation is already running"}
	case errors.Is(err, recommend.ErrCapacityExceeded):
		return errorMapping{http.StatusServiceUnavailable, ErrCodeCapacityExceeded, "Server is at capacity, retry shortly"}
	case errors.Is(err, recommend.ErrSourceUnavailable), errors.Is(err, store.ErrClosed):
		return errorMapping{http.StatusServiceUnavailable, ErrCodeSourceUnavailable, "Interaction store unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return errorMapping{http.StatusGatewayTimeout, ErrCodeTimeout, "Request timed out"}
	default:
		return errorMapping{http.StatusInternalServerError, ErrCodeInternalError, "Internal server error"}
	}
}

// respondDomainError renders err with mapError. Backpressure responses
// carry Retry-After.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	m := mapError(err)
	if m.code == ErrCodeCapacityExceeded {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	respondError(w, r, m.status, m.code, m.message, err, nil)
}
