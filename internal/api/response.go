// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recengine/internal/logging"
)

// APIResponse is the envelope for every API response.
type APIResponse struct {
	// Status is "success" or "error".
	Status string `json:"status"`

	// Data is the payload; omitted on error.
	Data interface{} `json:"data,omitempty"`

	// Error is set only when Status is "error".
	Error *APIError `json:"error,omitempty"`

	Metadata Metadata `json:"metadata"`
}

// APIError describes a failed request.
type APIError struct {
	// Code is a stable machine-readable identifier.
	Code string `json:"code"`

	// Message is human-readable.
	Message string `json:"message"`

	// Details carries structured context such as the failing field.
	Details interface{} `json:"details,omitempty"`
}

// Metadata is attached to every response.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSONWithQueryTime(w, r, status, data, 0)
}

// respondJSONWithQueryTime writes a success envelope with query_time_ms set.
func respondJSONWithQueryTime(w http.ResponseWriter, r *http.Request, status int, data interface{}, elapsed time.Duration) {
	writeEnvelope(w, status, &APIResponse{
		Status: "success",
		Data:   data,
		Metadata: Metadata{
			Timestamp:   time.Now().UTC(),
			RequestID:   logging.RequestIDFromContext(r.Context()),
			QueryTimeMS: elapsed.Milliseconds(),
		},
	})
}

// respondError writes an error envelope. A non-nil err is logged; its text
// never reaches the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error, details interface{}) {
	if err != nil {
		ev := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(r.Context()).Error()
		}
		ev.Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}

	writeEnvelope(w, status, &APIResponse{
		Status: "error",
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, response *APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// sanitizeLogValue escapes control characters so request-derived text
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
