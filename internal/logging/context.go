// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type (
	requestIDKey     struct{}
	correlationIDKey struct{}
)

// GenerateRequestID returns a UUIDv4 for an inbound HTTP request.
func GenerateRequestID() string {
	return uuid.NewString()
}

// GenerateCorrelationID returns an 8-character ID that ties together the
// lines of one request or aggregation run.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// ContextWithLogger attaches logger to ctx using zerolog's own context slot,
// so zerolog.Ctx and Ctx both see it.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// Ctx returns the logger attached to ctx, or the process-wide logger, with
// request_id and correlation_id added when ctx carries them.
//
//	logging.Ctx(r.Context()).Warn().Err(err).Msg("Scorer failed, serving popularity")
func Ctx(ctx context.Context) *zerolog.Logger {
	base := zerolog.Ctx(ctx)
	requestID := RequestIDFromContext(ctx)
	correlationID := CorrelationIDFromContext(ctx)
	if requestID == "" && correlationID == "" {
		return base
	}

	lc := base.With()
	if requestID != "" {
		lc = lc.Str("request_id", requestID)
	}
	if correlationID != "" {
		lc = lc.Str("correlation_id", correlationID)
	}
	l := lc.Logger()
	return &l
}
