// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recengine/internal/recommend"
	"github.com/tomtom215/recengine/internal/store"
)

// Recommender serves recommendation lists. Implemented by *recommend.Server.
type Recommender interface {
	Recommend(ctx context.Context, userID string) (*recommend.Response, error)
	Popular(ctx context.Context, k int) ([]recommend.Entry, error)
	InvalidateUser(ctx context.Context, userID string) (int, error)
}

// Recomputer runs popularity aggregation. Implemented by *recommend.Aggregator.
type Recomputer interface {
	Recompute(ctx context.Context) (*recommend.AggregationReport, error)
	LastReport() *recommend.AggregationReport
	LastError() string
	Running() bool
}

// Store is the write side of the interaction store.
type Store interface {
	recommend.InteractionRecorder
	UpsertItems(ctx context.Context, items []store.Item) error
	Pinger
}

// Pinger checks a dependency's connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators a Handler serves.
type Dependencies struct {
	Recommender Recommender
	Recomputer  Recomputer
	Store       Store

	// Cache is optional. When set it is checked by the readiness probe.
	Cache Pinger
}

// Handler implements the HTTP endpoints.
type Handler struct {
	recommender Recommender
	recomputer  Recomputer
	store       Store
	cache       Pinger
	logger      zerolog.Logger
	startTime   time.Time
	now         func() time.Time
}

// NewHandler creates a Handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(deps Dependencies, logger zerolog.Logger) (*Handler, error) {
	switch {
	case deps.Recommender == nil:
		return nil, errors.New("api: recommender is required")
	case deps.Recomputer == nil:
		return nil, errors.New("api: recomputer is required")
	case deps.Store == nil:
		return nil, errors.New("api: store is required")
	}

	return &Handler{
		recommender: deps.Recommender,
		recomputer:  deps.Recomputer,
		store:       deps.Store,
		cache:       deps.Cache,
		logger:      logger.With().Str("component", "api").Logger(),
		startTime:   time.Now(),
		now:         time.Now,
	}, nil
}

// NotFound renders unmatched routes as an error envelope.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Resource not found", nil, nil)
}

// MethodNotAllowed renders a route matched with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil, nil)
}

// RateLimited renders the httprate limit response.
func (h *Handler) RateLimited(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Rate limit exceeded", nil, nil)
}
