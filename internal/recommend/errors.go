// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import "errors"

var (
	// ErrSourceUnavailable is returned when the interaction store cannot be read
	// or written. Aggregation runs abort and leave stored scores untouched.
	ErrSourceUnavailable = errors.New("interaction source unavailable")

	// ErrScorerUnavailable is returned by a Scorer that cannot produce scores.
	ErrScorerUnavailable = errors.New("scorer unavailable")

	// ErrScorerTimeout is returned by a Scorer that exceeded its deadline.
	ErrScorerTimeout = errors.New("scorer timed out")

	// ErrCapacityExceeded is returned when the concurrent computation ceiling is reached.
	ErrCapacityExceeded = errors.New("recommendation capacity exceeded")

	// ErrInvalidInteraction marks an interaction record that violates the data model.
	ErrInvalidInteraction = errors.New("invalid interaction")

	// ErrAggregationInProgress is returned when an aggregation run is already active.
	ErrAggregationInProgress = errors.New("aggregation already running")

	// ErrInvalidConfig marks a configuration that fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidRequest is returned for requests that cannot be served, such as an empty user id.
	ErrInvalidRequest = errors.New("invalid recommendation request")
)
