// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

/*
Package scorer provides recommend.Scorer implementations backed by a remote
model server.

HTTP posts the candidate list and reads back a score per item:

	POST <scorer.url>
	{"user_id": "u42", "candidates": ["i1", "i2"]}

	200 OK
	{"scores": {"i1": 0.82, "i2": 0.10}}

Transport deadlines and 408/504 responses map to recommend.ErrScorerTimeout.
Every other failure maps to recommend.ErrScorerUnavailable. Both send the
request down the popularity fallback path.

Breaker wraps any Scorer with a sony/gobreaker circuit breaker. While the
circuit is open calls fail immediately with ErrScorerUnavailable, so a dead
model server costs no request latency. State changes are exported as
circuit_breaker_* metrics.
*/
package scorer
