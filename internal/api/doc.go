// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

/*
Package api exposes Recengine over HTTP.

Every response uses the same JSON envelope:

	{
	  "status": "success",
	  "data": { ... },
	  "metadata": {"timestamp": "...", "request_id": "...", "query_time_ms": 3}
	}

Failures set status to "error" and carry {code, message, details} in the
error field. Domain errors map to HTTP statuses in errors.go.

# Endpoints

	POST   /api/v1/interactions                    record one interaction
	POST   /api/v1/items                           upsert catalog items
	POST   /api/v1/popularity/recompute            run an aggregation now
	GET    /api/v1/popularity/status               last aggregation outcome
	GET    /api/v1/popularity/top?k=10             popularity leaderboard
	GET    /api/v1/recommendations/{userID}        recommendations for a user
	DELETE /api/v1/recommendations/{userID}/cache  drop a user's cached lists
	GET    /health/live                            liveness probe
	GET    /health/ready                           readiness probe
	GET    /metrics                                Prometheus metrics

A recommendation request rejected by the concurrency ceiling gets 503 with
a Retry-After header. Clients should back off rather than retry at once.
*/
package api
