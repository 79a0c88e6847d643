// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered with the default registry through promauto and
exposed by the API layer at /metrics:

	curl http://localhost:8000/metrics

# Available Metrics

Serving:
  - recommend_requests_total{source,outcome}
  - recommend_request_duration_seconds{source}
  - recommend_inflight_computations
  - recommend_capacity_rejections_total
  - recommend_singleflight_shared_total

Cache:
  - recommend_cache_hits_total, recommend_cache_misses_total
  - recommend_cache_expired_total
  - recommend_cache_invalidations_total{reason}
  - recommend_cache_errors_total{operation}

Scorer:
  - scorer_request_duration_seconds
  - scorer_failures_total{reason}
  - circuit_breaker_* (state, requests, consecutive failures, transitions)

Aggregation:
  - popularity_aggregation_duration_seconds
  - popularity_aggregation_runs_total{result}
  - popularity_items_updated, popularity_skipped_records_total
  - popularity_last_success_timestamp_seconds
  - popularity_leaderboard_score{rank,item_id}

HTTP:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
*/
package metrics
