// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Serving Metrics
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests by serving source and outcome",
		},
		[]string{"source", "outcome"}, // outcome: "ok", "degraded", "rejected", "error"
	)

	RecommendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_request_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"source"},
	)

	RecommendInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_inflight_computations",
			Help: "Current number of recommendation computations holding a concurrency slot",
		},
	)

	RecommendCapacityRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_capacity_rejections_total",
			Help: "Total number of computations rejected because the concurrency ceiling was reached",
		},
	)

	RecommendSingleflightShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_singleflight_shared_total",
			Help: "Total number of requests that received a result computed by a concurrent request",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_cache_hits_total",
			Help: "Total number of recommendation cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_cache_misses_total",
			Help: "Total number of recommendation cache misses",
		},
	)

	CacheExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_cache_expired_total",
			Help: "Total number of cache entries found expired and removed on read",
		},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_cache_invalidations_total",
			Help: "Total number of cache entries removed by explicit invalidation",
		},
		[]string{"reason"}, // "recompute", "fingerprint", "user", "manual"
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_cache_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation"},
	)

	// Scorer Metrics
	ScorerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scorer_request_duration_seconds",
			Help:    "Duration of Scorer calls in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ScorerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorer_failures_total",
			Help: "Total number of Scorer failures that triggered the popularity fallback",
		},
		[]string{"reason"}, // "timeout", "unavailable"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Aggregation Metrics
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "popularity_aggregation_duration_seconds",
			Help:    "Duration of popularity aggregation runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	AggregationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularity_aggregation_runs_total",
			Help: "Total number of popularity aggregation runs by result",
		},
		[]string{"result"}, // "success", "failure", "rejected"
	)

	AggregationItemsUpdated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "popularity_items_updated",
			Help: "Number of items whose popularity score was written by the last successful run",
		},
	)

	AggregationSkippedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popularity_skipped_records_total",
			Help: "Total number of malformed interaction records skipped during aggregation",
		},
	)

	AggregationLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "popularity_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful popularity aggregation",
		},
	)

	PopularityLeaderboard = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "popularity_leaderboard_score",
			Help: "Popularity score of the top-K items from the last successful run",
		},
		[]string{"rank", "item_id"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRecommendRequest records a served recommendation request.
func RecordRecommendRequest(source, outcome string, duration time.Duration) {
	RecommendRequests.WithLabelValues(source, outcome).Inc()
	RecommendRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// TrackInflight adjusts the in-flight computation gauge.
func TrackInflight(inc bool) {
	if inc {
		RecommendInflight.Inc()
	} else {
		RecommendInflight.Dec()
	}
}

// RecordScorerCall records a Scorer call and classifies its failure, if any.
// timeout should be true when the failure was a deadline.
func RecordScorerCall(duration time.Duration, err error, timeout bool) {
	ScorerDuration.Observe(duration.Seconds())
	if err == nil {
		return
	}
	if timeout {
		ScorerFailures.WithLabelValues("timeout").Inc()
		return
	}
	ScorerFailures.WithLabelValues("unavailable").Inc()
}

// RecordAggregation records the outcome of an aggregation run.
func RecordAggregation(duration time.Duration, itemsUpdated int, skipped int64, err error, rejected bool) {
	switch {
	case rejected:
		AggregationRuns.WithLabelValues("rejected").Inc()
		return
	case err != nil:
		AggregationRuns.WithLabelValues("failure").Inc()
		AggregationDuration.Observe(duration.Seconds())
		return
	}
	AggregationRuns.WithLabelValues("success").Inc()
	AggregationDuration.Observe(duration.Seconds())
	AggregationItemsUpdated.Set(float64(itemsUpdated))
	AggregationSkippedRecords.Add(float64(skipped))
	AggregationLastSuccess.Set(float64(time.Now().Unix()))
}

// UpdateLeaderboard replaces the leaderboard gauges. itemIDs and scores are
// parallel slices in rank order.
func UpdateLeaderboard(itemIDs []string, scores []float64) error {
	if len(itemIDs) != len(scores) {
		return errors.New("leaderboard: item and score counts differ")
	}
	PopularityLeaderboard.Reset()
	for i, id := range itemIDs {
		PopularityLeaderboard.WithLabelValues(strconv.Itoa(i+1), id).Set(scores[i])
	}
	return nil
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
