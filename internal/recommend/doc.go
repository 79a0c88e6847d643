// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

// Package recommend implements popularity aggregation and recommendation serving.
//
// # Architecture
//
// The package is split into two halves that meet at the persisted popularity
// table:
//
//   - Aggregator: a batch job that turns raw interaction records into
//     normalized popularity scores in [0, 1] and replaces the stored scores
//     in a single transaction.
//   - Server: the request path. It consults the Cache, decides between a
//     personalized result from the Scorer and the popularity fallback, and
//     writes computed lists back to the cache.
//
// # Request Path
//
//	Recommend(ctx, userID)
//	  -> cache hit?                      return cached list
//	  -> interactions < threshold?       popularity top-N (cold start)
//	  -> Scorer within request_timeout   rank, truncate, cache
//	  -> Scorer failed or timed out      popularity top-N (degraded, not cached)
//
// Computations are bounded by a weighted semaphore sized by
// max_concurrent_requests and collapsed per cache key with singleflight.
// Cache hits never take a slot.
//
// # Coherency
//
// Every completed aggregation run drops the in-memory popularity snapshot and
// invalidates all cache entries under the configured prefix. Reconfiguration
// that changes top_n or model_version invalidates entries for the previous
// fingerprint.
//
// # Usage
//
//	cfg := recommend.DefaultConfig()
//	cache := recommend.NewCache(backend, cfg.Cache, logger)
//	server, err := recommend.NewServer(cfg, recommend.ServerDeps{
//	    Cache:      cache,
//	    Counter:    store,
//	    Popularity: store,
//	    Scorer:     scorer,
//	}, logger)
//
//	agg, err := recommend.NewAggregator(store, cfg.Popularity, logger)
//	agg.OnComplete(server.HandleRecompute)
//
// # Thread Safety
//
// Aggregator, Cache and Server are safe for concurrent use. Only one
// aggregation run may be active at a time; a second caller gets
// ErrAggregationInProgress.
package recommend
