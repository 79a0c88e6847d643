// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

// Package cache provides the key/value backends behind the recommendation cache.
//
// Three implementations of Backend are available:
//
//   - Memory: process-local map with lazy and periodic expiry
//   - Redis: shared across instances via go-redis, expiry by key TTL
//   - Badger: embedded BadgerDB, survives restarts of a single node
//
// All backends store opaque bytes; encoding and freshness rules live in
// internal/recommend. Pattern deletes use the glob syntax of MatchPattern,
// which is compatible with Redis SCAN MATCH for the characters it supports.
//
// # Usage
//
//	backend, err := cache.New(ctx, cache.Config{
//	    Kind:  cache.KindRedis,
//	    Redis: cache.RedisConfig{URL: "redis://localhost:6379/0"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	recCache := recommend.NewCache(backend, cfg.Cache, logger)
package cache
