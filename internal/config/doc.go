// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

/*
Package config loads and validates Recengine configuration.

# Configuration Sources

Load layers three sources with koanf, each overriding the previous one:

 1. Built-in defaults
 2. A YAML file: CONFIG_PATH, else config.yaml, config.yml,
    /etc/recengine/config.yaml or /etc/recengine/config.yml
 3. Environment variables

Only the environment variables listed below are read. Anything else in the
environment is ignored.

# Environment Variables

Database:
  - DATABASE_URL: Postgres DSN or DuckDB file path (default: recengine.duckdb)
  - DATABASE_DRIVER: duckdb, postgres or memory (default: inferred from URL)
  - DB_POOL_MIN_SIZE: idle connections kept open (default: 10)
  - DB_POOL_MAX_SIZE: maximum open connections (default: 20)

Cache:
  - CACHE_BACKEND: memory, redis or badger (default: redis if REDIS_URL is set, else memory)
  - REDIS_URL: redis:// URL
  - REDIS_TTL: entry lifetime, seconds or a duration (default: 600)
  - CACHE_KEY_PREFIX: key namespace (default: user_rec)
  - BADGER_PATH: directory for the badger backend (default: in-memory)

Serving:
  - TOP_N_RECOMMENDATIONS: list length (default: 10)
  - MIN_INTERACTIONS_FOR_PERSONALIZED: cold-start threshold (default: 3)
  - REQUEST_TIMEOUT: per-computation deadline, seconds or a duration (default: 5)
  - MAX_CONCURRENT_REQUESTS: in-flight computation ceiling (default: 1000)
  - ADMISSION_WAIT: how long to wait for a free slot (default: 0)
  - MODEL_VERSION: scorer model identifier (default: v1)
  - MAX_CANDIDATES: popularity items offered to the scorer (default: 500)

Popularity:
  - POPULARITY_SCHEDULE: cron expression or @every descriptor (default: @every 1h)
  - POPULARITY_RUN_ON_STARTUP: run once at boot (default: true)
  - NORMALIZATION_DIVISOR: raw score divisor (default: 100)
  - WEIGHT_VIEW, WEIGHT_CLICK, WEIGHT_LIKE, WEIGHT_PURCHASE: interaction weights

Scorer:
  - SCORER_URL: model server endpoint (default: none, popularity only)
  - SCORER_TIMEOUT, SCORER_API_KEY, SCORER_RATE_LIMIT, SCORER_RATE_BURST
  - SCORER_BREAKER_ENABLED, SCORER_BREAKER_TIMEOUT,
    SCORER_BREAKER_MIN_REQUESTS, SCORER_BREAKER_FAILURE_RATIO

Server and logging:
  - HTTP_HOST, HTTP_PORT (default: 0.0.0.0:8000)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW: per-IP limit (default: disabled)
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	rc := cfg.ToRecommendConfig()
*/
package config
