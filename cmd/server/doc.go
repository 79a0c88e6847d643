// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

/*
Package main is the entry point for the Recengine server.

Recengine recomputes per-item popularity scores from raw interaction events
and serves per-user recommendation lists. Users with enough history get a
personalized list from an external scoring model; everyone else gets the
popularity ranking. Computed lists are cached with a TTL and dropped
whenever popularity is recomputed.

# Application Architecture

The server runs under Suture v4 process supervision:

	RootSupervisor ("recengine")
	├── DataSupervisor ("data-layer")
	│   ├── Popularity scheduler (cron)
	│   └── Config reload (SIGHUP)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: koanf v2 with defaults, config.yaml and environment
 2. Logging: zerolog
 3. Interaction store: DuckDB, PostgreSQL (gorm) or memory
 4. Cache backend: memory, Redis or Badger
 5. Scorer: HTTP client behind a circuit breaker (optional)
 6. Recommendation server and popularity aggregator
 7. HTTP router (chi)
 8. Supervisor tree

# Signal Handling

SIGINT and SIGTERM stop the tree. The HTTP server drains in-flight requests
for up to SHUTDOWN_TIMEOUT, a running aggregation is cancelled, and the
store and cache are closed last.

SIGHUP reloads the configuration and applies the serving settings (top_n,
model_version, timeouts, concurrency, cache TTL) without a restart. A changed
fingerprint drops the lists cached under the old one. Other settings need a
restart.

# Example Usage

	export DATABASE_URL=postgresql://rec:secret@db:5432/recommendations
	export REDIS_URL=redis://cache:6379/0
	export SCORER_URL=http://model:9000/score
	./recengine

Development, everything in memory:

	DATABASE_URL=:memory: LOG_FORMAT=console ./recengine
*/
package main
