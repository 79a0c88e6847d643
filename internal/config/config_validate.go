// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/recengine/internal/cache"
	"github.com/tomtom215/recengine/internal/logging"
	"github.com/tomtom215/recengine/internal/store"
)

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validatePopularity(); err != nil {
		return err
	}
	if err := c.validateScorer(); err != nil {
		return err
	}
	if err := c.ToRecommendConfig().Validate(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitRequests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 0, got %d", c.Server.RateLimitRequests)
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch store.Driver(c.Database.Driver) {
	case "", store.DriverDuckDB, store.DriverPostgres, store.DriverMemory:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be duckdb, postgres or memory, got %q", c.Database.Driver)
	}
	if c.StoreConfig().Driver == store.DriverPostgres && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	if c.Database.PoolMinSize < 0 {
		return fmt.Errorf("DB_POOL_MIN_SIZE must be >= 0, got %d", c.Database.PoolMinSize)
	}
	if c.Database.PoolMaxSize < 1 {
		return fmt.Errorf("DB_POOL_MAX_SIZE must be >= 1, got %d", c.Database.PoolMaxSize)
	}
	if c.Database.PoolMinSize > c.Database.PoolMaxSize {
		return fmt.Errorf("DB_POOL_MIN_SIZE (%d) must not exceed DB_POOL_MAX_SIZE (%d)",
			c.Database.PoolMinSize, c.Database.PoolMaxSize)
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.CacheBackendKind() {
	case cache.KindMemory, cache.KindBadger:
	case cache.KindRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache backend")
		}
		u, err := url.Parse(c.Cache.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("REDIS_URL must be a redis:// or rediss:// URL, got %q", c.Cache.RedisURL)
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory, redis or badger, got %q", c.Cache.Backend)
	}
	if strings.ContainsAny(c.Cache.KeyPrefix, "*?[]\\") {
		return fmt.Errorf("CACHE_KEY_PREFIX must not contain glob characters, got %q", c.Cache.KeyPrefix)
	}
	return nil
}

func (c *Config) validatePopularity() error {
	if c.Popularity.Schedule != "" {
		if _, err := cron.ParseStandard(c.Popularity.Schedule); err != nil {
			return fmt.Errorf("POPULARITY_SCHEDULE %q is invalid: %w", c.Popularity.Schedule, err)
		}
	}
	if c.Popularity.RunTimeout <= 0 {
		return fmt.Errorf("POPULARITY_RUN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateScorer() error {
	if c.Scorer.URL == "" {
		return nil
	}
	u, err := url.Parse(c.Scorer.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SCORER_URL must be an http(s) URL, got %q", c.Scorer.URL)
	}
	if c.Scorer.RateLimit < 0 {
		return fmt.Errorf("SCORER_RATE_LIMIT must be >= 0")
	}
	if c.Scorer.BreakerEnabled && (c.Scorer.BreakerFailureRatio <= 0 || c.Scorer.BreakerFailureRatio > 1) {
		return fmt.Errorf("SCORER_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.Scorer.BreakerFailureRatio)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
