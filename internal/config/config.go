// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package config

import (
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/recengine/internal/cache"
	"github.com/tomtom215/recengine/internal/recommend"
	"github.com/tomtom215/recengine/internal/scorer"
	"github.com/tomtom215/recengine/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Cache      CacheConfig      `koanf:"cache"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Popularity PopularityConfig `koanf:"popularity"`
	Scorer     ScorerConfig     `koanf:"scorer"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables it.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig holds interaction store settings.
type DatabaseConfig struct {
	// URL is a Postgres DSN or a DuckDB file path.
	URL string `koanf:"url"`

	// Driver is duckdb, postgres or memory. Empty infers it from URL.
	Driver string `koanf:"driver"`

	PoolMinSize     int           `koanf:"pool_min_size"`
	PoolMaxSize     int           `koanf:"pool_max_size"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// CacheConfig holds recommendation cache settings.
type CacheConfig struct {
	// Backend is memory, redis or badger. Empty selects redis when
	// RedisURL is set and memory otherwise.
	Backend string `koanf:"backend"`

	KeyPrefix string        `koanf:"key_prefix"`
	TTL       time.Duration `koanf:"ttl"`

	RedisURL         string        `koanf:"redis_url"`
	RedisPoolSize    int           `koanf:"redis_pool_size"`
	RedisDialTimeout time.Duration `koanf:"redis_dial_timeout"`

	BadgerPath       string        `koanf:"badger_path"`
	BadgerGCInterval time.Duration `koanf:"badger_gc_interval"`

	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// RecommendConfig holds request-path settings.
type RecommendConfig struct {
	TopN                           int           `koanf:"top_n"`
	MinInteractionsForPersonalized int64         `koanf:"min_interactions_for_personalized"`
	RequestTimeout                 time.Duration `koanf:"request_timeout"`
	MaxConcurrentRequests          int64         `koanf:"max_concurrent_requests"`
	AdmissionWait                  time.Duration `koanf:"admission_wait"`
	ModelVersion                   string        `koanf:"model_version"`
	MaxCandidates                  int           `koanf:"max_candidates"`
}

// PopularityConfig holds aggregation settings.
type PopularityConfig struct {
	// Schedule is a cron expression or @every descriptor. Empty disables
	// scheduled runs.
	Schedule     string `koanf:"schedule"`
	RunOnStartup bool   `koanf:"run_on_startup"`

	// RunTimeout bounds a single aggregation run.
	RunTimeout time.Duration `koanf:"run_timeout"`

	NormalizationDivisor float64            `koanf:"normalization_divisor"`
	LeaderboardSize      int                `koanf:"leaderboard_size"`
	Weights              map[string]float64 `koanf:"weights"`
}

// ScorerConfig holds model server settings.
type ScorerConfig struct {
	// URL of the scoring endpoint. Empty serves popularity to everyone.
	URL          string        `koanf:"url"`
	Timeout      time.Duration `koanf:"timeout"`
	APIKey       string        `koanf:"api_key"`
	RateLimit    float64       `koanf:"rate_limit"`
	RateBurst    int           `koanf:"rate_burst"`
	MaxIdleConns int           `koanf:"max_idle_conns"`

	BreakerEnabled      bool          `koanf:"breaker_enabled"`
	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// StoreConfig converts database settings for store.Open.
func (c *Config) StoreConfig() store.Config {
	driver := store.Driver(c.Database.Driver)
	if driver == "" {
		driver = store.DriverFromURL(c.Database.URL)
	}
	return store.Config{
		Driver:          driver,
		URL:             c.Database.URL,
		PoolMinSize:     c.Database.PoolMinSize,
		PoolMaxSize:     c.Database.PoolMaxSize,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// CacheBackendKind resolves the cache backend, applying the redis_url rule.
func (c *Config) CacheBackendKind() cache.Kind {
	if c.Cache.Backend != "" {
		return cache.Kind(c.Cache.Backend)
	}
	if c.Cache.RedisURL != "" {
		return cache.KindRedis
	}
	return cache.KindMemory
}

// CacheBackendConfig converts cache settings for cache.New.
func (c *Config) CacheBackendConfig() cache.Config {
	return cache.Config{
		Kind:            c.CacheBackendKind(),
		CleanupInterval: c.Cache.CleanupInterval,
		Redis: cache.RedisConfig{
			URL:         c.Cache.RedisURL,
			PoolSize:    c.Cache.RedisPoolSize,
			DialTimeout: c.Cache.RedisDialTimeout,
		},
		Badger: cache.BadgerConfig{
			Path:       c.Cache.BadgerPath,
			GCInterval: c.Cache.BadgerGCInterval,
		},
	}
}

// ToRecommendConfig converts the serving, cache and popularity sections.
func (c *Config) ToRecommendConfig() *recommend.Config {
	weights := make(recommend.InteractionWeights, len(c.Popularity.Weights))
	for name, w := range c.Popularity.Weights {
		weights[recommend.InteractionType(name)] = w
	}
	return &recommend.Config{
		Serving: recommend.ServingConfig{
			TopN:                           c.Recommend.TopN,
			MinInteractionsForPersonalized: c.Recommend.MinInteractionsForPersonalized,
			RequestTimeout:                 c.Recommend.RequestTimeout,
			MaxConcurrentRequests:          c.Recommend.MaxConcurrentRequests,
			AdmissionWait:                  c.Recommend.AdmissionWait,
			ModelVersion:                   c.Recommend.ModelVersion,
			MaxCandidates:                  c.Recommend.MaxCandidates,
		},
		Cache: recommend.CacheConfig{
			KeyPrefix: c.Cache.KeyPrefix,
			TTL:       c.Cache.TTL,
		},
		Popularity: recommend.PopularityConfig{
			Weights:              weights,
			NormalizationDivisor: c.Popularity.NormalizationDivisor,
			LeaderboardSize:      c.Popularity.LeaderboardSize,
		},
	}
}

// ScorerHTTPConfig converts scorer settings for scorer.NewHTTP.
func (c *Config) ScorerHTTPConfig() scorer.Config {
	return scorer.Config{
		URL:          c.Scorer.URL,
		Timeout:      c.Scorer.Timeout,
		APIKey:       c.Scorer.APIKey,
		RateLimit:    c.Scorer.RateLimit,
		RateBurst:    c.Scorer.RateBurst,
		MaxIdleConns: c.Scorer.MaxIdleConns,
	}
}

// ScorerBreakerConfig converts breaker settings for scorer.NewBreaker.
func (c *Config) ScorerBreakerConfig() scorer.BreakerConfig {
	return scorer.BreakerConfig{
		Name:         "scorer",
		MaxRequests:  c.Scorer.BreakerMaxRequests,
		Interval:     c.Scorer.BreakerInterval,
		Timeout:      c.Scorer.BreakerTimeout,
		MinRequests:  c.Scorer.BreakerMinRequests,
		FailureRatio: c.Scorer.BreakerFailureRatio,
	}
}
