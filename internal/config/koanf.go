// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/recengine/config.yaml",
	"/etc/recengine/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RateLimitRequests: 0,
			RateLimitWindow:   time.Minute,
		},
		Database: DatabaseConfig{
			URL:             "recengine.duckdb",
			Driver:          "",
			PoolMinSize:     10,
			PoolMaxSize:     20,
			ConnMaxLifetime: time.Hour,
		},
		Cache: CacheConfig{
			Backend:          "",
			KeyPrefix:        "user_rec",
			TTL:              600 * time.Second,
			RedisURL:         "",
			RedisPoolSize:    0,
			RedisDialTimeout: 5 * time.Second,
			BadgerPath:       "",
			BadgerGCInterval: 10 * time.Minute,
			CleanupInterval:  time.Minute,
		},
		Recommend: RecommendConfig{
			TopN:                           10,
			MinInteractionsForPersonalized: 3,
			RequestTimeout:                 5 * time.Second,
			MaxConcurrentRequests:          1000,
			AdmissionWait:                  0,
			ModelVersion:                   "v1",
			MaxCandidates:                  500,
		},
		Popularity: PopularityConfig{
			Schedule:             "@every 1h",
			RunOnStartup:         true,
			RunTimeout:           10 * time.Minute,
			NormalizationDivisor: 100.0,
			LeaderboardSize:      10,
			Weights: map[string]float64{
				"view":     1.0,
				"click":    2.0,
				"like":     2.5,
				"purchase": 3.0,
			},
		},
		Scorer: ScorerConfig{
			URL:                 "",
			Timeout:             5 * time.Second,
			RateLimit:           0,
			RateBurst:           0,
			MaxIdleConns:        100,
			BreakerEnabled:      true,
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration in three layers, each overriding the last:
//
//  1. struct defaults
//  2. the YAML file named by CONFIG_PATH, or the first of DefaultConfigPaths
//  3. environment variables listed in envMappings
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment
	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first existing
// default path, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps lower-cased environment variable names to config paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	// Server
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_read_timeout":   "server.read_timeout",
	"http_write_timeout":  "server.write_timeout",
	"http_idle_timeout":   "server.idle_timeout",
	"shutdown_timeout":    "server.shutdown_timeout",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",

	// Database
	"database_url":         "database.url",
	"database_driver":      "database.driver",
	"db_pool_min_size":     "database.pool_min_size",
	"db_pool_max_size":     "database.pool_max_size",
	"db_conn_max_lifetime": "database.conn_max_lifetime",

	// Cache
	"cache_backend":          "cache.backend",
	"cache_key_prefix":       "cache.key_prefix",
	"redis_ttl":              "cache.ttl",
	"redis_url":              "cache.redis_url",
	"redis_pool_size":        "cache.redis_pool_size",
	"redis_dial_timeout":     "cache.redis_dial_timeout",
	"badger_path":            "cache.badger_path",
	"badger_gc_interval":     "cache.badger_gc_interval",
	"cache_cleanup_interval": "cache.cleanup_interval",

	// Serving
	"top_n_recommendations":             "recommend.top_n",
	"min_interactions_for_personalized": "recommend.min_interactions_for_personalized",
	"request_timeout":                   "recommend.request_timeout",
	"max_concurrent_requests":           "recommend.max_concurrent_requests",
	"admission_wait":                    "recommend.admission_wait",
	"model_version":                     "recommend.model_version",
	"max_candidates":                    "recommend.max_candidates",

	// Popularity
	"popularity_schedule":       "popularity.schedule",
	"popularity_run_on_startup": "popularity.run_on_startup",
	"popularity_run_timeout":    "popularity.run_timeout",
	"normalization_divisor":     "popularity.normalization_divisor",
	"leaderboard_size":          "popularity.leaderboard_size",
	"weight_view":               "popularity.weights.view",
	"weight_click":              "popularity.weights.click",
	"weight_like":               "popularity.weights.like",
	"weight_purchase":           "popularity.weights.purchase",

	// Scorer
	"scorer_url":                   "scorer.url",
	"scorer_timeout":               "scorer.timeout",
	"scorer_api_key":               "scorer.api_key",
	"scorer_rate_limit":            "scorer.rate_limit",
	"scorer_rate_burst":            "scorer.rate_burst",
	"scorer_max_idle_conns":        "scorer.max_idle_conns",
	"scorer_breaker_enabled":       "scorer.breaker_enabled",
	"scorer_breaker_timeout":       "scorer.breaker_timeout",
	"scorer_breaker_min_requests":  "scorer.breaker_min_requests",
	"scorer_breaker_failure_ratio": "scorer.breaker_failure_ratio",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// secondsPaths are duration settings that also accept a bare number of
// seconds, e.g. REDIS_TTL=600 or REQUEST_TIMEOUT=5.
var secondsPaths = map[string]bool{
	"cache.ttl":                 true,
	"recommend.request_timeout": true,
	"scorer.timeout":            true,
	"server.shutdown_timeout":   true,
}

// envTransform maps an environment variable to its config path and value.
// An empty path skips the variable.
func envTransform(key, value string) (string, interface{}) {
	path, ok := envMappings[strings.ToLower(key)]
	if !ok {
		return "", nil
	}
	if secondsPaths[path] {
		if n, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return path, time.Duration(n * float64(time.Second)).String()
		}
	}
	return path, value
}
