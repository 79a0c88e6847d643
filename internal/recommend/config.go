// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Config contains all configuration for aggregation and serving.
type Config struct {
	// Serving contains request-path parameters.
	Serving ServingConfig `json:"serving"`

	// Cache contains recommendation cache parameters.
	Cache CacheConfig `json:"cache"`

	// Popularity contains aggregation parameters.
	Popularity PopularityConfig `json:"popularity"`
}

// ServingConfig contains request-path parameters.
type ServingConfig struct {
	// TopN is the maximum length of a recommendation list.
	// Default: 10.
	TopN int `json:"top_n"`

	// MinInteractionsForPersonalized is the interaction count below which a
	// user is served the popularity ranking.
	// Default: 3.
	MinInteractionsForPersonalized int64 `json:"min_interactions_for_personalized"`

	// RequestTimeout bounds a single computation, including the Scorer call.
	// Default: 5s.
	RequestTimeout time.Duration `json:"request_timeout"`

	// MaxConcurrentRequests is the ceiling on in-flight computations.
	// Default: 1000.
	MaxConcurrentRequests int64 `json:"max_concurrent_requests"`

	// AdmissionWait is how long a computation may wait for a slot.
	// Zero rejects immediately when the ceiling is reached.
	// Default: 0.
	AdmissionWait time.Duration `json:"admission_wait"`

	// ModelVersion identifies the Scorer model. Part of the cache fingerprint.
	// Default: "v1".
	ModelVersion string `json:"model_version"`

	// MaxCandidates is the number of top popularity items offered to the Scorer.
	// Default: 500.
	MaxCandidates int `json:"max_candidates"`
}

// CacheConfig contains recommendation cache parameters.
type CacheConfig struct {
	// KeyPrefix namespaces every cache key.
	// Default: "user_rec".
	KeyPrefix string `json:"key_prefix"`

	// TTL is the lifetime of a cached list measured from its computation.
	// Default: 600s.
	TTL time.Duration `json:"ttl"`
}

// PopularityConfig contains aggregation parameters.
type PopularityConfig struct {
	// Weights maps interaction types to their contribution.
	// Default: view=1.0, click=2.0, like=2.5, purchase=3.0.
	Weights InteractionWeights `json:"weights"`

	// NormalizationDivisor scales raw weighted totals into [0, 1].
	// Default: 100.0.
	NormalizationDivisor float64 `json:"normalization_divisor"`

	// LeaderboardSize is the number of items reported after each run.
	// Default: 10.
	LeaderboardSize int `json:"leaderboard_size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Serving: ServingConfig{
			TopN:                           10,
			MinInteractionsForPersonalized: 3,
			RequestTimeout:                 5 * time.Second,
			MaxConcurrentRequests:          1000,
			AdmissionWait:                  0,
			ModelVersion:                   "v1",
			MaxCandidates:                  500,
		},
		Cache: CacheConfig{
			KeyPrefix: "user_rec",
			TTL:       600 * time.Second,
		},
		Popularity: PopularityConfig{
			Weights:              DefaultInteractionWeights(),
			NormalizationDivisor: 100.0,
			LeaderboardSize:      10,
		},
	}
}

// Validate checks the configuration for errors.
// Every failure wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.Serving.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Popularity.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks the serving parameters.
//
//nolint:gocritic // value receiver keeps the config immutable
func (s ServingConfig) Validate() error {
	if s.TopN <= 0 {
		return fmt.Errorf("serving.top_n must be positive")
	}
	if s.MinInteractionsForPersonalized < 0 {
		return fmt.Errorf("serving.min_interactions_for_personalized must be non-negative")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("serving.request_timeout must be positive")
	}
	if s.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("serving.max_concurrent_requests must be positive")
	}
	if s.AdmissionWait < 0 {
		return fmt.Errorf("serving.admission_wait must be non-negative")
	}
	if s.MaxCandidates < s.TopN {
		return fmt.Errorf("serving.max_candidates (%d) must be >= serving.top_n (%d)", s.MaxCandidates, s.TopN)
	}
	return nil
}

// Validate checks the cache parameters.
func (c CacheConfig) Validate() error {
	if strings.TrimSpace(c.KeyPrefix) == "" {
		return fmt.Errorf("cache.key_prefix must not be empty")
	}
	if strings.ContainsAny(c.KeyPrefix, `*?[]\:`) {
		return fmt.Errorf("cache.key_prefix must not contain glob characters or ':'")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	return nil
}

// Validate checks the aggregation parameters.
func (p PopularityConfig) Validate() error {
	if err := p.Weights.Validate(); err != nil {
		return fmt.Errorf("popularity.%w", err)
	}
	if math.IsNaN(p.NormalizationDivisor) || math.IsInf(p.NormalizationDivisor, 0) || p.NormalizationDivisor <= 0 {
		return fmt.Errorf("popularity.normalization_divisor must be a positive finite number")
	}
	if p.LeaderboardSize < 0 {
		return fmt.Errorf("popularity.leaderboard_size must be non-negative")
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Popularity.Weights = c.Popularity.Weights.Clone()
	return &clone
}

// Fingerprint identifies the parts of the configuration that change the
// content of a recommendation list. It is embedded in every cache key.
//
//nolint:gocritic // value receiver keeps the config immutable
func (s ServingConfig) Fingerprint() string {
	data, err := json.Marshal(struct {
		TopN         int    `json:"top_n"`
		ModelVersion string `json:"model_version"`
	}{s.TopN, s.ModelVersion})
	if err != nil {
		data = []byte(fmt.Sprintf("%d|%s", s.TopN, s.ModelVersion))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
