// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import (
	"context"
	"time"
)

// InteractionStore is what the Aggregator needs from durable storage.
// Implementations live in internal/store.
type InteractionStore interface {
	// AggregateInteractions returns interaction counts grouped by item and type.
	AggregateInteractions(ctx context.Context) ([]InteractionTally, error)

	// ListItems returns every catalog item id.
	ListItems(ctx context.Context) ([]string, error)

	// ReplacePopularityScores writes all scores as one transaction.
	// On error no score may have changed.
	ReplacePopularityScores(ctx context.Context, scores []PopularityScore) error
}

// PopularitySource reads the persisted popularity scores.
type PopularitySource interface {
	PopularityScores(ctx context.Context) ([]PopularityScore, error)
}

// InteractionCounter reports how many interactions a user has recorded.
type InteractionCounter interface {
	UserInteractionCount(ctx context.Context, userID string) (int64, error)
}

// InteractionRecorder persists new interaction events.
type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, rec *InteractionRecord) error
}

// Scorer produces personalized relevance scores for a user over a candidate set.
//
// Implementations must honor the deadline on ctx and return an error wrapping
// ErrScorerTimeout or ErrScorerUnavailable on failure. Items missing from the
// returned map are treated as unscored.
type Scorer interface {
	Score(ctx context.Context, userID string, candidates []string) (map[string]float64, error)
}

// CacheBackend is the raw key-value store behind the recommendation Cache.
// Implementations live in internal/cache.
type CacheBackend interface {
	// Get returns the value for key. found is false when the key is absent or expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key with the given lifetime.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteMatching removes every key matching a glob pattern where '*'
	// matches any run of characters, '?' one character and '\' escapes.
	DeleteMatching(ctx context.Context, pattern string) (int, error)
}
