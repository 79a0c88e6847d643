// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// InteractionType classifies a user-item interaction event.
type InteractionType string

const (
	// InteractionView is a passive impression or page view.
	InteractionView InteractionType = "view"
	// InteractionClick is an explicit click-through.
	InteractionClick InteractionType = "click"
	// InteractionLike is a positive rating.
	InteractionLike InteractionType = "like"
	// InteractionPurchase is a completed purchase.
	InteractionPurchase InteractionType = "purchase"
)

// String returns the wire name of the interaction type.
func (t InteractionType) String() string {
	return string(t)
}

// ParseInteractionType normalizes s and returns the matching type.
func ParseInteractionType(s string) (InteractionType, error) {
	t := InteractionType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case InteractionView, InteractionClick, InteractionLike, InteractionPurchase:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown interaction type %q", ErrInvalidInteraction, s)
	}
}

// InteractionWeights maps each interaction type to its contribution to an
// item's raw popularity.
type InteractionWeights map[InteractionType]float64

// DefaultInteractionWeights returns the standard weight table.
func DefaultInteractionWeights() InteractionWeights {
	return InteractionWeights{
		InteractionView:     1.0,
		InteractionClick:    2.0,
		InteractionLike:     2.5,
		InteractionPurchase: 3.0,
	}
}

// Weight returns the weight for t and whether t is known.
func (w InteractionWeights) Weight(t InteractionType) (float64, bool) {
	v, ok := w[t]
	return v, ok
}

// Validate checks that the table is non-empty and every weight is a finite positive number.
func (w InteractionWeights) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("weights must not be empty")
	}
	for t, v := range w {
		if t == "" {
			return fmt.Errorf("weights: empty interaction type")
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("weights.%s must be a positive finite number, got %v", t, v)
		}
	}
	return nil
}

// Clone returns an independent copy of the table.
func (w InteractionWeights) Clone() InteractionWeights {
	out := make(InteractionWeights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// InteractionRecord is a single immutable interaction event.
type InteractionRecord struct {
	// UserID identifies the acting user.
	UserID string `json:"user_id"`

	// ItemID identifies the catalog item.
	ItemID string `json:"item_id"`

	// Type is the interaction kind.
	Type InteractionType `json:"type"`

	// Timestamp is when the interaction happened.
	Timestamp time.Time `json:"timestamp"`
}

// Validate rejects records whose type has no weight or whose identifiers are empty.
func (r *InteractionRecord) Validate(weights InteractionWeights) error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: empty user_id", ErrInvalidInteraction)
	}
	if strings.TrimSpace(r.ItemID) == "" {
		return fmt.Errorf("%w: empty item_id", ErrInvalidInteraction)
	}
	if _, ok := weights.Weight(r.Type); !ok {
		return fmt.Errorf("%w: unknown interaction type %q", ErrInvalidInteraction, r.Type)
	}
	return nil
}

// InteractionTally is the number of interactions of one type for one item,
// as grouped by the interaction store.
type InteractionTally struct {
	ItemID string          `json:"item_id"`
	Type   InteractionType `json:"type"`
	Count  int64           `json:"count"`
}

// ItemAggregate is the weighted interaction total for one item before normalization.
type ItemAggregate struct {
	ItemID       string  `json:"item_id"`
	RawScore     float64 `json:"raw_score"`
	Interactions int64   `json:"interactions"`
}

// PopularityScore is the persisted, normalized popularity of an item.
type PopularityScore struct {
	// ItemID is the catalog item.
	ItemID string `json:"item_id"`

	// Score is in [0, 1]. Items without interactions score exactly 0.
	Score float64 `json:"score"`
}

// Entry is one ranked position in a recommendation list.
type Entry struct {
	ItemID string  `json:"item_id"`
	Rank   int     `json:"rank"`
	Score  float64 `json:"score"`
}

// CacheEntry is a stored recommendation list.
type CacheEntry struct {
	// Key is the cache key the entry was stored under.
	Key string `json:"key"`

	// Entries is the ordered recommendation list.
	Entries []Entry `json:"entries"`

	// ComputedAt is when the list was produced. Expiry is measured from here.
	ComputedAt time.Time `json:"computed_at"`

	// TTL is the lifetime of the entry.
	TTL time.Duration `json:"ttl"`
}

// Expired reports whether the entry is older than its TTL at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.ComputedAt) > e.TTL
}

// RequestContext holds the per-request facts used to pick a serving path.
type RequestContext struct {
	UserID           string `json:"user_id"`
	InteractionCount int64  `json:"interaction_count"`
}

// Source identifies which path produced a recommendation list.
type Source string

const (
	// SourceCache indicates the list came from the recommendation cache.
	SourceCache Source = "cache"
	// SourcePersonalized indicates the list came from the Scorer.
	SourcePersonalized Source = "personalized"
	// SourcePopularity indicates the popularity ranking was served.
	SourcePopularity Source = "popularity"
)

// Response is the result of a Recommend call.
type Response struct {
	// UserID is the requesting user.
	UserID string `json:"user_id"`

	// Entries is ordered by rank, at most top_n long.
	Entries []Entry `json:"entries"`

	// Source is the path that produced Entries. For cache hits it is the
	// path that originally computed the list.
	Source Source `json:"source"`

	// CacheHit is true when the list was served from the cache.
	CacheHit bool `json:"cache_hit"`

	// Degraded is true when the Scorer or the interaction store failed and
	// the popularity fallback was served instead.
	Degraded bool `json:"degraded"`

	// Shared is true when the result was computed by a concurrent request
	// for the same key.
	Shared bool `json:"shared,omitempty"`

	// Fingerprint identifies the serving configuration the list was built with.
	Fingerprint string `json:"fingerprint"`

	// ComputedAt is when the list was produced.
	ComputedAt time.Time `json:"computed_at"`

	// LatencyMS is the wall time spent in Recommend.
	LatencyMS int64 `json:"latency_ms"`
}

// AggregationReport summarizes one completed aggregation run.
type AggregationReport struct {
	// ItemsUpdated is the number of catalog items whose score was written.
	ItemsUpdated int `json:"items_updated"`

	// ItemsWithInteractions is the number of catalog items with a non-zero raw score.
	ItemsWithInteractions int `json:"items_with_interactions"`

	// SkippedRecords counts tallies dropped for an unknown type, empty item id or negative count.
	SkippedRecords int64 `json:"skipped_records"`

	// OrphanItems counts items that had interactions but are not in the catalog.
	OrphanItems int `json:"orphan_items"`

	// Leaderboard is the top-K items by score.
	Leaderboard []PopularityScore `json:"leaderboard"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// sortScores orders scores by score descending, then item id ascending.
func sortScores(scores []PopularityScore) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ItemID < scores[j].ItemID
	})
}
