// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import (
	"math"
	"strings"
)

// SumWeightedInteractions folds grouped interaction counts into per-item
// weighted totals. Tallies with an unknown type, an empty item id or a
// negative count are skipped; their counts are returned in skipped.
func SumWeightedInteractions(tallies []InteractionTally, weights InteractionWeights) (totals map[string]ItemAggregate, skipped int64) {
	totals = make(map[string]ItemAggregate)
	for _, t := range tallies {
		w, ok := weights.Weight(t.Type)
		if !ok || strings.TrimSpace(t.ItemID) == "" || t.Count < 0 {
			if t.Count > 0 {
				skipped += t.Count
			} else if t.Count < 0 {
				skipped++
			}
			continue
		}
		agg := totals[t.ItemID]
		agg.ItemID = t.ItemID
		agg.RawScore += w * float64(t.Count)
		agg.Interactions += t.Count
		totals[t.ItemID] = agg
	}
	return totals, skipped
}

// NormalizeScore maps a raw weighted total into [0, 1].
func NormalizeScore(raw, divisor float64) float64 {
	if raw <= 0 || math.IsNaN(raw) || divisor <= 0 {
		return 0
	}
	return math.Min(raw/divisor, 1.0)
}

// RankEntries orders scored items by score descending, then item id
// ascending, and returns at most topN entries with ranks starting at 1.
// Non-finite scores are dropped.
func RankEntries(scores map[string]float64, topN int) []Entry {
	ranked := make([]PopularityScore, 0, len(scores))
	for id, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		ranked = append(ranked, PopularityScore{ItemID: id, Score: s})
	}
	sortScores(ranked)
	return rankSorted(ranked, topN)
}

// RankPopularity returns the top-N popularity entries. The input is not modified.
func RankPopularity(scores []PopularityScore, topN int) []Entry {
	ranked := make([]PopularityScore, len(scores))
	copy(ranked, scores)
	sortScores(ranked)
	return rankSorted(ranked, topN)
}

// Leaderboard returns the k highest scoring items in ranking order.
func Leaderboard(scores []PopularityScore, k int) []PopularityScore {
	ranked := make([]PopularityScore, len(scores))
	copy(ranked, scores)
	sortScores(ranked)
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

// rankSorted converts pre-sorted scores into ranked entries.
func rankSorted(sorted []PopularityScore, topN int) []Entry {
	if topN < 0 {
		topN = 0
	}
	n := len(sorted)
	if topN < n {
		n = topN
	}
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		entries[i] = Entry{ItemID: sorted[i].ItemID, Rank: i + 1, Score: sorted[i].Score}
	}
	return entries
}
