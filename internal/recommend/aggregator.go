// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recengine/internal/metrics"
)

// CompletionHook is called after every successful aggregation run, while the
// run still holds the single-writer lock.
type CompletionHook func(ctx context.Context, report *AggregationReport)

// Aggregator recomputes item popularity from raw interactions.
type Aggregator struct {
	store  InteractionStore
	config PopularityConfig
	logger zerolog.Logger

	runMu sync.Mutex

	hooksMu sync.RWMutex
	hooks   []CompletionHook

	lastReport atomic.Pointer[AggregationReport]
	lastError  atomic.Pointer[string]

	now func() time.Time
}

// NewAggregator creates an aggregator over store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAggregator(store InteractionStore, cfg PopularityConfig, logger zerolog.Logger) (*Aggregator, error) {
	if store == nil {
		return nil, fmt.Errorf("interaction store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Weights = cfg.Weights.Clone()

	return &Aggregator{
		store:  store,
		config: cfg,
		logger: logger.With().Str("component", "popularity-aggregator").Logger(),
		now:    time.Now,
	}, nil
}

// OnComplete registers a hook to run after each successful recompute.
func (a *Aggregator) OnComplete(hook CompletionHook) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.hooks = append(a.hooks, hook)
}

// Run performs one aggregation run. It satisfies the scheduler's task interface.
func (a *Aggregator) Run(ctx context.Context) error {
	_, err := a.Recompute(ctx)
	return err
}

// Recompute reads all interactions, computes normalized scores for every
// catalog item and replaces the stored scores in one transaction.
//
// Only one run may be active; a concurrent call returns
// ErrAggregationInProgress without waiting. On any store failure the
// stored scores are left untouched.
func (a *Aggregator) Recompute(ctx context.Context) (*AggregationReport, error) {
	if !a.runMu.TryLock() {
		metrics.RecordAggregation(0, 0, 0, nil, true)
		return nil, ErrAggregationInProgress
	}
	defer a.runMu.Unlock()

	start := a.now()
	a.logger.Info().Msg("starting popularity aggregation")

	report, err := a.recompute(ctx, start)
	duration := a.now().Sub(start)
	if err != nil {
		msg := err.Error()
		a.lastError.Store(&msg)
		metrics.RecordAggregation(duration, 0, 0, err, false)
		a.logger.Error().Err(err).Dur("duration", duration).Msg("popularity aggregation failed")
		return nil, err
	}
	report.Duration = duration

	a.lastReport.Store(report)
	a.lastError.Store(nil)
	metrics.RecordAggregation(duration, report.ItemsUpdated, report.SkippedRecords, nil, false)
	a.publishLeaderboard(report.Leaderboard)

	a.logger.Info().
		Int("items_updated", report.ItemsUpdated).
		Int("items_with_interactions", report.ItemsWithInteractions).
		Int64("skipped_records", report.SkippedRecords).
		Int("orphan_items", report.OrphanItems).
		Dur("duration", duration).
		Msg("popularity aggregation complete")

	// Scores are committed; hooks must run even if the caller has gone away.
	a.runHooks(context.WithoutCancel(ctx), report)
	return report, nil
}

// recompute does the work of one run.
func (a *Aggregator) recompute(ctx context.Context, start time.Time) (*AggregationReport, error) {
	tallies, err := a.store.AggregateInteractions(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate interactions: %w: %w", ErrSourceUnavailable, err)
	}

	items, err := a.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w: %w", ErrSourceUnavailable, err)
	}

	totals, skipped := SumWeightedInteractions(tallies, a.config.Weights)
	if skipped > 0 {
		a.logger.Warn().Int64("skipped_records", skipped).Msg("skipped malformed interaction records")
	}

	scores, withInteractions, orphans := a.normalize(items, totals)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregation canceled: %w", err)
	}
	if err := a.store.ReplacePopularityScores(ctx, scores); err != nil {
		return nil, fmt.Errorf("write popularity scores: %w: %w", ErrSourceUnavailable, err)
	}

	return &AggregationReport{
		ItemsUpdated:          len(scores),
		ItemsWithInteractions: withInteractions,
		SkippedRecords:        skipped,
		OrphanItems:           orphans,
		Leaderboard:           Leaderboard(scores, a.config.LeaderboardSize),
		StartedAt:             start,
	}, nil
}

// normalize produces one score per catalog item. Items without interactions
// score 0; interaction totals for ids outside the catalog are counted as orphans.
func (a *Aggregator) normalize(items []string, totals map[string]ItemAggregate) (scores []PopularityScore, withInteractions, orphans int) {
	seen := make(map[string]struct{}, len(items))
	scores = make([]PopularityScore, 0, len(items))
	for _, id := range items {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		agg, ok := totals[id]
		score := 0.0
		if ok {
			score = NormalizeScore(agg.RawScore, a.config.NormalizationDivisor)
			if score > 0 {
				withInteractions++
			}
		}
		scores = append(scores, PopularityScore{ItemID: id, Score: score})
	}

	for id := range totals {
		if _, ok := seen[id]; !ok {
			orphans++
		}
	}
	return scores, withInteractions, orphans
}

// publishLeaderboard logs and exports the top-K items.
func (a *Aggregator) publishLeaderboard(board []PopularityScore) {
	ids := make([]string, len(board))
	values := make([]float64, len(board))
	for i, s := range board {
		ids[i] = s.ItemID
		values[i] = s.Score
		a.logger.Info().
			Int("rank", i+1).
			Str("item_id", s.ItemID).
			Float64("score", s.Score).
			Msg("popularity leaderboard")
	}
	if err := metrics.UpdateLeaderboard(ids, values); err != nil {
		a.logger.Warn().Err(err).Msg("failed to export leaderboard")
	}
}

// runHooks invokes registered completion hooks in registration order.
func (a *Aggregator) runHooks(ctx context.Context, report *AggregationReport) {
	a.hooksMu.RLock()
	hooks := make([]CompletionHook, len(a.hooks))
	copy(hooks, a.hooks)
	a.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, report)
	}
}

// LastReport returns the report of the last successful run, or nil.
func (a *Aggregator) LastReport() *AggregationReport {
	return a.lastReport.Load()
}

// LastError returns the error message of the most recent run if it failed.
func (a *Aggregator) LastError() string {
	if msg := a.lastError.Load(); msg != nil {
		return *msg
	}
	return ""
}

// Running reports whether a run is in progress.
func (a *Aggregator) Running() bool {
	if a.runMu.TryLock() {
		a.runMu.Unlock()
		return false
	}
	return true
}
