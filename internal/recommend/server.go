// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/recengine/internal/logging"
	"github.com/tomtom215/recengine/internal/metrics"
)

// ServerDeps are the collaborators of a Server.
type ServerDeps struct {
	// Cache stores computed lists. Required.
	Cache *Cache

	// Counter reports per-user interaction counts. Required.
	Counter InteractionCounter

	// Popularity reads the persisted popularity scores. Required.
	Popularity PopularitySource

	// Scorer produces personalized scores. When nil every user is served
	// the popularity ranking.
	Scorer Scorer
}

// servingState is an immutable snapshot of the serving configuration.
type servingState struct {
	config      ServingConfig
	ttl         time.Duration
	fingerprint string
	sem         *semaphore.Weighted
}

// popularitySnapshot is the full popularity ranking as loaded from storage.
// It is only served while gen matches the server's generation.
type popularitySnapshot struct {
	ranked []Entry
	gen    uint64
}

// computeResult is the outcome of one computation, shared by all
// singleflight callers for the same key.
type computeResult struct {
	entries    []Entry
	source     Source
	degraded   bool
	computedAt time.Time

	// gen is the generation of the popularity snapshot the result was built from.
	gen uint64
}

// Server answers recommendation requests.
type Server struct {
	cache      *Cache
	counter    InteractionCounter
	popularity PopularitySource
	scorer     Scorer
	logger     zerolog.Logger

	state      atomic.Pointer[servingState]
	reconfigMu sync.Mutex

	flights singleflight.Group

	snapshot       atomic.Pointer[popularitySnapshot]
	snapshotFlight singleflight.Group

	// generation increments on every popularity recompute. Computations
	// started under an older generation do not write to the cache.
	generation atomic.Uint64

	now func() time.Time
}

// NewServer creates a recommendation server.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewServer(cfg *Config, deps ServerDeps, logger zerolog.Logger) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if deps.Counter == nil {
		return nil, fmt.Errorf("interaction counter is required")
	}
	if deps.Popularity == nil {
		return nil, fmt.Errorf("popularity source is required")
	}
	if deps.Cache.Prefix() != cfg.Cache.KeyPrefix {
		return nil, fmt.Errorf("cache prefix %q does not match cache.key_prefix %q", deps.Cache.Prefix(), cfg.Cache.KeyPrefix)
	}

	s := &Server{
		cache:      deps.Cache,
		counter:    deps.Counter,
		popularity: deps.Popularity,
		scorer:     deps.Scorer,
		logger:     logger.With().Str("component", "recommend").Logger(),
		now:        time.Now,
	}
	s.state.Store(newServingState(cfg, nil))

	if s.scorer == nil {
		s.logger.Warn().Msg("no scorer configured, all users receive the popularity ranking")
	}
	return s, nil
}

// newServingState builds serving state, reusing prev's semaphore when the
// concurrency ceiling is unchanged.
func newServingState(cfg *Config, prev *servingState) *servingState {
	st := &servingState{
		config:      cfg.Serving,
		ttl:         cfg.Cache.TTL,
		fingerprint: cfg.Serving.Fingerprint(),
	}
	if prev != nil && prev.config.MaxConcurrentRequests == cfg.Serving.MaxConcurrentRequests {
		st.sem = prev.sem
	} else {
		st.sem = semaphore.NewWeighted(cfg.Serving.MaxConcurrentRequests)
	}
	return st
}

// Config returns the active serving configuration.
func (s *Server) Config() ServingConfig {
	return s.state.Load().config
}

// Fingerprint returns the active cache fingerprint.
func (s *Server) Fingerprint() string {
	return s.state.Load().fingerprint
}

// Recommend returns at most top_n ranked items for userID.
//
// A cache hit is returned without consulting the Scorer or taking a
// concurrency slot. On a miss the list is computed once per cache key;
// concurrent callers for the same key share the result. When the
// concurrency ceiling is reached ErrCapacityExceeded is returned.
func (s *Server) Recommend(ctx context.Context, userID string) (*Response, error) {
	start := s.now()
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidRequest)
	}

	st := s.state.Load()
	key := s.cache.Key(userID, st.fingerprint)

	if entry, source, ok := s.cache.get(ctx, key); ok {
		if source == "" {
			source = SourceCache
		}
		resp := &Response{
			UserID:      userID,
			Entries:     entry.Entries,
			Source:      source,
			CacheHit:    true,
			Fingerprint: st.fingerprint,
			ComputedAt:  entry.ComputedAt,
		}
		s.finish(resp, start, "ok")
		return resp, nil
	}

	ch := s.flights.DoChan(key, func() (interface{}, error) {
		return s.compute(ctx, st, key, userID)
	})

	select {
	case <-ctx.Done():
		metrics.RecordRecommendRequest("none", "error", s.now().Sub(start))
		return nil, ctx.Err()

	case res := <-ch:
		if res.Shared {
			metrics.RecommendSingleflightShared.Inc()
		}
		if res.Err != nil {
			return s.handleComputeError(ctx, st, userID, res.Err, res.Shared, start)
		}
		r, _ := res.Val.(*computeResult)
		resp := s.response(st, userID, r)
		resp.Shared = res.Shared
		outcome := "ok"
		if r.degraded {
			outcome = "degraded"
		}
		s.finish(resp, start, outcome)
		return resp, nil
	}
}

// handleComputeError maps a failed computation to the caller's result.
// Callers that shared another request's failed computation fall back to
// the popularity ranking on their own.
func (s *Server) handleComputeError(ctx context.Context, st *servingState, userID string, err error, shared bool, start time.Time) (*Response, error) {
	if errors.Is(err, ErrCapacityExceeded) {
		metrics.RecordRecommendRequest("none", "rejected", s.now().Sub(start))
		return nil, err
	}
	if shared {
		if r, ferr := s.fallback(ctx, st, true); ferr == nil {
			resp := s.response(st, userID, r)
			resp.Shared = true
			s.finish(resp, start, "degraded")
			return resp, nil
		}
	}
	metrics.RecordRecommendRequest("none", "error", s.now().Sub(start))
	return nil, err
}

// response builds a Response from a computation result.
func (s *Server) response(st *servingState, userID string, r *computeResult) *Response {
	return &Response{
		UserID:      userID,
		Entries:     r.entries,
		Source:      r.source,
		Degraded:    r.degraded,
		Fingerprint: st.fingerprint,
		ComputedAt:  r.computedAt,
	}
}

// finish stamps latency and records request metrics.
func (s *Server) finish(resp *Response, start time.Time, outcome string) {
	elapsed := s.now().Sub(start)
	resp.LatencyMS = elapsed.Milliseconds()
	label := string(resp.Source)
	if resp.CacheHit {
		label = string(SourceCache)
	}
	metrics.RecordRecommendRequest(label, outcome, elapsed)
}

// compute produces a list for userID while holding a concurrency slot.
// It runs detached from the leader's cancellation so that shared waiters
// are not failed by one caller going away; RequestTimeout bounds it instead.
func (s *Server) compute(parent context.Context, st *servingState, key, userID string) (*computeResult, error) {
	base := context.WithoutCancel(parent)
	if err := s.acquire(base, st); err != nil {
		return nil, err
	}
	defer s.release(st)

	gen := s.generation.Load()
	ctx, cancel := context.WithTimeout(base, st.config.RequestTimeout)
	defer cancel()

	count, err := s.counter.UserInteractionCount(ctx, userID)
	if err != nil {
		logging.Ctx(base).Warn().Err(err).Str("user_id", userID).Msg("interaction count unavailable, serving popularity")
		return s.fallback(base, st, true)
	}
	rc := RequestContext{UserID: userID, InteractionCount: count}

	if s.scorer == nil || rc.InteractionCount < st.config.MinInteractionsForPersonalized {
		res, err := s.popularityResult(ctx, st, false)
		if err != nil {
			return nil, err
		}
		s.store(base, st, key, res, gen)
		return res, nil
	}

	res, err := s.personalize(ctx, st, rc)
	if err != nil {
		logging.Ctx(base).Warn().Err(err).Str("user_id", userID).Msg("scorer failed, serving popularity")
		return s.fallback(base, st, true)
	}
	s.store(base, st, key, res, gen)
	return res, nil
}

// acquire takes a concurrency slot, waiting up to AdmissionWait when configured.
func (s *Server) acquire(ctx context.Context, st *servingState) error {
	if st.config.AdmissionWait <= 0 {
		if !st.sem.TryAcquire(1) {
			metrics.RecommendCapacityRejections.Inc()
			return ErrCapacityExceeded
		}
		metrics.TrackInflight(true)
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, st.config.AdmissionWait)
	defer cancel()
	if err := st.sem.Acquire(waitCtx, 1); err != nil {
		metrics.RecommendCapacityRejections.Inc()
		return ErrCapacityExceeded
	}
	metrics.TrackInflight(true)
	return nil
}

// release returns a concurrency slot.
func (s *Server) release(st *servingState) {
	st.sem.Release(1)
	metrics.TrackInflight(false)
}

// personalize asks the Scorer to score the top popularity candidates.
func (s *Server) personalize(ctx context.Context, st *servingState, rc RequestContext) (*computeResult, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w: %w", ErrSourceUnavailable, err)
	}

	n := len(snap.ranked)
	if st.config.MaxCandidates < n {
		n = st.config.MaxCandidates
	}
	candidates := make([]string, n)
	for i := 0; i < n; i++ {
		candidates[i] = snap.ranked[i].ItemID
	}
	if len(candidates) == 0 {
		return &computeResult{entries: []Entry{}, source: SourcePersonalized, computedAt: s.now(), gen: snap.gen}, nil
	}

	scores, err := s.callScorer(ctx, rc.UserID, candidates)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]float64, len(candidates))
	for _, id := range candidates {
		if v, ok := scores[id]; ok {
			allowed[id] = v
		}
	}
	return &computeResult{
		entries:    RankEntries(allowed, st.config.TopN),
		source:     SourcePersonalized,
		computedAt: s.now(),
		gen:        snap.gen,
	}, nil
}

// callScorer runs the Scorer and abandons it when ctx expires, so a Scorer
// that ignores its deadline still releases the caller's slot on time.
func (s *Server) callScorer(ctx context.Context, userID string, candidates []string) (map[string]float64, error) {
	type result struct {
		scores map[string]float64
		err    error
	}
	start := s.now()
	done := make(chan result, 1)
	go func() {
		scores, err := s.scorer.Score(ctx, userID, candidates)
		done <- result{scores, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = result{err: ctx.Err()}
	}

	timedOut := errors.Is(r.err, ErrScorerTimeout) || errors.Is(r.err, context.DeadlineExceeded)
	metrics.RecordScorerCall(s.now().Sub(start), r.err, timedOut)
	if r.err == nil {
		return r.scores, nil
	}
	switch {
	case errors.Is(r.err, ErrScorerTimeout), errors.Is(r.err, ErrScorerUnavailable):
		return nil, r.err
	case timedOut:
		return nil, fmt.Errorf("%w: %w", ErrScorerTimeout, r.err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrScorerUnavailable, r.err)
	}
}

// fallback serves the popularity ranking after a failure. It gets a fresh
// deadline because the failed step may have used up the request's.
func (s *Server) fallback(base context.Context, st *servingState, degraded bool) (*computeResult, error) {
	ctx, cancel := context.WithTimeout(base, st.config.RequestTimeout)
	defer cancel()
	return s.popularityResult(ctx, st, degraded)
}

// popularityResult returns the top-N popularity entries.
func (s *Server) popularityResult(ctx context.Context, st *servingState, degraded bool) (*computeResult, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load popularity ranking: %w: %w", ErrSourceUnavailable, err)
	}
	n := len(snap.ranked)
	if st.config.TopN < n {
		n = st.config.TopN
	}
	entries := make([]Entry, n)
	copy(entries, snap.ranked[:n])
	return &computeResult{
		entries:    entries,
		source:     SourcePopularity,
		degraded:   degraded,
		computedAt: s.now(),
		gen:        snap.gen,
	}, nil
}

// store writes a computed result to the cache unless a recompute happened
// since the computation began. A recompute that lands while the write is in
// flight cannot see the key yet, so the generation is checked again after
// the write and the key removed if it moved. Write failures are logged, not
// returned.
func (s *Server) store(base context.Context, st *servingState, key string, res *computeResult, gen uint64) {
	if res.gen != gen || s.generation.Load() != gen {
		s.logger.Debug().Str("key", key).Msg("popularity changed during computation, not caching")
		return
	}
	ctx, cancel := context.WithTimeout(base, st.config.RequestTimeout)
	defer cancel()
	entry, err := s.cache.put(ctx, key, res.entries, res.source, st.ttl)
	if err != nil {
		logging.Ctx(base).Warn().Err(err).Str("key", key).Msg("failed to cache recommendations")
		return
	}
	if s.generation.Load() != gen {
		s.logger.Debug().Str("key", key).Msg("popularity changed while caching, removing entry")
		s.cache.remove(ctx, key)
		return
	}
	res.computedAt = entry.ComputedAt
}

// currentSnapshot returns the cached ranking if it belongs to the current
// generation.
func (s *Server) currentSnapshot() *popularitySnapshot {
	snap := s.snapshot.Load()
	if snap == nil || snap.gen != s.generation.Load() {
		return nil
	}
	return snap
}

// loadSnapshot returns the in-memory popularity ranking, loading it once
// from storage when absent. The load is detached from ctx and bounded by
// RequestTimeout, so a caller that goes away does not fail the others
// sharing the load; that caller alone gets ctx.Err().
func (s *Server) loadSnapshot(ctx context.Context) (*popularitySnapshot, error) {
	if snap := s.currentSnapshot(); snap != nil {
		return snap, nil
	}
	timeout := s.state.Load().config.RequestTimeout
	base := context.WithoutCancel(ctx)

	ch := s.snapshotFlight.DoChan("popularity", func() (interface{}, error) {
		if snap := s.currentSnapshot(); snap != nil {
			return snap, nil
		}
		loadCtx, cancel := context.WithTimeout(base, timeout)
		defer cancel()

		gen := s.generation.Load()
		scores, err := s.popularity.PopularityScores(loadCtx)
		if err != nil {
			return nil, err
		}
		snap := &popularitySnapshot{ranked: RankPopularity(scores, len(scores)), gen: gen}
		s.snapshot.Store(snap)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snap, _ := res.Val.(*popularitySnapshot)
		return snap, nil
	}
}

// Popular returns the top k items of the current popularity ranking.
func (s *Server) Popular(ctx context.Context, k int) ([]Entry, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load popularity ranking: %w: %w", ErrSourceUnavailable, err)
	}
	if k > len(snap.ranked) || k <= 0 {
		k = len(snap.ranked)
	}
	out := make([]Entry, k)
	copy(out, snap.ranked[:k])
	return out, nil
}

// HandleRecompute drops the popularity snapshot and invalidates every cached
// list. Register it with Aggregator.OnComplete.
func (s *Server) HandleRecompute(ctx context.Context, report *AggregationReport) {
	s.snapshot.Store(nil)
	s.generation.Add(1)

	n, err := s.cache.InvalidateAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("cache invalidation after recompute failed")
		return
	}
	ev := s.logger.Info().Int("invalidated", n)
	if report != nil {
		ev = ev.Int("items_updated", report.ItemsUpdated)
	}
	ev.Msg("recommendation cache invalidated after popularity recompute")
}

// InvalidateUser removes cached lists for one user.
func (s *Server) InvalidateUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: empty user id", ErrInvalidRequest)
	}
	return s.cache.InvalidateUser(ctx, userID)
}

// Reconfigure swaps the serving configuration. When the fingerprint
// changes, entries cached under the previous fingerprint are invalidated.
// The cache key prefix cannot change at runtime.
func (s *Server) Reconfigure(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Cache.KeyPrefix != s.cache.Prefix() {
		return fmt.Errorf("%w: cache.key_prefix cannot change at runtime", ErrInvalidConfig)
	}

	s.reconfigMu.Lock()
	defer s.reconfigMu.Unlock()

	prev := s.state.Load()
	next := newServingState(cfg, prev)
	s.state.Store(next)

	s.logger.Info().
		Str("old_fingerprint", prev.fingerprint).
		Str("new_fingerprint", next.fingerprint).
		Int("top_n", next.config.TopN).
		Str("model_version", next.config.ModelVersion).
		Msg("serving configuration updated")

	if prev.fingerprint == next.fingerprint {
		return nil
	}
	if _, err := s.cache.InvalidateFingerprint(ctx, prev.fingerprint); err != nil {
		return fmt.Errorf("invalidate previous fingerprint: %w", err)
	}
	return nil
}
