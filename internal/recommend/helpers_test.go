// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recengine/internal/cache"
)

// fakeStore is an in-memory interaction store with injectable failures.
type fakeStore struct {
	mu         sync.Mutex
	items      []string
	tallies    []InteractionTally
	scores     map[string]float64
	userCounts map[string]int64

	aggregateErr  error
	listErr       error
	replaceErr    error
	countErr      error
	popularityErr error

	// block, when set, makes AggregateInteractions wait until it is closed.
	block   chan struct{}
	entered chan struct{}

	// popularityBlock, when set, makes PopularityScores wait until it is closed.
	popularityBlock   chan struct{}
	popularityEntered chan struct{}

	replaceCalls    int
	popularityCalls atomic.Int64
}

func newFakeStore(items ...string) *fakeStore {
	return &fakeStore{
		items:      items,
		scores:     make(map[string]float64),
		userCounts: make(map[string]int64),
	}
}

func (f *fakeStore) AggregateInteractions(ctx context.Context) ([]InteractionTally, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.aggregateErr != nil {
		return nil, f.aggregateErr
	}
	out := make([]InteractionTally, len(f.tallies))
	copy(out, f.tallies)
	return out, nil
}

func (f *fakeStore) ListItems(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]string, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeStore) ReplacePopularityScores(_ context.Context, scores []PopularityScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	next := make(map[string]float64, len(scores))
	for _, s := range scores {
		next[s.ItemID] = s.Score
	}
	f.scores = next
	return nil
}

func (f *fakeStore) PopularityScores(ctx context.Context) ([]PopularityScore, error) {
	f.popularityCalls.Add(1)
	if f.popularityEntered != nil {
		select {
		case f.popularityEntered <- struct{}{}:
		default:
		}
	}
	if f.popularityBlock != nil {
		select {
		case <-f.popularityBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.popularityErr != nil {
		return nil, f.popularityErr
	}
	out := make([]PopularityScore, 0, len(f.items))
	for _, id := range f.items {
		out = append(out, PopularityScore{ItemID: id, Score: f.scores[id]})
	}
	return out, nil
}

func (f *fakeStore) UserInteractionCount(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.userCounts[userID], nil
}

func (f *fakeStore) setScores(scores map[string]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores = scores
}

func (f *fakeStore) setUserCount(userID string, n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCounts[userID] = n
}

func (f *fakeStore) storedScores() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.scores))
	for k, v := range f.scores {
		out[k] = v
	}
	return out
}

// fakeScorer delegates to fn and counts calls.
type fakeScorer struct {
	calls atomic.Int64
	fn    func(ctx context.Context, userID string, candidates []string) (map[string]float64, error)
}

func (s *fakeScorer) Score(ctx context.Context, userID string, candidates []string) (map[string]float64, error) {
	s.calls.Add(1)
	return s.fn(ctx, userID, candidates)
}

// staticScorer returns fixed scores.
func staticScorer(scores map[string]float64) *fakeScorer {
	return &fakeScorer{fn: func(context.Context, string, []string) (map[string]float64, error) {
		out := make(map[string]float64, len(scores))
		for k, v := range scores {
			out[k] = v
		}
		return out, nil
	}}
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestCache returns a Cache over a fresh memory backend.
func newTestCache(t *testing.T, cfg CacheConfig) (*Cache, *cache.Memory) {
	t.Helper()
	backend := cache.NewMemory(time.Hour)
	t.Cleanup(func() { _ = backend.Close() })
	return NewCache(backend, cfg, zerolog.Nop()), backend
}

// gatedBackend holds the first Set until release is closed.
type gatedBackend struct {
	*cache.Memory
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedBackend(t *testing.T) *gatedBackend {
	t.Helper()
	mem := cache.NewMemory(time.Hour)
	t.Cleanup(func() { _ = mem.Close() })
	return &gatedBackend{Memory: mem, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Memory.Set(ctx, key, value, ttl)
}

// newTestServer builds a Server over store with the given scorer.
func newTestServer(t *testing.T, cfg *Config, store *fakeStore, scorer Scorer) (*Server, *cache.Memory) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c, backend := newTestCache(t, cfg.Cache)
	srv, err := NewServer(cfg, ServerDeps{
		Cache:      c,
		Counter:    store,
		Popularity: store,
		Scorer:     scorer,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, backend
}

// itemIDs extracts ids from entries in order.
func itemIDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ItemID
	}
	return ids
}
