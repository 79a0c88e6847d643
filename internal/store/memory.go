// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/recengine/internal/recommend"
)

type memoryItem struct {
	name  string
	score float64
}

type tallyKey struct {
	itemID string
	typ    recommend.InteractionType
}

// Memory is a process-local Store used for tests and development.
type Memory struct {
	mu         sync.RWMutex
	items      map[string]*memoryItem
	tallies    map[tallyKey]int64
	userCounts map[string]int64
	closed     bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items:      make(map[string]*memoryItem),
		tallies:    make(map[tallyKey]int64),
		userCounts: make(map[string]int64),
	}
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	return nil
}

// AggregateInteractions returns counts grouped by item and type.
func (m *Memory) AggregateInteractions(ctx context.Context) ([]recommend.InteractionTally, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	out := make([]recommend.InteractionTally, 0, len(m.tallies))
	for k, n := range m.tallies {
		out = append(out, recommend.InteractionTally{ItemID: k.itemID, Type: k.typ, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

// ListItems returns every catalog item id in sorted order.
func (m *Memory) ListItems(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ReplacePopularityScores writes every score or none.
func (m *Memory) ReplacePopularityScores(ctx context.Context, scores []recommend.PopularityScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}

	for _, s := range scores {
		if _, ok := m.items[s.ItemID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownItem, s.ItemID)
		}
	}
	for _, s := range scores {
		m.items[s.ItemID].score = s.Score
	}
	return nil
}

// PopularityScores returns the stored score of every catalog item.
func (m *Memory) PopularityScores(ctx context.Context) ([]recommend.PopularityScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	out := make([]recommend.PopularityScore, 0, len(m.items))
	for id, it := range m.items {
		out = append(out, recommend.PopularityScore{ItemID: id, Score: it.score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

// UserInteractionCount returns how many interactions userID has recorded.
func (m *Memory) UserInteractionCount(ctx context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	return m.userCounts[userID], nil
}

// RecordInteraction stores one interaction. The item is added to the catalog
// when it is not already present.
func (m *Memory) RecordInteraction(ctx context.Context, rec *recommend.InteractionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}

	if _, ok := m.items[rec.ItemID]; !ok {
		m.items[rec.ItemID] = &memoryItem{}
	}
	m.tallies[tallyKey{itemID: rec.ItemID, typ: rec.Type}]++
	m.userCounts[rec.UserID]++
	return nil
}

// UpsertItems adds or renames catalog items.
func (m *Memory) UpsertItems(ctx context.Context, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}

	for _, it := range items {
		if it.ItemID == "" {
			return ErrEmptyItemID
		}
	}
	for _, it := range items {
		if existing, ok := m.items[it.ItemID]; ok {
			existing.name = it.Name
			continue
		}
		m.items[it.ItemID] = &memoryItem{name: it.Name}
	}
	return nil
}

// Ping reports whether the store is open.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check(ctx)
}

// Close marks the store closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
