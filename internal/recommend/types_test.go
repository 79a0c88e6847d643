// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseInteractionType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    InteractionType
		wantErr bool
	}{
		{"view", InteractionView, false},
		{"click", InteractionClick, false},
		{" LIKE ", InteractionLike, false},
		{"Purchase", InteractionPurchase, false},
		{"share", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseInteractionType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInteraction) {
				t.Errorf("err %v does not wrap ErrInvalidInteraction", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultInteractionWeights(t *testing.T) {
	t.Parallel()

	w := DefaultInteractionWeights()
	want := map[InteractionType]float64{
		InteractionView:     1.0,
		InteractionClick:    2.0,
		InteractionLike:     2.5,
		InteractionPurchase: 3.0,
	}
	for typ, v := range want {
		got, ok := w.Weight(typ)
		if !ok || got != v {
			t.Errorf("Weight(%s) = %v, %v; want %v", typ, got, ok, v)
		}
	}
	if _, ok := w.Weight("share"); ok {
		t.Error("unknown type should have no weight")
	}
	if err := w.Validate(); err != nil {
		t.Errorf("default weights invalid: %v", err)
	}
}

func TestInteractionWeightsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		w       InteractionWeights
		wantErr bool
	}{
		{"empty", InteractionWeights{}, true},
		{"zero", InteractionWeights{InteractionView: 0}, true},
		{"negative", InteractionWeights{InteractionView: -1}, true},
		{"nan", InteractionWeights{InteractionView: math.NaN()}, true},
		{"inf", InteractionWeights{InteractionView: math.Inf(1)}, true},
		{"empty type", InteractionWeights{"": 1}, true},
		{"custom", InteractionWeights{"share": 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.w.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInteractionWeightsClone(t *testing.T) {
	t.Parallel()

	w := DefaultInteractionWeights()
	c := w.Clone()
	c[InteractionView] = 9
	if w[InteractionView] != 1.0 {
		t.Error("Clone shares storage with the original")
	}
}

func TestInteractionRecordValidate(t *testing.T) {
	t.Parallel()

	weights := DefaultInteractionWeights()
	now := time.Now()
	tests := []struct {
		name    string
		rec     InteractionRecord
		wantErr bool
	}{
		{"valid", InteractionRecord{UserID: "u1", ItemID: "i1", Type: InteractionView, Timestamp: now}, false},
		{"empty user", InteractionRecord{ItemID: "i1", Type: InteractionView}, true},
		{"blank item", InteractionRecord{UserID: "u1", ItemID: "  ", Type: InteractionView}, true},
		{"unknown type", InteractionRecord{UserID: "u1", ItemID: "i1", Type: "share"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.rec.Validate(weights)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInteraction) {
				t.Errorf("err %v does not wrap ErrInvalidInteraction", err)
			}
		})
	}
}

func TestCacheEntryExpired(t *testing.T) {
	t.Parallel()

	computed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &CacheEntry{ComputedAt: computed, TTL: 600 * time.Second}

	if e.Expired(computed.Add(599 * time.Second)) {
		t.Error("expired before ttl")
	}
	if e.Expired(computed.Add(600 * time.Second)) {
		t.Error("expired at exactly ttl")
	}
	if !e.Expired(computed.Add(601 * time.Second)) {
		t.Error("not expired after ttl")
	}
}

func TestSortScores(t *testing.T) {
	t.Parallel()

	scores := []PopularityScore{
		{ItemID: "E", Score: 0.5},
		{ItemID: "B", Score: 0.9},
		{ItemID: "D", Score: 0.5},
		{ItemID: "A", Score: 0.9},
		{ItemID: "C", Score: 0.7},
	}
	sortScores(scores)

	got := make([]string, len(scores))
	for i, s := range scores {
		got[i] = s.ItemID
	}
	want := []string{"A", "B", "C", "D", "E"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
