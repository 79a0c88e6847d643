// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var sampleEntries = []Entry{
	{ItemID: "i1", Rank: 1, Score: 0.9},
	{ItemID: "i2", Rank: 2, Score: 0.4},
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, DefaultConfig().Cache)
	tests := []struct {
		userID string
		want   string
	}{
		{"u42", "user_rec:u42:0123abcd0123abcd"},
		{"a:b", "user_rec:a%3Ab:0123abcd0123abcd"},
		{"u*?", "user_rec:u%2A%3F:0123abcd0123abcd"},
		{"name with spaces", "user_rec:name+with+spaces:0123abcd0123abcd"},
	}
	for _, tt := range tests {
		if got := c.Key(tt.userID, "0123abcd0123abcd"); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.userID, got, tt.want)
		}
	}
}

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, DefaultConfig().Cache)
	clock := newTestClock()
	c.now = clock.Now
	ctx := context.Background()
	key := c.Key("u1", "fp")

	stored, err := c.Put(ctx, key, sampleEntries)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !stored.ComputedAt.Equal(clock.Now()) || stored.TTL != 600*time.Second {
		t.Errorf("stored entry = %+v", stored)
	}

	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("Get missed a fresh entry")
	}
	if !reflect.DeepEqual(got.Entries, sampleEntries) {
		t.Errorf("Entries = %+v", got.Entries)
	}
	if !got.ComputedAt.Equal(stored.ComputedAt) {
		t.Errorf("ComputedAt = %v, want %v", got.ComputedAt, stored.ComputedAt)
	}
	if got.Key != key {
		t.Errorf("Key = %q", got.Key)
	}
}

func TestCacheGet_ExpiryMeasuredFromComputedAt(t *testing.T) {
	t.Parallel()

	c, backend := newTestCache(t, DefaultConfig().Cache)
	clock := newTestClock()
	c.now = clock.Now
	ctx := context.Background()
	key := c.Key("u1", "fp")

	if _, err := c.PutWithTTL(ctx, key, sampleEntries, 30*time.Second); err != nil {
		t.Fatalf("PutWithTTL: %v", err)
	}

	clock.Advance(30 * time.Second)
	if _, ok := c.Get(ctx, key); !ok {
		t.Fatal("entry expired at exactly its ttl")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expired entry returned")
	}
	if backend.Len() != 0 {
		t.Errorf("expired entry not deleted, backend holds %d", backend.Len())
	}
}

func TestCachePut_OverwritesAndEmptyList(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, DefaultConfig().Cache)
	ctx := context.Background()
	key := c.Key("u1", "fp")

	_, _ = c.Put(ctx, key, sampleEntries)
	if _, err := c.Put(ctx, key, nil); err != nil {
		t.Fatalf("Put(nil): %v", err)
	}
	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("empty list not cached")
	}
	if got.Entries == nil || len(got.Entries) != 0 {
		t.Errorf("Entries = %#v, want empty slice", got.Entries)
	}
}

func TestCacheGet_UndecodableIsMiss(t *testing.T) {
	t.Parallel()

	c, backend := newTestCache(t, DefaultConfig().Cache)
	ctx := context.Background()
	key := c.Key("u1", "fp")

	_ = backend.Set(ctx, key, []byte("{not json"), time.Minute)
	if _, ok := c.Get(ctx, key); ok {
		t.Error("undecodable entry returned as hit")
	}
	if backend.Len() != 0 {
		t.Error("undecodable entry not removed")
	}
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seed := func(t *testing.T) (*Cache, func(string) bool) {
		c, _ := newTestCache(t, DefaultConfig().Cache)
		for _, k := range []string{
			c.Key("u1", "fpA"), c.Key("u1", "fpB"),
			c.Key("u2", "fpA"),
			c.Key("u*", "fpA"),
		} {
			if _, err := c.Put(ctx, k, sampleEntries); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}
		has := func(k string) bool {
			_, ok := c.Get(ctx, k)
			return ok
		}
		return c, has
	}

	t.Run("exact key", func(t *testing.T) {
		t.Parallel()
		c, has := seed(t)
		n, err := c.Invalidate(ctx, c.Key("u1", "fpA"))
		if err != nil || n != 1 {
			t.Fatalf("Invalidate = %d, %v", n, err)
		}
		if has(c.Key("u1", "fpA")) || !has(c.Key("u1", "fpB")) {
			t.Error("exact invalidation removed the wrong keys")
		}
	})

	t.Run("pattern", func(t *testing.T) {
		t.Parallel()
		c, has := seed(t)
		n, err := c.Invalidate(ctx, "user_rec:*:fpA")
		if err != nil || n != 3 {
			t.Fatalf("Invalidate = %d, %v; want 3", n, err)
		}
		if !has(c.Key("u1", "fpB")) {
			t.Error("pattern removed a non-matching key")
		}
	})

	t.Run("user", func(t *testing.T) {
		t.Parallel()
		c, has := seed(t)
		n, err := c.InvalidateUser(ctx, "u1")
		if err != nil || n != 2 {
			t.Fatalf("InvalidateUser = %d, %v; want 2", n, err)
		}
		if !has(c.Key("u2", "fpA")) || !has(c.Key("u*", "fpA")) {
			t.Error("other users' entries removed")
		}
	})

	t.Run("user id with glob characters", func(t *testing.T) {
		t.Parallel()
		c, has := seed(t)
		n, err := c.InvalidateUser(ctx, "u*")
		if err != nil || n != 1 {
			t.Fatalf("InvalidateUser(u*) = %d, %v; want 1", n, err)
		}
		if !has(c.Key("u1", "fpA")) {
			t.Error("'*' in a user id matched other users")
		}
	})

	t.Run("user id containing the key separator", func(t *testing.T) {
		t.Parallel()
		c, has := seed(t)
		for _, k := range []string{c.Key("a", "fpA"), c.Key("a:b", "fpA"), c.Key("a:b", "fpB")} {
			if _, err := c.Put(ctx, k, sampleEntries); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}
		n, err := c.InvalidateUser(ctx, "a")
		if err != nil || n != 1 {
			t.Fatalf("InvalidateUser(a) = %d, %v; want 1", n, err)
		}
		if !has(c.Key("a:b", "fpA")) || !has(c.Key("a:b", "fpB")) {
			t.Error("invalidating user a removed entries of user a:b")
		}
	})

	t.Run("fingerprint", func(t *testing.T) {
		t.Parallel()
		c, has := seed(t)
		n, err := c.InvalidateFingerprint(ctx, "fpA")
		if err != nil || n != 3 {
			t.Fatalf("InvalidateFingerprint = %d, %v; want 3", n, err)
		}
		if !has(c.Key("u1", "fpB")) {
			t.Error("entry under another fingerprint removed")
		}
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		c, has := seed(t)
		n, err := c.InvalidateAll(ctx)
		if err != nil || n != 4 {
			t.Fatalf("InvalidateAll = %d, %v; want 4", n, err)
		}
		if has(c.Key("u1", "fpB")) {
			t.Error("entry survived InvalidateAll")
		}
	})
}

// failingBackend fails every operation.
type failingBackend struct{ err error }

func (f failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f failingBackend) Delete(context.Context, string) error { return f.err }
func (f failingBackend) DeleteMatching(context.Context, string) (int, error) {
	return 0, f.err
}

func TestCache_BackendErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	c := NewCache(failingBackend{err: boom}, DefaultConfig().Cache, zerolog.Nop())
	ctx := context.Background()

	if _, ok := c.Get(ctx, "user_rec:u1:fp"); ok {
		t.Error("Get reported a hit on backend failure")
	}
	if _, err := c.Put(ctx, "user_rec:u1:fp", sampleEntries); !errors.Is(err, boom) {
		t.Errorf("Put err = %v", err)
	}
	if _, err := c.InvalidateAll(ctx); !errors.Is(err, boom) {
		t.Errorf("InvalidateAll err = %v", err)
	}
	if _, err := c.Invalidate(ctx, "user_rec:u1:fp"); !errors.Is(err, boom) {
		t.Errorf("Invalidate err = %v", err)
	}
}

func TestIsGlobAndEscape(t *testing.T) {
	t.Parallel()

	if isGlob("user_rec:u1:fp") {
		t.Error("plain key treated as glob")
	}
	if !isGlob("user_rec:*") || !isGlob("user_rec:u?") {
		t.Error("wildcard not detected")
	}
	if isGlob(`user_rec:u\*`) {
		t.Error("escaped '*' treated as wildcard")
	}
	if got := escapeGlob(`a*b?c[d]e\f`); got != `a\*b\?c\[d\]e\\f` {
		t.Errorf("escapeGlob = %q", got)
	}
	if got := escapeGlob("plain"); got != "plain" {
		t.Errorf("escapeGlob(plain) = %q", got)
	}
}
