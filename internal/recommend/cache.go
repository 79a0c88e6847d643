// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package recommend

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recengine/internal/metrics"
)

// Cache stores recommendation lists keyed by user and serving fingerprint.
//
// Entries expire ttl after their computed_at timestamp. An expired entry
// read through Get is reported as a miss and removed immediately, even if
// the backend has not yet evicted it.
type Cache struct {
	backend CacheBackend
	prefix  string
	ttl     time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// cacheRecord is the stored encoding of a CacheEntry.
type cacheRecord struct {
	Entries    []Entry   `json:"entries"`
	Source     Source    `json:"source,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
	TTLSeconds float64   `json:"ttl_seconds"`
}

// NewCache creates a recommendation cache over backend.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCache(backend CacheBackend, cfg CacheConfig, logger zerolog.Logger) *Cache {
	return &Cache{
		backend: backend,
		prefix:  cfg.KeyPrefix,
		ttl:     cfg.TTL,
		logger:  logger.With().Str("component", "recommend-cache").Logger(),
		now:     time.Now,
	}
}

// Prefix returns the key namespace.
func (c *Cache) Prefix() string {
	return c.prefix
}

// Key builds the cache key for a user under a serving fingerprint. The user
// segment is query-escaped, so it never contains ':' or a glob character and
// per-user patterns cannot match another user's keys.
func (c *Cache) Key(userID, fingerprint string) string {
	return c.prefix + ":" + userSegment(userID) + ":" + fingerprint
}

func userSegment(userID string) string {
	return url.QueryEscape(userID)
}

// Get returns the entry stored under key. Backend errors and undecodable
// values are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	entry, _, ok := c.get(ctx, key)
	return entry, ok
}

// get is Get that also returns the source the entry was computed from.
func (c *Cache) get(ctx context.Context, key string) (*CacheEntry, Source, bool) {
	data, found, err := c.backend.Get(ctx, key)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		metrics.CacheMisses.Inc()
		return nil, "", false
	}
	if !found {
		metrics.CacheMisses.Inc()
		return nil, "", false
	}

	var rec cacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		metrics.CacheErrors.WithLabelValues("decode").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		c.remove(ctx, key)
		metrics.CacheMisses.Inc()
		return nil, "", false
	}

	entry := &CacheEntry{
		Key:        key,
		Entries:    rec.Entries,
		ComputedAt: rec.ComputedAt,
		TTL:        time.Duration(rec.TTLSeconds * float64(time.Second)),
	}
	if entry.Expired(c.now()) {
		c.remove(ctx, key)
		metrics.CacheExpired.Inc()
		metrics.CacheMisses.Inc()
		return nil, "", false
	}

	metrics.CacheHits.Inc()
	return entry, rec.Source, true
}

// Put stores entries under key with the cache's default TTL.
func (c *Cache) Put(ctx context.Context, key string, entries []Entry) (*CacheEntry, error) {
	return c.put(ctx, key, entries, "", c.ttl)
}

// PutWithTTL stores entries under key with a custom TTL.
func (c *Cache) PutWithTTL(ctx context.Context, key string, entries []Entry, ttl time.Duration) (*CacheEntry, error) {
	return c.put(ctx, key, entries, "", ttl)
}

// put encodes and writes an entry, overwriting any previous value.
func (c *Cache) put(ctx context.Context, key string, entries []Entry, source Source, ttl time.Duration) (*CacheEntry, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if entries == nil {
		entries = []Entry{}
	}
	now := c.now()
	data, err := json.Marshal(cacheRecord{
		Entries:    entries,
		Source:     source,
		ComputedAt: now,
		TTLSeconds: ttl.Seconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		return nil, fmt.Errorf("cache set %s: %w", key, err)
	}
	return &CacheEntry{Key: key, Entries: entries, ComputedAt: now, TTL: ttl}, nil
}

// Invalidate removes the entry under an exact key, or every entry matching
// a glob pattern when keyOrPattern contains '*' or '?'. It returns the
// number of entries removed; exact-key deletes report 1.
func (c *Cache) Invalidate(ctx context.Context, keyOrPattern string) (int, error) {
	return c.invalidate(ctx, keyOrPattern, "manual")
}

// InvalidateAll removes every entry under the cache prefix.
func (c *Cache) InvalidateAll(ctx context.Context) (int, error) {
	return c.invalidate(ctx, c.prefix+":*", "recompute")
}

// InvalidateUser removes every entry for userID across fingerprints.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) (int, error) {
	return c.invalidate(ctx, c.prefix+":"+escapeGlob(userSegment(userID))+":*", "user")
}

// InvalidateFingerprint removes every entry built under fingerprint.
func (c *Cache) InvalidateFingerprint(ctx context.Context, fingerprint string) (int, error) {
	return c.invalidate(ctx, c.prefix+":*:"+escapeGlob(fingerprint), "fingerprint")
}

// invalidate dispatches to exact or pattern deletion and records metrics.
func (c *Cache) invalidate(ctx context.Context, keyOrPattern, reason string) (int, error) {
	if !isGlob(keyOrPattern) {
		if err := c.backend.Delete(ctx, keyOrPattern); err != nil {
			metrics.CacheErrors.WithLabelValues("delete").Inc()
			return 0, fmt.Errorf("cache delete %s: %w", keyOrPattern, err)
		}
		metrics.CacheInvalidations.WithLabelValues(reason).Inc()
		return 1, nil
	}

	n, err := c.backend.DeleteMatching(ctx, keyOrPattern)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("delete_matching").Inc()
		return n, fmt.Errorf("cache delete matching %s: %w", keyOrPattern, err)
	}
	metrics.CacheInvalidations.WithLabelValues(reason).Add(float64(n))
	c.logger.Debug().Str("pattern", keyOrPattern).Int("removed", n).Str("reason", reason).Msg("cache invalidated")
	return n, nil
}

// remove deletes key, logging failures.
func (c *Cache) remove(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, key); err != nil {
		metrics.CacheErrors.WithLabelValues("delete").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

// isGlob reports whether s contains an unescaped wildcard.
func isGlob(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '*', '?':
			return true
		}
	}
	return false
}

// escapeGlob escapes characters that CacheBackend patterns treat specially.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
