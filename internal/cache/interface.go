// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package cache

import (
	"context"
	"fmt"
	"time"
)

// Backend is a byte-oriented key/value store with per-key TTLs and glob
// deletes. All implementations in this package satisfy it.
type Backend interface {
	// Get returns the value and true, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// DeleteMatching removes every key matching a MatchPattern glob.
	DeleteMatching(ctx context.Context, pattern string) (int, error)

	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Kind selects a Backend implementation.
type Kind string

const (
	// KindMemory is a process-local map. Entries are lost on restart and
	// are not shared between instances.
	KindMemory Kind = "memory"

	// KindRedis stores entries in Redis, shared by every instance.
	KindRedis Kind = "redis"

	// KindBadger stores entries in an embedded BadgerDB on local disk.
	KindBadger Kind = "badger"
)

// Config selects and configures a Backend.
type Config struct {
	Kind Kind

	// CleanupInterval applies to KindMemory.
	CleanupInterval time.Duration

	// Redis applies to KindRedis.
	Redis RedisConfig

	// Badger applies to KindBadger.
	Badger BadgerConfig
}

// New creates the backend selected by cfg.Kind.
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Kind {
	case KindMemory, "":
		return NewMemory(cfg.CleanupInterval), nil
	case KindRedis:
		return NewRedis(ctx, cfg.Redis)
	case KindBadger:
		return NewBadger(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Kind)
	}
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*Redis)(nil)
	_ Backend = (*Badger)(nil)
)
