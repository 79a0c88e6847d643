// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tomtom215/recengine/internal/logging"
	"github.com/tomtom215/recengine/internal/recommend"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")

	// ErrUnknownItem is returned when a score targets an item outside the catalog.
	ErrUnknownItem = errors.New("item not in catalog")

	// ErrEmptyItemID is returned when an item has no id.
	ErrEmptyItemID = errors.New("empty item id")
)

// Item is a catalog entry.
type Item struct {
	ItemID string `json:"item_id" validate:"required,max=256"`
	Name   string `json:"name,omitempty" validate:"max=1024"`
}

// Store is the durable interaction and catalog store.
type Store interface {
	recommend.InteractionStore
	recommend.PopularitySource
	recommend.InteractionCounter
	recommend.InteractionRecorder

	// UpsertItems adds items to the catalog or updates their names.
	// Existing popularity scores are preserved.
	UpsertItems(ctx context.Context, items []Item) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	io.Closer
}

// Driver selects a Store implementation.
type Driver string

const (
	// DriverDuckDB is an embedded DuckDB database file.
	DriverDuckDB Driver = "duckdb"

	// DriverPostgres is a PostgreSQL server accessed through gorm.
	DriverPostgres Driver = "postgres"

	// DriverMemory keeps everything in process memory.
	DriverMemory Driver = "memory"
)

// Config selects and configures a Store.
type Config struct {
	Driver Driver

	// URL is the Postgres DSN, or the DuckDB file path (":memory:" or empty
	// for an in-memory database).
	URL string

	// PoolMinSize is the number of idle connections kept open.
	PoolMinSize int

	// PoolMaxSize caps open connections.
	PoolMaxSize int

	// ConnMaxLifetime recycles connections older than this. Zero keeps them.
	ConnMaxLifetime time.Duration
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverDuckDB:
		return NewDuckDB(ctx, cfg)
	case DriverPostgres:
		return NewPostgres(ctx, cfg)
	case DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// DriverFromURL infers the driver from a connection URL.
func DriverFromURL(url string) Driver {
	switch {
	case url == "" || url == ":memory:":
		return DriverMemory
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(url, "duckdb://"):
		return DriverDuckDB
	case strings.HasSuffix(url, ".duckdb"), strings.HasSuffix(url, ".db"):
		return DriverDuckDB
	default:
		return DriverPostgres
	}
}

// validateRecord checks rec against the default weight table.
func validateRecord(rec *recommend.InteractionRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", recommend.ErrInvalidInteraction)
	}
	return rec.Validate(recommend.DefaultInteractionWeights())
}

// closeWithLog closes c and logs failures.
func closeWithLog(c io.Closer, resource string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logging.Warn().Str("type", resource).Err(err).Msg("Failed to close resource")
	}
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*DuckDB)(nil)
	_ Store = (*Postgres)(nil)
)
