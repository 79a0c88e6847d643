// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB database/sql driver

	"github.com/tomtom215/recengine/internal/logging"
	"github.com/tomtom215/recengine/internal/recommend"
)

var duckdbSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		item_id VARCHAR PRIMARY KEY,
		name VARCHAR NOT NULL DEFAULT '',
		popularity_score DOUBLE NOT NULL DEFAULT 0,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS interactions (
		user_id VARCHAR NOT NULL,
		item_id VARCHAR NOT NULL,
		interaction_type VARCHAR NOT NULL,
		occurred_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions (user_id)`,
}

// DuckDB is a Store backed by an embedded DuckDB database.
type DuckDB struct {
	conn   *sql.DB
	path   string
	closed atomic.Bool
}

// NewDuckDB opens (creating if needed) the database at cfg.URL and applies the schema.
func NewDuckDB(ctx context.Context, cfg Config) (*DuckDB, error) {
	path := strings.TrimPrefix(cfg.URL, "duckdb://")
	if path == ":memory:" {
		path = ""
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeWithLog(conn, "duckdb connection")
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	configurePool(conn, cfg)

	db := &DuckDB{conn: conn, path: path}
	if err := db.initialize(ctx); err != nil {
		closeWithLog(conn, "duckdb connection")
		return nil, err
	}

	logging.Info().Str("path", displayPath(path)).Msg("DuckDB store opened")
	return db, nil
}

// configurePool sizes the connection pool from cfg, defaulting to one
// connection per CPU.
func configurePool(conn *sql.DB, cfg Config) {
	maxOpen := cfg.PoolMaxSize
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU()
	}
	minIdle := cfg.PoolMinSize
	if minIdle <= 0 || minIdle > maxOpen {
		minIdle = min(2, maxOpen)
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}

	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(minIdle)
	conn.SetConnMaxLifetime(lifetime)
	conn.SetConnMaxIdleTime(5 * time.Minute)
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

func (db *DuckDB) initialize(ctx context.Context) error {
	for _, stmt := range duckdbSchema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (db *DuckDB) check() error {
	if db.closed.Load() {
		return ErrClosed
	}
	return nil
}

// AggregateInteractions counts interactions grouped by item and type.
func (db *DuckDB) AggregateInteractions(ctx context.Context) ([]recommend.InteractionTally, error) {
	if err := db.check(); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_id, interaction_type, COUNT(*)
		FROM interactions
		GROUP BY item_id, interaction_type
		ORDER BY item_id, interaction_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate interactions: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []recommend.InteractionTally
	for rows.Next() {
		var t recommend.InteractionTally
		var typ string
		if err := rows.Scan(&t.ItemID, &typ, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan interaction tally: %w", err)
		}
		t.Type = recommend.InteractionType(typ)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interaction tallies: %w", err)
	}
	return out, nil
}

// ListItems returns every catalog item id.
func (db *DuckDB) ListItems(ctx context.Context) ([]string, error) {
	if err := db.check(); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT item_id FROM items ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	return ids, nil
}

// ReplacePopularityScores updates every score in a single transaction.
// A score for an item outside the catalog aborts the transaction.
func (db *DuckDB) ReplacePopularityScores(ctx context.Context, scores []recommend.PopularityScore) (err error) {
	if err := db.check(); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Failed to rollback score update")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `UPDATE items SET popularity_score = ?, updated_at = ? WHERE item_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare score update: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	now := time.Now().UTC()
	for _, s := range scores {
		res, execErr := stmt.ExecContext(ctx, s.Score, now, s.ItemID)
		if execErr != nil {
			return fmt.Errorf("failed to update score for %s: %w", s.ItemID, execErr)
		}
		if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownItem, s.ItemID)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit score update: %w", err)
	}
	return nil
}

// PopularityScores returns the stored score of every catalog item.
func (db *DuckDB) PopularityScores(ctx context.Context) ([]recommend.PopularityScore, error) {
	if err := db.check(); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT item_id, popularity_score FROM items ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query popularity scores: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []recommend.PopularityScore
	for rows.Next() {
		var s recommend.PopularityScore
		if err := rows.Scan(&s.ItemID, &s.Score); err != nil {
			return nil, fmt.Errorf("failed to scan popularity score: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read popularity scores: %w", err)
	}
	return out, nil
}

// UserInteractionCount returns how many interactions userID has recorded.
func (db *DuckDB) UserInteractionCount(ctx context.Context, userID string) (int64, error) {
	if err := db.check(); err != nil {
		return 0, err
	}

	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return n, nil
}

// RecordInteraction inserts one interaction, registering the item in the
// catalog if it is new.
func (db *DuckDB) RecordInteraction(ctx context.Context, rec *recommend.InteractionRecord) (err error) {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := db.check(); err != nil {
		return err
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Failed to rollback interaction insert")
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO items (item_id) VALUES (?) ON CONFLICT (item_id) DO NOTHING`, rec.ItemID); err != nil {
		return fmt.Errorf("failed to register item: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO interactions (user_id, item_id, interaction_type, occurred_at) VALUES (?, ?, ?, ?)`,
		rec.UserID, rec.ItemID, string(rec.Type), ts.UTC()); err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit interaction: %w", err)
	}
	return nil
}

// UpsertItems adds items or updates their names, leaving scores alone.
func (db *DuckDB) UpsertItems(ctx context.Context, items []Item) (err error) {
	if err := db.check(); err != nil {
		return err
	}
	for _, it := range items {
		if it.ItemID == "" {
			return ErrEmptyItemID
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Failed to rollback item upsert")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (item_id, name) VALUES (?, ?)
		ON CONFLICT (item_id) DO UPDATE SET name = excluded.name`)
	if err != nil {
		return fmt.Errorf("failed to prepare item upsert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	for _, it := range items {
		if _, err = stmt.ExecContext(ctx, it.ItemID, it.Name); err != nil {
			return fmt.Errorf("failed to upsert item %s: %w", it.ItemID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item upsert: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (db *DuckDB) Ping(ctx context.Context) error {
	if err := db.check(); err != nil {
		return err
	}
	return db.conn.PingContext(ctx)
}

// Close checkpoints the WAL and closes the database.
func (db *DuckDB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}

	if db.path != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint DuckDB before close")
		}
		cancel()
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close duckdb: %w", err)
	}
	return nil
}
