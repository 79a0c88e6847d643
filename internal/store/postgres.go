// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/tomtom215/recengine/internal/logging"
	"github.com/tomtom215/recengine/internal/recommend"
)

type itemRow struct {
	ItemID          string     `gorm:"column:item_id;primaryKey"`
	Name            string     `gorm:"column:name;not null;default:''"`
	PopularityScore float64    `gorm:"column:popularity_score;not null;default:0"`
	UpdatedAt       *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (itemRow) TableName() string { return "items" }

type interactionRow struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID          string    `gorm:"column:user_id;not null;index:idx_interactions_user"`
	ItemID          string    `gorm:"column:item_id;not null"`
	InteractionType string    `gorm:"column:interaction_type;not null"`
	OccurredAt      time.Time `gorm:"column:occurred_at;not null"`
}

func (interactionRow) TableName() string { return "interactions" }

type tallyRow struct {
	ItemID          string `gorm:"column:item_id"`
	InteractionType string `gorm:"column:interaction_type"`
	Count           int64  `gorm:"column:count"`
}

type scoreRow struct {
	ItemID          string  `gorm:"column:item_id"`
	PopularityScore float64 `gorm:"column:popularity_score"`
}

// Postgres is a Store backed by PostgreSQL through gorm.
type Postgres struct {
	DB     *gorm.DB
	sqlDB  *sql.DB
	closed atomic.Bool
}

// NewPostgres connects to cfg.URL and migrates the schema.
func NewPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get postgres connection pool: %w", err)
	}
	configurePool(sqlDB, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		closeWithLog(sqlDB, "postgres connection")
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	p := &Postgres{DB: db, sqlDB: sqlDB}
	if err := db.WithContext(ctx).AutoMigrate(&itemRow{}, &interactionRow{}); err != nil {
		closeWithLog(sqlDB, "postgres connection")
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logging.Info().Int("pool_max", cfg.PoolMaxSize).Msg("Postgres store opened")
	return p, nil
}

func (r *Postgres) check(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return nil
}

// AggregateInteractions counts interactions grouped by item and type.
func (r *Postgres) AggregateInteractions(ctx context.Context) ([]recommend.InteractionTally, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	var rows []tallyRow
	err := r.DB.WithContext(ctx).
		Model(&interactionRow{}).
		Select("item_id, interaction_type, COUNT(*) AS count").
		Group("item_id, interaction_type").
		Order("item_id, interaction_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate interactions: %w", err)
	}

	out := make([]recommend.InteractionTally, len(rows))
	for i, row := range rows {
		out[i] = recommend.InteractionTally{
			ItemID: row.ItemID,
			Type:   recommend.InteractionType(row.InteractionType),
			Count:  row.Count,
		}
	}
	return out, nil
}

// ListItems returns every catalog item id.
func (r *Postgres) ListItems(ctx context.Context) ([]string, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	var ids []string
	if err := r.DB.WithContext(ctx).Model(&itemRow{}).Order("item_id").Pluck("item_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return ids, nil
}

// ReplacePopularityScores updates every score in one transaction.
func (r *Postgres) ReplacePopularityScores(ctx context.Context, scores []recommend.PopularityScore) error {
	if err := r.check(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range scores {
			result := tx.Model(&itemRow{}).
				Where("item_id = ?", s.ItemID).
				Updates(map[string]interface{}{
					"popularity_score": s.Score,
					"updated_at":       now,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to update score for %s: %w", s.ItemID, result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", ErrUnknownItem, s.ItemID)
			}
		}
		return nil
	})
}

// PopularityScores returns the stored score of every catalog item.
func (r *Postgres) PopularityScores(ctx context.Context) ([]recommend.PopularityScore, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	var rows []scoreRow
	err := r.DB.WithContext(ctx).
		Model(&itemRow{}).
		Select("item_id, popularity_score").
		Order("item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query popularity scores: %w", err)
	}

	out := make([]recommend.PopularityScore, len(rows))
	for i, row := range rows {
		out[i] = recommend.PopularityScore{ItemID: row.ItemID, Score: row.PopularityScore}
	}
	return out, nil
}

// UserInteractionCount returns how many interactions userID has recorded.
func (r *Postgres) UserInteractionCount(ctx context.Context, userID string) (int64, error) {
	if err := r.check(ctx); err != nil {
		return 0, err
	}

	var n int64
	if err := r.DB.WithContext(ctx).Model(&interactionRow{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return n, nil
}

// RecordInteraction inserts one interaction, registering the item in the
// catalog if it is new.
func (r *Postgres) RecordInteraction(ctx context.Context, rec *recommend.InteractionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := r.check(ctx); err != nil {
		return err
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item := itemRow{ItemID: rec.ItemID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&item).Error; err != nil {
			return fmt.Errorf("failed to register item: %w", err)
		}
		row := interactionRow{
			UserID:          rec.UserID,
			ItemID:          rec.ItemID,
			InteractionType: string(rec.Type),
			OccurredAt:      ts.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert interaction: %w", err)
		}
		return nil
	})
}

// UpsertItems adds items or updates their names, leaving scores alone.
func (r *Postgres) UpsertItems(ctx context.Context, items []Item) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	rows := make([]itemRow, len(items))
	for i, it := range items {
		if it.ItemID == "" {
			return ErrEmptyItemID
		}
		rows[i] = itemRow{ItemID: it.ItemID, Name: it.Name}
	}

	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Select("item_id", "name").
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert items: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (r *Postgres) Ping(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (r *Postgres) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := r.sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close postgres: %w", err)
	}
	return nil
}
