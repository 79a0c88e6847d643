// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

/*
Package store persists the item catalog, raw interactions and popularity scores.

Three implementations satisfy Store:

  - DuckDB: embedded database file, the default for single-node deployments
  - Postgres: PostgreSQL accessed through gorm, for shared deployments
  - Memory: process-local maps for tests and development

All of them share one schema:

	items(item_id PK, name, popularity_score, updated_at)
	interactions(user_id, item_id, interaction_type, occurred_at)

ReplacePopularityScores is transactional in every implementation. A failed
write leaves every previously stored score in place, and a score for an item
outside the catalog aborts the whole write with ErrUnknownItem.

RecordInteraction validates the record against the default weight table and
registers unseen item ids in the catalog with a zero score.

Usage:

	st, err := store.Open(ctx, store.Config{
	    Driver:      store.DriverDuckDB,
	    URL:         "/data/recengine.duckdb",
	    PoolMinSize: 10,
	    PoolMaxSize: 20,
	})
	if err != nil {
	    return err
	}
	defer st.Close()
*/
package store
