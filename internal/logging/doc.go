// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

// Package logging configures zerolog for recengine.
//
// Every line carries service=recengine. Long-lived components take a
// zerolog.Logger tagged with their name; request-scoped code logs through
// Ctx so request and correlation IDs follow the request:
//
//	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
//	agg, err := recommend.NewAggregator(st, popCfg, logging.Component("aggregator"))
//
//	logging.Ctx(r.Context()).Debug().Str("user_id", userID).Msg("Cache miss")
//
// Loggers attached with ContextWithLogger are stored in zerolog's own
// context slot, so zerolog.Ctx works on the same contexts.
//
// The supervisor tree logs through log/slog (sutureslog); NewSlogLogger
// bridges that into the same JSON stream.
package logging
