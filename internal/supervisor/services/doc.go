// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

// Package services adapts Recengine's long-running components to
// suture.Service.
//
// APIService binds the API listener on every start and drains in-flight
// requests when its context is canceled. A bind or accept failure is
// returned to the supervisor, which restarts the service after backoff.
//
// PopularityService runs the popularity aggregator on a robfig/cron
// schedule, optionally once at startup. Failed runs are logged and retried
// on the next tick; a run skipped because another is in progress is not a
// failure.
//
// ReloadService re-reads the configuration on SIGHUP and applies the serving
// settings through recommend.Server.Reconfigure. A failed reload is logged
// and the running configuration stays in place.
//
//	popSvc, err := services.NewPopularityService(aggregator, services.PopularityServiceConfig{
//	    Schedule:     cfg.Popularity.Schedule,
//	    RunOnStartup: cfg.Popularity.RunOnStartup,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	tree.AddDataService(popSvc)
//	tree.AddAPIService(services.NewAPIService(srv, srv.Addr, cfg.Server.ShutdownTimeout, logger))
package services
