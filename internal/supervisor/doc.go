// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

/*
Package supervisor runs Recengine's long-lived services under suture v4.

# Overview

Services are split into two layers so a failing background job cannot take
the API down with it:

	RootSupervisor ("recengine")
	├── DataSupervisor ("data-layer")
	│   ├── PopularityService (cron-scheduled aggregation)
	│   └── ReloadService (SIGHUP config reload)
	└── APISupervisor ("api-layer")
	    └── APIService (binds the listener, drains on shutdown)

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.Component("supervisor")), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(popularitySvc)
	tree.AddAPIService(httpSvc)

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("supervisor stopped with error")
	}

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
Past FailureThreshold the supervisor waits FailureBackoff before the next
restart. A service that returns nil is not restarted.

# What Is NOT Supervised

The interaction store and the cache backend are libraries, not services.
Their connection pools reconnect on their own and are closed by main after
the tree stops.

# Debugging Shutdown

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", svc.Name).Msg("service did not stop in time")
	}
*/
package supervisor
