// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/recengine/internal/api"
	"github.com/tomtom215/recengine/internal/cache"
	"github.com/tomtom215/recengine/internal/config"
	"github.com/tomtom215/recengine/internal/logging"
	"github.com/tomtom215/recengine/internal/recommend"
	"github.com/tomtom215/recengine/internal/scorer"
	"github.com/tomtom215/recengine/internal/store"
	"github.com/tomtom215/recengine/internal/supervisor"
	"github.com/tomtom215/recengine/internal/supervisor/services"
)

// startupTimeout bounds opening the store and cache backend.
const startupTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Recengine stopped with an error")
	}
}

//nolint:gocyclo // Sequential setup steps
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeCfg := cfg.StoreConfig()
	cacheCfg := cfg.CacheBackendConfig()
	logging.Info().
		Str("store_driver", string(storeCfg.Driver)).
		Str("cache_backend", string(cacheCfg.Kind)).
		Bool("scorer_enabled", cfg.Scorer.URL != "").
		Str("popularity_schedule", cfg.Popularity.Schedule).
		Msg("Configuration loaded")

	startCtx, cancelStart := context.WithTimeout(ctx, startupTimeout)
	defer cancelStart()

	// Interaction store
	st, err := store.Open(startCtx, storeCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing interaction store")
		}
	}()

	// Cache backend
	backend, err := cache.New(startCtx, cacheCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing cache backend")
		}
	}()

	// Scorer (optional)
	var sc recommend.Scorer
	if cfg.Scorer.URL != "" {
		httpScorer, err := scorer.NewHTTP(cfg.ScorerHTTPConfig())
		if err != nil {
			return err
		}
		sc = httpScorer
		if cfg.Scorer.BreakerEnabled {
			sc = scorer.NewBreaker(httpScorer, cfg.ScorerBreakerConfig(), logging.Component("scorer"))
		}
	}

	// Recommendation core
	recCfg := cfg.ToRecommendConfig()
	server, err := recommend.NewServer(recCfg, recommend.ServerDeps{
		Cache:      recommend.NewCache(backend, recCfg.Cache, logging.Component("rec-cache")),
		Counter:    st,
		Popularity: st,
		Scorer:     sc,
	}, logging.Component("recommender"))
	if err != nil {
		return err
	}

	aggregator, err := recommend.NewAggregator(st, recCfg.Popularity, logging.Component("aggregator"))
	if err != nil {
		return err
	}
	aggregator.OnComplete(server.HandleRecompute)

	// HTTP API
	handler, err := api.NewHandler(api.Dependencies{
		Recommender: server,
		Recomputer:  aggregator,
		Store:       st,
		Cache:       backend,
	}, logging.Component("api"))
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(handler, api.RouterConfig{
			RateLimitRequests: cfg.Server.RateLimitRequests,
			RateLimitWindow:   cfg.Server.RateLimitWindow,
		}, logging.Component("http")),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Supervisor tree
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.Component("supervisor")), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	if err != nil {
		return err
	}

	popularity, err := services.NewPopularityService(aggregator, services.PopularityServiceConfig{
		Schedule:     cfg.Popularity.Schedule,
		RunOnStartup: cfg.Popularity.RunOnStartup,
		RunTimeout:   cfg.Popularity.RunTimeout,
	}, logging.Component("supervisor"))
	if err != nil {
		return err
	}
	tree.AddDataService(popularity)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	reload, err := services.NewReloadService(hup, func() (*recommend.Config, error) {
		next, err := config.Load()
		if err != nil {
			return nil, err
		}
		return next.ToRecommendConfig(), nil
	}, server, logging.Component("supervisor"))
	if err != nil {
		return err
	}
	tree.AddDataService(reload)
	tree.AddAPIService(services.NewAPIService(httpServer, httpServer.Addr, cfg.Server.ShutdownTimeout, logging.Component("supervisor")))

	logging.Info().
		Str("addr", httpServer.Addr).
		Interface("services", tree.Services()).
		Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
		treeErr = err
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Recengine stopped")
	return treeErr
}
