// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recengine/internal/recommend"
)

// PopularityRunner performs one popularity aggregation run.
// Satisfied by *recommend.Aggregator.
type PopularityRunner interface {
	Run(ctx context.Context) error
}

// PopularityServiceConfig holds configuration for the popularity scheduler.
type PopularityServiceConfig struct {
	// Schedule is a standard cron expression or descriptor such as
	// "@every 1h" or "0 */6 * * *". Empty disables scheduled runs.
	Schedule string

	// RunOnStartup triggers one run as soon as the service starts.
	RunOnStartup bool

	// RunTimeout bounds a single run.
	// Default: 10m
	RunTimeout time.Duration
}

// PopularityService runs the popularity aggregator on a cron schedule under
// Suture supervision.
type PopularityService struct {
	runner   PopularityRunner
	config   PopularityServiceConfig
	schedule cron.Schedule
	logger   zerolog.Logger
	name     string
	now      func() time.Time
}

// NewPopularityService creates the scheduler. It fails on an unparseable
// schedule.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPopularityService(runner PopularityRunner, cfg PopularityServiceConfig, logger zerolog.Logger) (*PopularityService, error) {
	if runner == nil {
		return nil, fmt.Errorf("popularity runner is required")
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}

	var schedule cron.Schedule
	if cfg.Schedule != "" {
		parsed, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid popularity schedule %q: %w", cfg.Schedule, err)
		}
		schedule = parsed
	}

	return &PopularityService{
		runner:   runner,
		config:   cfg,
		schedule: schedule,
		logger:   logger.With().Str("service", "popularity-scheduler").Logger(),
		name:     "popularity-scheduler",
		now:      time.Now,
	}, nil
}

// Serve implements suture.Service. Run failures are logged and retried on
// the next tick; Serve only returns when ctx is done.
func (s *PopularityService) Serve(ctx context.Context) error {
	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Bool("run_on_startup", s.config.RunOnStartup).
		Dur("run_timeout", s.config.RunTimeout).
		Msg("popularity scheduler starting")

	if s.config.RunOnStartup {
		s.run(ctx, "startup")
	}

	if s.schedule == nil {
		s.logger.Info().Msg("no popularity schedule configured, scheduled runs disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		now := s.now()
		next := s.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("popularity scheduler shutting down")
			return ctx.Err()
		case <-timer.C:
			s.run(ctx, "schedule")
		}
	}
}

// run performs one bounded aggregation run.
func (s *PopularityService) run(ctx context.Context, trigger string) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	err := s.runner.Run(runCtx)
	switch {
	case err == nil:
		s.logger.Debug().Str("trigger", trigger).Msg("popularity run finished")
	case errors.Is(err, recommend.ErrAggregationInProgress):
		s.logger.Info().Str("trigger", trigger).Msg("popularity aggregation already running, skipping")
	case ctx.Err() != nil:
		s.logger.Debug().Str("trigger", trigger).Msg("popularity run interrupted by shutdown")
	default:
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("popularity run failed (will retry on schedule)")
	}
}

// String returns the service name for logging.
func (s *PopularityService) String() string {
	return s.name
}
