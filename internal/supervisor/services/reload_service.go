// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recengine/internal/recommend"
)

// Reconfigurer applies a new serving configuration.
// Satisfied by *recommend.Server.
type Reconfigurer interface {
	Reconfigure(ctx context.Context, cfg *recommend.Config) error
}

// ConfigLoader re-reads the recommendation configuration from its sources.
type ConfigLoader func() (*recommend.Config, error)

// ReloadService re-reads the configuration on every signal received on
// signals (SIGHUP in production) and hands it to the Reconfigurer. Only the
// serving and cache TTL settings take effect without a restart; a failed
// reload keeps the running configuration.
type ReloadService struct {
	signals <-chan os.Signal
	load    ConfigLoader
	target  Reconfigurer
	timeout time.Duration
	logger  zerolog.Logger
}

// NewReloadService wires signals to target.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewReloadService(signals <-chan os.Signal, load ConfigLoader, target Reconfigurer, logger zerolog.Logger) (*ReloadService, error) {
	if signals == nil || load == nil || target == nil {
		return nil, fmt.Errorf("reload service needs a signal channel, a loader and a target")
	}
	return &ReloadService{
		signals: signals,
		load:    load,
		target:  target,
		timeout: 30 * time.Second,
		logger:  logger.With().Str("service", "config-reload").Logger(),
	}, nil
}

// Serve implements suture.Service.
func (s *ReloadService) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-s.signals:
			s.reload(ctx, sig)
		}
	}
}

func (s *ReloadService) reload(ctx context.Context, sig os.Signal) {
	cfg, err := s.load()
	if err != nil {
		s.logger.Error().Err(err).Str("signal", sig.String()).Msg("Config reload failed, keeping current configuration")
		return
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.target.Reconfigure(rctx, cfg); err != nil {
		s.logger.Error().Err(err).Str("signal", sig.String()).Msg("Config rejected, keeping current configuration")
		return
	}
	s.logger.Info().Str("signal", sig.String()).Msg("Serving configuration reloaded")
}

func (s *ReloadService) String() string { return "config-reload" }
