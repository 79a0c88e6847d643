// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultDrainTimeout = 10 * time.Second

// APIServer is the part of *http.Server that APIService drives.
type APIServer interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// APIService serves the recommendation API under suture.
//
// Each Serve call binds its own listener, so a bind failure surfaces as a
// service failure and is retried with the supervisor's backoff. On
// cancellation the server stops accepting and in-flight requests get up to
// the drain timeout to finish.
type APIService struct {
	server       APIServer
	addr         string
	drainTimeout time.Duration
	logger       zerolog.Logger

	mu    sync.Mutex
	bound net.Addr
}

// NewAPIService returns a service that serves server on addr. A non-positive
// drainTimeout becomes 10s.
//
//	tree.AddAPIService(services.NewAPIService(srv, srv.Addr, cfg.Server.ShutdownTimeout, logger))
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAPIService(server APIServer, addr string, drainTimeout time.Duration, logger zerolog.Logger) *APIService {
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}
	return &APIService{
		server:       server,
		addr:         addr,
		drainTimeout: drainTimeout,
		logger:       logger.With().Str("service", "api").Logger(),
	}
}

// Addr is the address of the current listener, or nil when not serving.
func (s *APIService) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *APIService) setBound(addr net.Addr) {
	s.mu.Lock()
	s.bound = addr
	s.mu.Unlock()
}

// Serve implements suture.Service.
func (s *APIService) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind api listener %s: %w", s.addr, err)
	}
	s.setBound(ln.Addr())
	defer s.setBound(nil)
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("API listening")

	served := make(chan error, 1)
	go func() {
		err := s.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		served <- err
	}()

	select {
	case err := <-served:
		if err == nil {
			err = errors.New("api server stopped unexpectedly")
		}
		return fmt.Errorf("serve api: %w", err)

	case <-ctx.Done():
	}

	s.logger.Info().Dur("timeout", s.drainTimeout).Msg("Draining API requests")
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drainTimeout)
	defer cancel()
	if err := s.server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("drain api: %w", err)
	}
	<-served
	return ctx.Err()
}

func (s *APIService) String() string { return "api-server" }
