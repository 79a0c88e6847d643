// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds the restart policy shared by every supervisor in the tree.
// Zero fields take the DefaultTreeConfig value.
type TreeConfig struct {
	// FailureThreshold is the decayed failure count that triggers backoff.
	FailureThreshold float64

	// FailureDecay is the failure half-life in seconds.
	FailureDecay float64

	// FailureBackoff is the pause once FailureThreshold is crossed.
	FailureBackoff time.Duration

	// ShutdownTimeout is how long each service gets to return from Serve.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig matches suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) resolve() (TreeConfig, error) {
	if c.FailureThreshold < 0 || c.FailureDecay < 0 || c.FailureBackoff < 0 || c.ShutdownTimeout < 0 {
		return c, fmt.Errorf("supervisor tree config must not be negative: %+v", c)
	}
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c, nil
}

func (c TreeConfig) spec(hook suture.EventHook) suture.Spec {
	return suture.Spec{
		EventHook:        hook,
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// SupervisorTree keeps background jobs and the API under separate
// supervisors so a crash-looping popularity job never backs off the API.
type SupervisorTree struct {
	root   *suture.Supervisor
	data   *suture.Supervisor
	api    *suture.Supervisor
	logger *slog.Logger
	config TreeConfig

	mu       sync.Mutex
	services map[string][]string
}

// NewSupervisorTree builds the tree. Suture events go to logger through
// sutureslog; the layers inherit the hook from the root.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		return nil, errors.New("supervisor tree needs a logger")
	}
	config, err := config.resolve()
	if err != nil {
		return nil, err
	}

	t := &SupervisorTree{
		root:     suture.New("recengine", config.spec((&sutureslog.Handler{Logger: logger}).MustHook())),
		data:     suture.New("data-layer", config.spec(nil)),
		api:      suture.New("api-layer", config.spec(nil)),
		logger:   logger,
		config:   config,
		services: make(map[string][]string),
	}
	t.root.Add(t.data)
	t.root.Add(t.api)
	return t, nil
}

// AddDataService supervises a background job such as the popularity scheduler.
func (t *SupervisorTree) AddDataService(svc suture.Service) suture.ServiceToken {
	t.track("data", svc)
	return t.data.Add(svc)
}

// AddAPIService supervises a request-serving service.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	t.track("api", svc)
	return t.api.Add(svc)
}

func (t *SupervisorTree) track(layer string, svc suture.Service) {
	name := fmt.Sprint(svc)
	t.mu.Lock()
	t.services[layer] = append(t.services[layer], name)
	t.mu.Unlock()
	t.logger.Debug("service added", "layer", layer, "service", name)
}

// Services lists the names of supervised services by layer ("data", "api").
func (t *SupervisorTree) Services() map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]string, len(t.services))
	for layer, names := range t.services {
		out[layer] = append([]string(nil), names...)
	}
	return out
}

// Serve runs the tree until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The channel yields exactly
// one value when the tree stops and is never closed.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed ShutdownTimeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
