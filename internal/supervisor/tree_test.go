// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recengine/internal/recommend"
	"github.com/tomtom215/recengine/internal/store"
	"github.com/tomtom215/recengine/internal/supervisor/services"
)

// countingService fails a set number of times, then blocks until canceled.
type countingService struct {
	name     string
	failures int32
	starts   atomic.Int32
}

func (c *countingService) Serve(ctx context.Context) error {
	if c.starts.Add(1) <= c.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *countingService) String() string { return c.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDefaultTreeConfig(t *testing.T) {
	t.Parallel()

	config := DefaultTreeConfig()
	if config.FailureThreshold != 5.0 || config.FailureDecay != 30.0 {
		t.Errorf("failure params = %v/%v, want 5/30", config.FailureThreshold, config.FailureDecay)
	}
	if config.FailureBackoff != 15*time.Second || config.ShutdownTimeout != 10*time.Second {
		t.Errorf("durations = %v/%v, want 15s/10s", config.FailureBackoff, config.ShutdownTimeout)
	}
}

func TestNewSupervisorTree(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		logger  *slog.Logger
		config  TreeConfig
		wantErr bool
	}{
		{"zero config gets defaults", quietLogger(), TreeConfig{}, false},
		{"explicit config", quietLogger(), TreeConfig{FailureThreshold: 2, FailureBackoff: time.Second}, false},
		{"nil logger", nil, TreeConfig{}, true},
		{"negative backoff", quietLogger(), TreeConfig{FailureBackoff: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tree, err := NewSupervisorTree(tt.logger, tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSupervisorTree() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tree.config.ShutdownTimeout == 0 || tree.config.FailureDecay == 0 {
				t.Errorf("defaults not applied: %+v", tree.config)
			}
		})
	}
}

func TestSupervisorTree_StartsBothLayers(t *testing.T) {
	t.Parallel()

	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	dataSvc := &countingService{name: "data"}
	apiSvc := &countingService{name: "api"}
	tree.AddDataService(dataSvc)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	time.Sleep(100 * time.Millisecond)
	if dataSvc.starts.Load() < 1 || apiSvc.starts.Load() < 1 {
		t.Errorf("starts data=%d api=%d, want both >= 1", dataSvc.starts.Load(), apiSvc.starts.Load())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}

	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("UnstoppedServiceReport() error = %v", err)
	}
	if len(report) != 0 {
		t.Errorf("unstopped services: %v", report)
	}
}

func TestSupervisorTree_RestartIsolation(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := &countingService{name: "flaky-job", failures: 2}
	stable := &countingService{name: "api"}
	tree.AddDataService(failing)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	go func() { _ = tree.Serve(ctx) }()
	time.Sleep(200 * time.Millisecond)

	if got := failing.starts.Load(); got < 3 {
		t.Errorf("failing service started %d times, want >= 3", got)
	}
	if got := stable.starts.Load(); got != 1 {
		t.Errorf("api service started %d times, want exactly 1", got)
	}
}

func TestSupervisorTree_Services(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{})
	tree.AddDataService(&countingService{name: "popularity-scheduler"})
	tree.AddAPIService(&countingService{name: "api-server"})

	got := tree.Services()
	if len(got["data"]) != 1 || got["data"][0] != "popularity-scheduler" {
		t.Errorf("data layer = %v", got["data"])
	}
	if len(got["api"]) != 1 || got["api"][0] != "api-server" {
		t.Errorf("api layer = %v", got["api"])
	}

	got["data"][0] = "mutated"
	if tree.Services()["data"][0] != "popularity-scheduler" {
		t.Error("Services() exposed internal state")
	}
}

func TestSupervisorTree_RunsPopularityScheduler(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	ctx := context.Background()
	for _, rec := range []recommend.InteractionRecord{
		{UserID: "u1", ItemID: "item-a", Type: recommend.InteractionPurchase, Timestamp: time.Now()},
		{UserID: "u2", ItemID: "item-a", Type: recommend.InteractionLike, Timestamp: time.Now()},
		{UserID: "u1", ItemID: "item-b", Type: recommend.InteractionView, Timestamp: time.Now()},
	} {
		rec := rec
		if err := st.RecordInteraction(ctx, &rec); err != nil {
			t.Fatalf("RecordInteraction() error = %v", err)
		}
	}

	agg, err := recommend.NewAggregator(st, recommend.DefaultConfig().Popularity, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	var once atomic.Bool
	agg.OnComplete(func(context.Context, *recommend.AggregationReport) {
		if once.CompareAndSwap(false, true) {
			close(done)
		}
	})

	popSvc, err := services.NewPopularityService(agg, services.PopularityServiceConfig{
		Schedule:     "@every 1h",
		RunOnStartup: true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	tree.AddDataService(popSvc)

	runCtx, cancel := context.WithCancel(ctx)
	errCh := tree.ServeBackground(runCtx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("startup aggregation did not complete")
	}
	cancel()
	<-errCh

	scores, err := st.PopularityScores(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 2 || scores[0].ItemID != "item-a" {
		t.Fatalf("scores = %+v, want item-a first", scores)
	}
	if scores[0].Score != 0.055 {
		t.Errorf("item-a score = %v, want 0.055", scores[0].Score)
	}
}
