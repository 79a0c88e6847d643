// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recengine/internal/cache"
	"github.com/tomtom215/recengine/internal/recommend"
	"github.com/tomtom215/recengine/internal/store"
)

// testEnv is a full stack over in-memory storage.
type testEnv struct {
	store      *store.Memory
	server     *recommend.Server
	aggregator *recommend.Aggregator
	handler    *Handler
	router     http.Handler
}

func newTestEnv(t *testing.T, rc RouterConfig) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	cfg := recommend.DefaultConfig()

	st := store.NewMemory()
	backend := cache.NewMemory(time.Minute)
	t.Cleanup(func() { _ = backend.Close() })

	server, err := recommend.NewServer(cfg, recommend.ServerDeps{
		Cache:      recommend.NewCache(backend, cfg.Cache, logger),
		Counter:    st,
		Popularity: st,
	}, logger)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	agg, err := recommend.NewAggregator(st, cfg.Popularity, logger)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	agg.OnComplete(server.HandleRecompute)

	h, err := NewHandler(Dependencies{
		Recommender: server,
		Recomputer:  agg,
		Store:       st,
		Cache:       backend,
	}, logger)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	return &testEnv{
		store:      st,
		server:     server,
		aggregator: agg,
		handler:    h,
		router:     NewRouter(h, rc, logger),
	}
}

// decodedResponse mirrors APIResponse with a raw payload.
type decodedResponse struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Error    *APIError       `json:"error"`
	Metadata Metadata        `json:"metadata"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, decodedResponse) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp decodedResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: invalid envelope %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	tests := []struct {
		name string
		deps Dependencies
	}{
		{"no recommender", Dependencies{Recomputer: env.aggregator, Store: env.store}},
		{"no recomputer", Dependencies{Recommender: env.server, Store: env.store}},
		{"no store", Dependencies{Recommender: env.server, Recomputer: env.aggregator}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewHandler(tt.deps, zerolog.Nop()); err == nil {
				t.Error("NewHandler() error = nil")
			}
		})
	}
}

func TestRecordInteraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"valid", `{"user_id":"u1","item_id":"item-a","type":"view"}`, http.StatusCreated, ""},
		{"type is case-insensitive", `{"user_id":"u1","item_id":"item-a","type":" Purchase "}`, http.StatusCreated, ""},
		{"explicit timestamp", `{"user_id":"u1","item_id":"item-a","type":"like","timestamp":"2026-01-02T03:04:05Z"}`, http.StatusCreated, ""},
		{"unknown type", `{"user_id":"u1","item_id":"item-a","type":"share"}`, http.StatusBadRequest, ErrCodeInvalidInteraction},
		{"missing user", `{"item_id":"item-a","type":"view"}`, http.StatusBadRequest, ErrCodeValidation},
		{"blank item", `{"user_id":"u1","item_id":"   ","type":"view"}`, http.StatusBadRequest, ErrCodeValidation},
		{"unknown field", `{"user_id":"u1","item_id":"item-a","type":"view","weight":9}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"malformed json", `{"user_id":`, http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, RouterConfig{})
			rec, resp := do(t, env.router, http.MethodPost, "/api/v1/interactions", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode == "" {
				if resp.Status != "success" {
					t.Errorf("status = %q", resp.Status)
				}
				return
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestRecordInteraction_StoresRecord(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.handler.now = func() time.Time { return fixed }

	rec, resp := do(t, env.router, http.MethodPost, "/api/v1/interactions",
		`{"user_id":"u1","item_id":"item-a","type":"CLICK"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}

	var got recommend.InteractionRecord
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != recommend.InteractionClick || !got.Timestamp.Equal(fixed) {
		t.Errorf("record = %+v", got)
	}

	n, err := env.store.UserInteractionCount(context.Background(), "u1")
	if err != nil || n != 1 {
		t.Errorf("UserInteractionCount = %d, %v; want 1", n, err)
	}
	items, err := env.store.ListItems(context.Background())
	if err != nil || len(items) != 1 || items[0] != "item-a" {
		t.Errorf("ListItems = %v, %v; want the item auto-registered", items, err)
	}
}

func TestUpsertItems(t *testing.T) {
	t.Parallel()

	var many strings.Builder
	many.WriteString(`{"items":[`)
	for i := 0; i < 1001; i++ {
		if i > 0 {
			many.WriteByte(',')
		}
		fmt.Fprintf(&many, `{"item_id":"item-%d"}`, i)
	}
	many.WriteString(`]}`)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"items":[{"item_id":"a","name":"Alpha"},{"item_id":"b"}]}`, http.StatusOK},
		{"empty list", `{"items":[]}`, http.StatusBadRequest},
		{"missing item id", `{"items":[{"name":"nameless"}]}`, http.StatusBadRequest},
		{"too many", many.String(), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, RouterConfig{})
			rec, _ := do(t, env.router, http.MethodPost, "/api/v1/items", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestPopularity_RecomputeThenTop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	for _, body := range []string{
		`{"user_id":"u1","item_id":"item-a","type":"view"}`,
		`{"user_id":"u2","item_id":"item-b","type":"purchase"}`,
		`{"user_id":"u3","item_id":"item-b","type":"like"}`,
	} {
		if rec, _ := do(t, env.router, http.MethodPost, "/api/v1/interactions", body); rec.Code != http.StatusCreated {
			t.Fatalf("record status = %d", rec.Code)
		}
	}
	do(t, env.router, http.MethodPost, "/api/v1/items", `{"items":[{"item_id":"item-c"}]}`)

	rec, resp := do(t, env.router, http.MethodPost, "/api/v1/popularity/recompute", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("recompute status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var report recommend.AggregationReport
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.ItemsUpdated != 3 || report.ItemsWithInteractions != 2 {
		t.Errorf("report = %+v", report)
	}

	rec, resp = do(t, env.router, http.MethodGet, "/api/v1/popularity/top?k=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("top status = %d", rec.Code)
	}
	var top struct {
		Entries []recommend.Entry `json:"entries"`
		Count   int               `json:"count"`
	}
	if err := json.Unmarshal(resp.Data, &top); err != nil {
		t.Fatal(err)
	}
	if top.Count != 2 || top.Entries[0].ItemID != "item-b" || top.Entries[1].ItemID != "item-a" {
		t.Fatalf("top = %+v", top)
	}
	if top.Entries[0].Rank != 1 || top.Entries[0].Score != 0.055 {
		t.Errorf("first entry = %+v, want rank 1 score 0.055", top.Entries[0])
	}

	rec, resp = do(t, env.router, http.MethodGet, "/api/v1/popularity/status", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(resp.Data), `"items_updated":3`) {
		t.Errorf("status = %d %s", rec.Code, resp.Data)
	}
}

func TestTopPopular_InvalidK(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	for _, k := range []string{"0", "-1", "1001", "ten"} {
		rec, resp := do(t, env.router, http.MethodGet, "/api/v1/popularity/top?k="+k, "")
		if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != ErrCodeBadRequest {
			t.Errorf("k=%s: status = %d, error = %+v", k, rec.Code, resp.Error)
		}
	}
}

func TestGetRecommendations_PopularityFallback(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	do(t, env.router, http.MethodPost, "/api/v1/interactions", `{"user_id":"u1","item_id":"item-a","type":"click"}`)
	if _, err := env.aggregator.Recompute(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec, resp := do(t, env.router, http.MethodGet, "/api/v1/recommendations/newcomer", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var got recommend.Response
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.UserID != "newcomer" || got.Source != recommend.SourcePopularity || got.CacheHit {
		t.Errorf("response = %+v", got)
	}
	if len(got.Entries) != 1 || got.Entries[0].ItemID != "item-a" {
		t.Errorf("entries = %+v", got.Entries)
	}

	_, resp = do(t, env.router, http.MethodGet, "/api/v1/recommendations/newcomer", "")
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatal(err)
	}
	if !got.CacheHit {
		t.Error("second request was not served from the cache")
	}

	rec, resp = do(t, env.router, http.MethodDelete, "/api/v1/recommendations/newcomer/cache", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(resp.Data), `"removed":1`) {
		t.Errorf("invalidate = %d %s", rec.Code, resp.Data)
	}
}

func TestGetRecommendations_EscapedUserID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	rec, resp := do(t, env.router, http.MethodGet, "/api/v1/recommendations/user%20one", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(resp.Data), `"user_id":"user one"`) {
		t.Errorf("data = %s", resp.Data)
	}
}

// stubRecommender returns fixed errors.
type stubRecommender struct {
	err error
}

func (s *stubRecommender) Recommend(context.Context, string) (*recommend.Response, error) {
	return nil, s.err
}

func (s *stubRecommender) Popular(context.Context, int) ([]recommend.Entry, error) {
	return nil, s.err
}

func (s *stubRecommender) InvalidateUser(context.Context, string) (int, error) {
	return 0, s.err
}

// stubRecomputer returns a fixed error from Recompute.
type stubRecomputer struct {
	err error
}

func (s *stubRecomputer) Recompute(context.Context) (*recommend.AggregationReport, error) {
	return nil, s.err
}
func (s *stubRecomputer) LastReport() *recommend.AggregationReport { return nil }
func (s *stubRecomputer) LastError() string                        { return "" }
func (s *stubRecomputer) Running() bool                            { return false }

// failingPinger always fails.
type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newStubRouter(t *testing.T, recErr, aggErr error, cachePinger Pinger) http.Handler {
	t.Helper()
	h, err := NewHandler(Dependencies{
		Recommender: &stubRecommender{err: recErr},
		Recomputer:  &stubRecomputer{err: aggErr},
		Store:       store.NewMemory(),
		Cache:       cachePinger,
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(h, RouterConfig{}, zerolog.Nop())
}

func TestErrorStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		recErr     error
		aggErr     error
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"capacity", fmt.Errorf("busy: %w", recommend.ErrCapacityExceeded), nil,
			http.MethodGet, "/api/v1/recommendations/u1", http.StatusServiceUnavailable, ErrCodeCapacityExceeded},
		{"invalid request", recommend.ErrInvalidRequest, nil,
			http.MethodGet, "/api/v1/recommendations/u1", http.StatusBadRequest, ErrCodeBadRequest},
		{"source down", fmt.Errorf("load: %w", recommend.ErrSourceUnavailable), nil,
			http.MethodGet, "/api/v1/popularity/top", http.StatusServiceUnavailable, ErrCodeSourceUnavailable},
		{"unexpected", errors.New("boom"), nil,
			http.MethodDelete, "/api/v1/recommendations/u1/cache", http.StatusInternalServerError, ErrCodeInternalError},
		{"already running", nil, recommend.ErrAggregationInProgress,
			http.MethodPost, "/api/v1/popularity/recompute", http.StatusConflict, ErrCodeAggregationInProgress},
		{"recompute source down", nil, fmt.Errorf("aggregate: %w", recommend.ErrSourceUnavailable),
			http.MethodPost, "/api/v1/popularity/recompute", http.StatusServiceUnavailable, ErrCodeSourceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := newStubRouter(t, tt.recErr, tt.aggErr, nil)
			rec, resp := do(t, router, tt.method, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if resp.Status != "error" || resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("envelope = %+v, want code %s", resp, tt.wantCode)
			}
			if strings.Contains(rec.Body.String(), "boom") {
				t.Error("internal error text leaked to the client")
			}
			wantRetry := tt.wantCode == ErrCodeCapacityExceeded
			if got := rec.Header().Get("Retry-After") != ""; got != wantRetry {
				t.Errorf("Retry-After present = %v, want %v", got, wantRetry)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})

	rec, resp := do(t, env.router, http.MethodGet, "/health/live", "")
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Errorf("live = %d %+v", rec.Code, resp)
	}

	rec, resp = do(t, env.router, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(resp.Data), `"ready_to_serve":true`) {
		t.Errorf("ready = %d %s", rec.Code, resp.Data)
	}

	rec, resp = do(t, newStubRouter(t, nil, nil, failingPinger{}), http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable || resp.Error == nil || resp.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("ready with failing cache = %d %+v", rec.Code, resp.Error)
	}

	_ = env.store.Close()
	rec, _ = do(t, env.router, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with closed store = %d", rec.Code)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})

	rec, resp := do(t, env.router, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("not found = %d %+v", rec.Code, resp.Error)
	}

	rec, resp = do(t, env.router, http.MethodPut, "/api/v1/interactions", "")
	if rec.Code != http.StatusMethodNotAllowed || resp.Error == nil || resp.Error.Code != ErrCodeMethodNotAllowed {
		t.Errorf("method = %d %+v", rec.Code, resp.Error)
	}
}

func TestRouter_RequestIDInMetadata(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var resp decodedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Metadata.RequestID != "req-123" || rec.Header().Get("X-Request-ID") != "req-123" {
		t.Errorf("request id = %q / %q", resp.Metadata.RequestID, rec.Header().Get("X-Request-ID"))
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	for i := 0; i < 2; i++ {
		if rec, _ := do(t, env.router, http.MethodGet, "/api/v1/popularity/status", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec, resp := do(t, env.router, http.MethodGet, "/api/v1/popularity/status", "")
	if rec.Code != http.StatusTooManyRequests || resp.Error == nil || resp.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("third request = %d %+v", rec.Code, resp.Error)
	}

	if rec, _ := do(t, env.router, http.MethodGet, "/health/live", ""); rec.Code != http.StatusOK {
		t.Errorf("health probe was rate limited: %d", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	do(t, env.router, http.MethodGet, "/api/v1/popularity/status", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "api_requests_total") {
		t.Errorf("metrics = %d, missing api request counter", rec.Code)
	}
}
