// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package scorer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/recengine/internal/recommend"
)

// maxErrorBodySize limits how much of an error response is read.
const maxErrorBodySize = 4 * 1024

// maxResponseSize limits the size of a scores response.
const maxResponseSize = 16 << 20

// Config configures the HTTP scorer client.
type Config struct {
	// URL is the scoring endpoint. Requests are POSTed here.
	URL string

	// Timeout bounds a single HTTP call. The request context may be shorter.
	Timeout time.Duration

	// APIKey is sent as a bearer token when set.
	APIKey string

	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit float64

	// RateBurst is the limiter burst size.
	RateBurst int

	// MaxIdleConns sizes the idle connection pool to the model server.
	MaxIdleConns int
}

type scoreRequest struct {
	UserID     string   `json:"user_id"`
	Candidates []string `json:"candidates"`
}

type scoreResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// HTTP calls a remote model server to score candidate items.
type HTTP struct {
	url     string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTP creates an HTTP scorer client.
func NewHTTP(cfg Config) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, errors.New("scorer url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	idle := cfg.MaxIdleConns
	if idle <= 0 {
		idle = 100
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = idle
	transport.MaxIdleConnsPerHost = idle

	h := &HTTP{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout, Transport: transport},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(math.Ceil(cfg.RateLimit))
		}
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return h, nil
}

// Score posts {user_id, candidates} and returns the scores map of the
// response. Items missing from the response are not returned.
func (h *HTTP) Score(ctx context.Context, userID string, candidates []string) (map[string]float64, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, classify(ctx, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	body, err := json.Marshal(scoreRequest{UserID: userID, Candidates: candidates})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", recommend.ErrScorerUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", recommend.ErrScorerUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout {
			return nil, fmt.Errorf("%w: status %d: %s", recommend.ErrScorerTimeout, resp.StatusCode, bytes.TrimSpace(msg))
		}
		return nil, fmt.Errorf("%w: status %d: %s", recommend.ErrScorerUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return nil, classify(ctx, fmt.Errorf("decode response: %w", err))
	}
	if out.Scores == nil {
		return nil, fmt.Errorf("%w: response has no scores", recommend.ErrScorerUnavailable)
	}
	return out.Scores, nil
}

// classify maps transport errors onto the scorer sentinels.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", recommend.ErrScorerTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", recommend.ErrScorerTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", recommend.ErrScorerUnavailable, err)
}

var _ recommend.Scorer = (*HTTP)(nil)
