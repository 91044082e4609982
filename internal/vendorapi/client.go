// Package vendorapi is the authenticated HTTP gateway to the upstream
// market-data vendor.
//
// The gateway never throws past its boundary for expected conditions: a
// missing API key is a documented "unconfigured" state (surfaced as HTTP
// 503 by any wrapping layer), any non-2xx vendor response degrades to a
// nil result plus a logged warning, and HTTP 429 is surfaced as
// ErrRateLimited so pollers can back off. There are no retries here;
// retry/backoff belongs to callers that need it (the streaming client's
// fallback poller is the only one).
package vendorapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"tradecoach/internal/metrics"
)

// Sentinel errors for the two conditions callers branch on.
var (
	ErrNotConfigured = errors.New("vendorapi: no API key configured")
	ErrRateLimited   = errors.New("vendorapi: rate limited (429)")
)

// Client is the vendor HTTP gateway.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Client. An empty apiKey is allowed; the client is then in
// the unconfigured state and every fetch returns (nil, ErrNotConfigured).
func New(apiKey, baseURL string, log *slog.Logger, m *metrics.Metrics) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
		metrics: m,
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// fetch performs one authenticated GET and returns the raw body.
// Returns (nil, nil) for any non-2xx status except 429 — a soft failure
// that has already been logged. Callers must be nil-safe end-to-end.
func (c *Client) fetch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.apiKey)

	u := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveVendor(path, "error", time.Since(start))
		c.log.Warn("vendor request failed", "path", path, "err", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.metrics.ObserveVendor(path, "rate_limited", time.Since(start))
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveVendor(path, "error", time.Since(start))
		c.log.Warn("vendor non-2xx", "path", path, "status", resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveVendor(path, "error", time.Since(start))
		c.log.Warn("vendor body read failed", "path", path, "err", err)
		return nil, nil
	}
	c.metrics.ObserveVendor(path, "ok", time.Since(start))
	return body, nil
}

// fetchJSON decodes the fetch result into out. A nil body (soft failure)
// leaves out untouched and returns (false, nil).
func (c *Client) fetchJSON(ctx context.Context, path string, params url.Values, out interface{}) (bool, error) {
	body, err := c.fetch(ctx, path, params)
	if err != nil {
		return false, err
	}
	if body == nil {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.log.Warn("vendor response unmarshal failed", "path", path, "err", err)
		return false, nil
	}
	return true, nil
}
