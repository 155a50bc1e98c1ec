// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpclient builds the retrying HTTP client the stdcell bootstrap
// fetches pinned sources with. Retries are GET/HEAD only, with exponential
// backoff and jitter; every request gets a User-Agent, a trace correlation
// header when a span is active, and a log line with sensitive query
// parameters redacted.
package httpclient

import (
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Config holds the knobs the pinned-source fetch needs.
type Config struct {
	// Timeout bounds each request end to end; per-fetch deadlines still
	// apply on top via the request context.
	Timeout time.Duration
	// RetryAttempts is how many times a failed GET/HEAD is retried after
	// the initial try.
	RetryAttempts int
	// RetryBackoff is the first retry delay; it doubles per attempt up to
	// MaxBackoff, plus up to 20% jitter.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	// UserAgent is set on every request that doesn't carry one.
	UserAgent string
}

// DefaultConfig returns the settings pinned-source fetches use.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  500 * time.Millisecond,
		MaxBackoff:    10 * time.Second,
		UserAgent:     "conductor-synth",
	}
}

// New builds an *http.Client from cfg.
func New(cfg Config) (*http.Client, error) {
	if cfg.Timeout <= 0 {
		return nil, errors.New("httpclient: timeout must be positive")
	}
	if cfg.RetryAttempts < 0 {
		return nil, errors.New("httpclient: retry attempts cannot be negative")
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &transport{base: http.DefaultTransport, cfg: cfg},
	}, nil
}

// transport injects the User-Agent and correlation header, retries
// idempotent requests, and logs each outcome.
type transport struct {
	base http.RoundTripper
	cfg  Config
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && t.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", t.cfg.UserAgent)
	}
	if sc := trace.SpanContextFromContext(req.Context()); sc.IsValid() {
		req.Header.Set("X-Correlation-ID", sc.TraceID().String())
	}

	attempts := 1
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		attempts += t.cfg.RetryAttempts
	}

	start := time.Now()
	var resp *http.Response
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(t.backoff(attempt)):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}

		resp, err = t.base.RoundTrip(req)
		if err == nil && !retryableStatus(resp.StatusCode) {
			break
		}
		if err != nil && req.Context().Err() != nil {
			err = req.Context().Err()
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
	}

	t.log(req, resp, err, time.Since(start))
	return resp, err
}

func (t *transport) backoff(attempt int) time.Duration {
	d := t.cfg.RetryBackoff << (attempt - 1)
	if d > t.cfg.MaxBackoff || d <= 0 {
		d = t.cfg.MaxBackoff
	}
	return d + time.Duration(rand.Float64()*0.2*float64(d))
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

func (t *transport) log(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	logURL := sanitizeURL(req.URL)
	if err != nil {
		slog.Warn("http request failed",
			"method", req.Method, "url", logURL,
			"duration_ms", elapsed.Milliseconds(), "error", err.Error())
		return
	}
	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	slog.Log(req.Context(), level, "http request",
		"method", req.Method, "url", logURL,
		"status", resp.StatusCode, "duration_ms", elapsed.Milliseconds())
}

// sanitizeURL redacts query parameters whose names suggest credentials, so a
// pinned-source URL carrying a token never lands in a log verbatim.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	redacted := false
	for param := range q {
		lower := strings.ToLower(param)
		for _, s := range []string{"token", "key", "auth", "secret", "password", "credential"} {
			if strings.Contains(lower, s) {
				q.Set(param, "[REDACTED]")
				redacted = true
				break
			}
		}
	}
	if !redacted {
		return u.String()
	}
	safe := *u
	safe.RawQuery = q.Encode()
	return safe.String()
}
