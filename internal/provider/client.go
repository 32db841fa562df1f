package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"slopemap/internal/logging"
)

const userAgent = "slopemap"

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Detail     string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: HTTP %d: %s [request_id=%s]", e.StatusCode, e.Detail, e.RequestID)
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// HTTPClient talks to the slope/concession backend.
type HTTPClient struct {
	baseURL      string
	httpClient   *http.Client
	log          logging.Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	cache        *concessionCache
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.httpClient = c }
}

func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		if d > 0 {
			h.httpClient.Timeout = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(h *HTTPClient) { h.log = l }
}

func WithRetryMax(n int) Option {
	return func(h *HTTPClient) {
		if n >= 0 {
			h.retryMax = n
		}
	}
}

// WithRetryWait sets the backoff bounds. max is ignored when below min.
func WithRetryWait(min, max time.Duration) Option {
	return func(h *HTTPClient) {
		if min > 0 {
			h.retryWaitMin = min
			if max >= min {
				h.retryWaitMax = max
			}
		}
	}
}

// WithConcessionCache keeps concession answers per bbox for ttl.
func WithConcessionCache(ttl time.Duration) Option {
	return func(h *HTTPClient) {
		if ttl > 0 {
			h.cache = newConcessionCache(ttl)
		}
	}
}

// NewHTTPClient validates baseURL and returns a client for it.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("base url scheme must be http or https")
	}
	c := &HTTPClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          logging.NewNopLogger(),
		retryMax:     2,
		retryWaitMin: 250 * time.Millisecond,
		retryWaitMax: 2 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// do performs a JSON request, retrying network errors and 5xx answers.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			c.log.Debug("retrying request", logging.Int("attempt", attempt), logging.Duration("wait", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, full, rd)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		requestID := uuid.New().String()
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("request failed", logging.String("path", path), logging.Err(err))
			lastErr = err
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		c.log.Debug("backend request",
			logging.String("method", method),
			logging.String("path", path),
			logging.Int("status", resp.StatusCode),
			logging.Duration("took", time.Since(start)),
			logging.String("request_id", requestID))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: requestID, Detail: errorDetail(respBody)}
			lastErr = apiErr
			if apiErr.IsServerError() {
				continue
			}
			return apiErr
		}
		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

// errorDetail extracts the backend's {"detail": "..."} message.
func errorDetail(body []byte) string {
	var e struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != nil {
		if s, ok := e.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(e.Detail)
		return string(b)
	}
	return strings.TrimSpace(string(body))
}

func (c *HTTPClient) backoff(attempt int) time.Duration {
	d := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if d > c.retryWaitMax {
		d = c.retryWaitMax
	}
	if q := int64(d / 4); q > 0 {
		d += time.Duration(rand.Int63n(q))
	}
	return d
}
