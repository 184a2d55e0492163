// Package client is the Go SDK for the Shirly storefront API: one method per
// endpoint, JSON in and out, typed errors for non-2xx answers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"shirly.shop/app/pkg/view"
)

// ErrUnauthorized is wrapped by every APIError with status 401.
var ErrUnauthorized = errors.New("client: unauthorized")

// APIError is a non-2xx answer decoded from the server's error body.
type APIError struct {
	Status    int
	Message   string
	RequestID string
	Fields    map[string]string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s (status %d, request %s)", e.Message, e.Status, e.RequestID)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// Config holds client configuration.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client

	// Retries applies to idempotent GETs answered with 429 or 503.
	Retries int
}

type Client struct {
	baseURL string
	http    *http.Client
	retries int

	mu    sync.RWMutex
	token string
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: base URL: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    hc,
		retries: cfg.Retries,
		token:   cfg.Token,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string

	// raw, when set, is sent as-is with contentType.
	raw         io.Reader
	contentType string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil && r.raw == nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	attempts := 1
	if r.method == http.MethodGet && r.raw == nil {
		attempts += c.retries
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleep(ctx, retryDelay(lastErr, i)); err != nil {
				return err
			}
		}
		lastErr = c.once(ctx, r, payload, out)
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, r request, payload []byte, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	switch {
	case r.raw != nil:
		body = r.raw
	case payload != nil:
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	switch {
	case r.raw != nil:
		req.Header.Set("Content-Type", r.contentType)
	case payload != nil:
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func decodeError(resp *http.Response, data []byte) error {
	ae := &APIError{Status: resp.StatusCode, RequestID: resp.Header.Get("X-Request-ID")}
	var body view.Error
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		ae.Message = body.Error
		ae.Fields = body.Fields
		if body.RequestID != "" {
			ae.RequestID = body.RequestID
		}
	} else {
		ae.Message = http.StatusText(resp.StatusCode)
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if n, err := strconv.Atoi(ra); err == nil {
			return &retryAfterError{APIError: ae, after: time.Duration(n) * time.Second}
		}
	}
	return ae
}

// retryAfterError keeps the server's Retry-After hint next to the APIError.
type retryAfterError struct {
	*APIError
	after time.Duration
}

func (e *retryAfterError) Unwrap() error { return e.APIError }

func retryable(err error) bool {
	return IsStatus(err, http.StatusTooManyRequests) || IsStatus(err, http.StatusServiceUnavailable)
}

func retryDelay(err error, attempt int) time.Duration {
	var ra *retryAfterError
	if errors.As(err, &ra) && ra.after > 0 {
		return min(ra.after, 5*time.Second)
	}
	return time.Duration(attempt) * 200 * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func escape(s string) string { return url.PathEscape(s) }
