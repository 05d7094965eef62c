// Package api is the HTTP client for the FestiveConnect backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/iksnae/festive-connect/internal"
)

// Client sends JSON requests to one backend. Every request carries the
// client's default headers.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.RWMutex
	headers http.Header
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHeader adds a default header sent with every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithTimeout sets the overall request timeout. Zero means no timeout,
// which suits long agent streams. A client passed to WithHTTPClient is
// copied, not modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// NewClient creates a client for baseURL. A trailing slash is removed.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		headers:    http.Header{"Content-Type": []string{"application/json"}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetHeader sets a default header for subsequent requests, e.g. an
// Authorization token.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers.Set(key, value)
}

// URL joins the base URL and endpoint
func (c *Client) URL(endpoint string) string {
	return c.baseURL + endpoint
}

// Get sends a GET with optional query params and decodes the response into out
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// Post sends body as JSON and decodes the response into out
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, jsonBody(body), out)
}

// Put sends body as JSON and decodes the response into out
func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.do(ctx, http.MethodPut, endpoint, jsonBody(body), out)
}

// Patch sends body as JSON and decodes the response into out
func (c *Client) Patch(ctx context.Context, endpoint string, body, out any) error {
	return c.do(ctx, http.MethodPatch, endpoint, jsonBody(body), out)
}

// Delete sends a DELETE and decodes any response body into out
func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodDelete, endpoint, nil, out)
}

// jsonBody defaults a nil body to an empty object, as the backend expects
func jsonBody(body any) any {
	if body == nil {
		return struct{}{}
	}
	return body
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	resp, err := c.send(ctx, method, endpoint, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(method, endpoint, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(method, endpoint, resp.StatusCode, data)
		internal.LogDebug("%s %s failed: %d %s", method, endpoint, resp.StatusCode, apiErr.Message)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &internal.ParseError{Source: "response", Key: method + " " + endpoint, Err: err}
	}
	return nil
}

// send builds and executes a request. Extra headers override the defaults.
func (c *Client) send(ctx context.Context, method, endpoint string, body any, extra http.Header) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(endpoint), reader)
	if err != nil {
		return nil, c.transportError(method, endpoint, err)
	}

	c.mu.RLock()
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	c.mu.RUnlock()
	for k, v := range extra {
		req.Header[k] = append([]string(nil), v...)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(method, endpoint, err)
	}
	internal.Logger().Debugw("request", "method", method, "url", req.URL.String(),
		"status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

func (c *Client) transportError(method, endpoint string, err error) error {
	internal.LogError("%s request error: %v", method, err)
	return &TransportError{Method: method, Endpoint: endpoint, Err: err}
}
