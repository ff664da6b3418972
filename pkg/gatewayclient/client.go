// Package gatewayclient is the Go entry point for calling the upstream API
// through a session gateway. All calls are routed through the gateway's
// /proxy endpoint with the session cookies attached, and a 401 carrying
// needsReauth sends the caller to the sign-in page.
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"

	"golang.org/x/net/publicsuffix"
)

const defaultSignInPath = "/sign-in"

// Redirector performs the full-page navigation to the sign-in route.
type Redirector interface {
	Redirect(target string)
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func(target string)

func (f RedirectFunc) Redirect(target string) { f(target) }

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	redirector Redirector
	signInPath string
	logger     *slog.Logger

	redirecting atomic.Bool
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. A client without a jar gets
// the default one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRedirector(r Redirector) Option {
	return func(c *Client) { c.redirector = r }
}

func WithSignInPath(path string) Option {
	return func(c *Client) { c.signInPath = path }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway url: %s is not absolute", baseURL)
	}

	c := &Client{
		baseURL:    u,
		signInPath: defaultSignInPath,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}

	return c, nil
}

// Jar holds the session cookies written by the gateway.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

type CallOptions struct {
	Method string
	// Body is sent as is when it is a json.RawMessage or []byte, and JSON
	// encoded otherwise.
	Body   any
	Header http.Header
}

// Error is a non-2xx answer from the gateway.
type Error struct {
	Status  int
	Message string
	Body    json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway call failed: %d %s", e.Status, e.Message)
}

type errorBody struct {
	Message     string `json:"message"`
	Error       string `json:"error"`
	NeedsReauth bool   `json:"needsReauth"`
}

// Call sends a request for the logical upstream route path and returns the
// raw JSON body, or nil when the body is empty.
//
// A 401 with needsReauth triggers the redirect to sign-in and returns
// (nil, nil). Every other non-2xx status is returned as *Error. Nothing is
// retried.
func (c *Client) Call(ctx context.Context, path string, opts *CallOptions) (json.RawMessage, error) {
	if opts == nil {
		opts = &CallOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL.JoinPath("/proxy")
	target.RawQuery = url.Values{"path": {path}}.Encode()

	body, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for name, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.handleFailure(resp.StatusCode, raw)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("gateway response for %s is not JSON", path)
	}
	return json.RawMessage(raw), nil
}

func (c *Client) handleFailure(status int, raw []byte) error {
	apiErr, needsReauth := parseError(status, raw)
	if status == http.StatusUnauthorized && needsReauth {
		c.reauthenticate()
		return nil
	}
	return apiErr
}

func parseError(status int, raw []byte) (*Error, bool) {
	apiErr := &Error{Status: status, Message: http.StatusText(status)}

	var parsed errorBody
	if json.Unmarshal(raw, &parsed) != nil {
		return apiErr, false
	}

	apiErr.Body = json.RawMessage(raw)
	switch {
	case parsed.Message != "":
		apiErr.Message = parsed.Message
	case parsed.Error != "":
		apiErr.Message = parsed.Error
	}
	return apiErr, parsed.NeedsReauth
}

// reauthenticate collapses concurrent triggers into a single redirect.
func (c *Client) reauthenticate() {
	if !c.redirecting.CompareAndSwap(false, true) {
		return
	}
	defer c.redirecting.Store(false)

	if c.redirector == nil {
		c.logger.Warn("session expired and no redirector configured, call returns no data", "target", c.signInPath)
		return
	}

	c.logger.Info("session expired, redirecting to sign-in", "target", c.signInPath)
	c.redirector.Redirect(c.signInPath)
}

func encodeBody(v any) (io.Reader, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.Call(ctx, path, &CallOptions{Method: method, Body: body})
	if err != nil {
		return err
	}
	if raw == nil || out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}
