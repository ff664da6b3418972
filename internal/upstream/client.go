// Package upstream talks to the identity and domain API that sits behind the gateway.
package upstream

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

	"github.com/marcogenualdo/session-gateway/internal/auth"
	"github.com/marcogenualdo/session-gateway/internal/config"
	"golang.org/x/oauth2"
)

var (
	ErrUnauthorized     = errors.New("upstream rejected access credential")
	ErrUnexpectedStatus = errors.New("unexpected upstream status")
	ErrInvalidPath      = errors.New("invalid upstream path")
)

const maxIdentityBytes = 1 << 20

type Client struct {
	baseURL      *url.URL
	identityPath string
	timeout      time.Duration
	transport    http.RoundTripper
	logger       *slog.Logger
}

var _ auth.IdentityProvider = (*Client)(nil)

func NewClient(cfg config.UpstreamConfig, logger *slog.Logger) (*Client, error) {
	baseURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if baseURL.Path == "" {
		baseURL.Path = "/"
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = cfg.Timeout

	return &Client{
		baseURL:      baseURL,
		identityPath: cfg.IdentityPath,
		timeout:      cfg.Timeout,
		transport:    newTracingTransport(base),
		logger:       logger,
	}, nil
}

func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Transport is the round tripper every upstream call goes through.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// Resolve maps a logical route such as "/portfolios?limit=5" onto the upstream
// base URL. Absolute URLs are rejected so callers cannot redirect the gateway
// to another host.
func (c *Client) Resolve(logical string) (*url.URL, error) {
	ref, err := url.Parse(logical)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if ref.IsAbs() || ref.Host != "" || ref.User != nil {
		return nil, fmt.Errorf("%w: %s is not a relative path", ErrInvalidPath, logical)
	}

	target := c.baseURL.JoinPath(ref.EscapedPath())
	target.RawQuery = ref.RawQuery
	target.Fragment = ""
	return target, nil
}

// Identify calls the identity route with accessToken as bearer credential and
// returns the identity document. 401 and 403 map to ErrUnauthorized.
func (c *Client) Identify(ctx context.Context, accessToken string) (json.RawMessage, error) {
	target, err := c.Resolve(c.identityPath)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.transport,
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIdentityBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read identity response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if !json.Valid(body) {
		c.logger.Debug("identity response is not JSON", "status", resp.StatusCode, "bytes", len(body))
		return nil, nil
	}
	return json.RawMessage(body), nil
}

// Ping reports whether the upstream answers HTTP at all. Any status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String(), nil)
	if err != nil {
		return err
	}

	resp, err := (&http.Client{Transport: c.transport, Timeout: c.timeout}).Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
