package gatewayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type ProbeResult struct {
	Authenticated   bool            `json:"authenticated"`
	User            json.RawMessage `json:"user,omitempty"`
	HasAccessToken  bool            `json:"hasAccessToken"`
	HasRefreshToken bool            `json:"hasRefreshToken"`
	TokenLength     int             `json:"tokenLength"`
	Message         string          `json:"message,omitempty"`
	NeedsReauth     bool            `json:"needsReauth,omitempty"`
}

// Probe asks the gateway whether the jar holds a live session. A 401 is a
// normal answer and is reported through ProbeResult, not as an error.
func (c *Client) Probe(ctx context.Context) (*ProbeResult, error) {
	resp, err := c.session(ctx, http.MethodGet, "/session-probe", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnauthorized {
		return nil, c.sessionError(resp)
	}

	var result ProbeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode probe response: %w", err)
	}
	return &result, nil
}

// Issue stores the credentials returned by a login call in the jar.
func (c *Client) Issue(ctx context.Context, accessCredential, refreshCredential string, profile any) error {
	resp, err := c.session(ctx, http.MethodPost, "/session-issue", map[string]any{
		"accessCredential":  accessCredential,
		"refreshCredential": refreshCredential,
		"userProfile":       profile,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.sessionError(resp)
	}
	return nil
}

func (c *Client) Revoke(ctx context.Context) error {
	resp, err := c.session(ctx, http.MethodDelete, "/session-revoke", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.sessionError(resp)
	}
	return nil
}

func (c *Client) session(ctx context.Context, method, path string, body any) (*http.Response, error) {
	reader, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) sessionError(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	apiErr, _ := parseError(resp.StatusCode, raw)
	return apiErr
}
