package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

func (c *Config) Validate() error {
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("invalid environment: %s (must be %s or %s)", c.Environment, EnvDevelopment, EnvProduction)
	}

	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.validateUpstream(); err != nil {
		return fmt.Errorf("upstream config: %w", err)
	}

	if c.Renderer.URL != "" {
		if err := validateHTTPURL(c.Renderer.URL); err != nil {
			return fmt.Errorf("renderer config: %w", err)
		}
	}

	if err := c.validateCookies(); err != nil {
		return fmt.Errorf("cookies config: %w", err)
	}

	if err := c.validateGate(); err != nil {
		return fmt.Errorf("gate config: %w", err)
	}

	if c.Proxy.DebounceWindow < 0 {
		return fmt.Errorf("proxy config: debounce_window must not be negative")
	}

	if c.MetricsEnabled() && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics config: path must start with '/': %s", c.Metrics.Path)
	}

	if err := c.validateCache(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	return nil
}

func (c *Config) validateUpstream() error {
	if c.Upstream.URL == "" {
		return fmt.Errorf("url is required (set upstream.url or UPSTREAM_API_URL)")
	}

	if err := validateHTTPURL(c.Upstream.URL); err != nil {
		return err
	}

	if !strings.HasPrefix(c.Upstream.IdentityPath, "/") {
		return fmt.Errorf("identity_path must start with '/': %s", c.Upstream.IdentityPath)
	}

	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func (c *Config) validateCookies() error {
	names := map[string]string{
		"access_name":    c.Cookies.AccessName,
		"refresh_name":   c.Cookies.RefreshName,
		"profile_name":   c.Cookies.ProfileName,
		"portfolio_name": c.Cookies.PortfolioName,
	}

	seen := make(map[string]bool)
	for field, name := range names {
		if seen[name] {
			return fmt.Errorf("%s: duplicate cookie name: %s", field, name)
		}
		seen[name] = true
	}

	if c.Cookies.AccessTTL < time.Minute {
		return fmt.Errorf("access_ttl must be at least 1 minute")
	}

	if c.Cookies.SessionTTL < c.Cookies.AccessTTL {
		return fmt.Errorf("session_ttl must not be shorter than access_ttl")
	}

	return nil
}

func (c *Config) validateGate() error {
	if !strings.HasPrefix(c.Gate.SignInPath, "/") {
		return fmt.Errorf("sign_in_path must start with '/': %s", c.Gate.SignInPath)
	}

	for _, p := range c.Gate.PublicPaths {
		if p == c.Gate.SignInPath {
			return nil
		}
	}

	return fmt.Errorf("sign_in_path %s must be listed in public_paths", c.Gate.SignInPath)
}

func (c *Config) validateCache() error {
	if c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("invalid type: %s (must be memory or redis)", c.Cache.Type)
	}

	if c.Cache.Type == "redis" {
		if c.Cache.Redis == nil {
			return fmt.Errorf("redis config is required when type is redis")
		}
		if c.Cache.Redis.Address == "" {
			return fmt.Errorf("redis address is required")
		}
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" {
		return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %s: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %s: host is required", raw)
	}
	return nil
}
