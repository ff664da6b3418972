package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DefaultPath = "/etc/session-gateway/config.yaml"
)

type Config struct {
	Environment string         `yaml:"environment"`
	Server      ServerConfig   `yaml:"server"`
	Upstream    UpstreamConfig `yaml:"upstream"`
	Renderer    RendererConfig `yaml:"renderer"`
	Cookies     CookiesConfig  `yaml:"cookies"`
	Gate        GateConfig     `yaml:"gate"`
	Proxy       ProxyConfig    `yaml:"proxy"`
	Cache       CacheConfig    `yaml:"cache"`
	Logging     LoggingConfig  `yaml:"logging"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig describes the identity + domain API every proxied call goes to.
type UpstreamConfig struct {
	URL          string        `yaml:"url"`
	IdentityPath string        `yaml:"identity_path"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RendererConfig points at the page renderer served behind the access gate.
// An empty URL leaves the gated catch-all answering 404.
type RendererConfig struct {
	URL string `yaml:"url"`
}

type CookiesConfig struct {
	AccessName    string        `yaml:"access_name"`
	RefreshName   string        `yaml:"refresh_name"`
	ProfileName   string        `yaml:"profile_name"`
	PortfolioName string        `yaml:"portfolio_name"`
	DevDomain     string        `yaml:"dev_domain"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type GateConfig struct {
	SignInPath     string   `yaml:"sign_in_path"`
	PublicPaths    []string `yaml:"public_paths"`
	PublicPrefixes []string `yaml:"public_prefixes"`
}

type ProxyConfig struct {
	DebugAuthFailures bool          `yaml:"debug_auth_failures"`
	DebounceWindow    time.Duration `yaml:"debounce_window"`
}

type CacheConfig struct {
	Type  string       `yaml:"type"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IsDevelopment reports whether cookies should use the local development profile.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled != nil && *c.Metrics.Enabled
}

// Load reads the YAML file at path, applies defaults and environment overrides.
// A missing file at DefaultPath is tolerated so the gateway can run from env alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Environment == "" {
		c.Environment = EnvProduction
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Upstream.IdentityPath == "" {
		c.Upstream.IdentityPath = "/auth/me"
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 30 * time.Second
	}

	if c.Cookies.AccessName == "" {
		c.Cookies.AccessName = "accessCredential"
	}
	if c.Cookies.RefreshName == "" {
		c.Cookies.RefreshName = "refreshCredential"
	}
	if c.Cookies.ProfileName == "" {
		c.Cookies.ProfileName = "userProfile"
	}
	if c.Cookies.PortfolioName == "" {
		c.Cookies.PortfolioName = "selectedPortfolio"
	}
	if c.Cookies.DevDomain == "" {
		c.Cookies.DevDomain = "localhost"
	}
	if c.Cookies.AccessTTL == 0 {
		c.Cookies.AccessTTL = time.Hour
	}
	if c.Cookies.SessionTTL == 0 {
		c.Cookies.SessionTTL = 30 * 24 * time.Hour
	}

	if c.Gate.SignInPath == "" {
		c.Gate.SignInPath = "/sign-in"
	}
	if c.Gate.PublicPaths == nil {
		c.Gate.PublicPaths = []string{"/", c.Gate.SignInPath, "/sign-up", "/health"}
	}
	if c.Gate.PublicPrefixes == nil {
		c.Gate.PublicPrefixes = []string{"/.well-known/", "/static/", "/assets/", "/favicon.ico"}
	}

	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.Type == "redis" && c.Cache.Redis != nil {
		if c.Cache.Redis.PoolSize == 0 {
			c.Cache.Redis.PoolSize = 10
		}
		if c.Cache.Redis.MaxRetries == 0 {
			c.Cache.Redis.MaxRetries = 3
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Metrics.Enabled == nil {
		enabled := true
		c.Metrics.Enabled = &enabled
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func (c *Config) loadFromEnv() error {
	if v := os.Getenv("UPSTREAM_API_URL"); v != "" {
		c.Upstream.URL = v
	}

	if v := os.Getenv("APP_ENV"); v != "" {
		c.Environment = strings.ToLower(v)
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}

	if c.Cache.Type == "redis" && c.Cache.Redis != nil {
		if envPassword := os.Getenv("REDIS_PASSWORD"); envPassword != "" {
			c.Cache.Redis.Password = envPassword
		}
	}

	return nil
}
