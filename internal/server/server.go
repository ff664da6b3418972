package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/marcogenualdo/session-gateway/internal/auth"
	"github.com/marcogenualdo/session-gateway/internal/cache"
	"github.com/marcogenualdo/session-gateway/internal/config"
	"github.com/marcogenualdo/session-gateway/internal/metrics"
	"github.com/marcogenualdo/session-gateway/internal/upstream"
	"github.com/marcogenualdo/session-gateway/pkg/security"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	cfg        config.Config
	cache      cache.Cache
	upstream   *upstream.Client
	codec      *auth.Codec
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
}

func New(cfg config.Config, c cache.Cache, up *upstream.Client, registry *prometheus.Registry, logger *slog.Logger) (*Server, error) {
	profile := security.ProductionProfile()
	if cfg.IsDevelopment() {
		profile = security.DevelopmentProfile(cfg.Cookies.DevDomain)
	}

	s := &Server{
		cfg:      cfg,
		cache:    c,
		upstream: up,
		codec: auth.NewCodec(auth.CookieNames{
			Access:  cfg.Cookies.AccessName,
			Refresh: cfg.Cookies.RefreshName,
			Profile: cfg.Cookies.ProfileName,
		}, profile, cfg.Cookies.AccessTTL, cfg.Cookies.SessionTTL),
		registry: registry,
		logger:   logger,
	}
	if registry != nil {
		s.metrics = metrics.New(registry)
	}

	handler, err := s.setupRoutes()
	if err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	s.handler = handler

	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port)),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"host", s.cfg.Server.Host,
			"port", s.cfg.Server.Port,
			"environment", s.cfg.Environment,
			"upstream", s.upstream.BaseURL().String(),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig)
		return s.Shutdown()
	}
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}

	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing cache", "error", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}
