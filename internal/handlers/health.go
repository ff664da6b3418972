package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/marcogenualdo/session-gateway/internal/cache"
	"github.com/marcogenualdo/session-gateway/internal/respond"
)

// Pinger reports whether a dependency answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	cacheType string
	cache     cache.Cache
	upstream  Pinger
	logger    *slog.Logger
	startTime time.Time
}

func NewHealthHandler(cacheType string, c cache.Cache, upstream Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		cacheType: cacheType,
		cache:     c,
		upstream:  upstream,
		logger:    logger,
		startTime: time.Now(),
	}
}

type HealthResponse struct {
	Status   string         `json:"status"`
	Uptime   string         `json:"uptime"`
	Cache    CacheHealth    `json:"cache"`
	Upstream UpstreamHealth `json:"upstream"`
}

type CacheHealth struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type UpstreamHealth struct {
	Status string `json:"status"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: "healthy",
		Uptime: time.Since(h.startTime).String(),
	}

	response.Cache.Type = h.cacheType
	if err := h.checkCache(ctx); err != nil {
		h.logger.Warn("cache health check failed", "error", err)
		response.Cache.Status = "error: " + err.Error()
		response.Status = "degraded"
	} else {
		response.Cache.Status = "connected"
	}

	if err := h.upstream.Ping(ctx); err != nil {
		h.logger.Warn("upstream health check failed", "error", err)
		response.Upstream.Status = "unreachable"
		response.Status = "degraded"
	} else {
		response.Upstream.Status = "reachable"
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	respond.JSON(w, status, response)
}

func (h *HealthHandler) checkCache(ctx context.Context) error {
	if err := h.cache.Set(ctx, "health:check", []byte("ok"), time.Minute); err != nil {
		return err
	}
	if _, err := h.cache.Get(ctx, "health:check"); err != nil {
		return err
	}
	return h.cache.Delete(ctx, "health:check")
}
