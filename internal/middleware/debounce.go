package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/marcogenualdo/session-gateway/internal/auth"
	"github.com/marcogenualdo/session-gateway/internal/cache"
	"github.com/marcogenualdo/session-gateway/internal/metrics"
	"github.com/marcogenualdo/session-gateway/internal/respond"
)

// Debouncer suppresses repeats of the same mutating proxied call made with the
// same access credential inside a short window. Each call takes a per-key
// expiring lock in the cache; nothing is held in process-wide flags.
type Debouncer struct {
	cache   cache.Cache
	window  time.Duration
	codec   *auth.Codec
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewDebouncer(c cache.Cache, window time.Duration, codec *auth.Codec, m *metrics.Metrics, logger *slog.Logger) *Debouncer {
	return &Debouncer{
		cache:   c,
		window:  window,
		codec:   codec,
		metrics: m,
		logger:  logger,
	}
}

func (d *Debouncer) Suppress(next http.Handler) http.Handler {
	if d.window <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isMutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		creds := d.codec.DecodeRequest(r)
		if !creds.HasAccessToken() {
			next.ServeHTTP(w, r)
			return
		}

		key := debounceKey(creds.AccessToken, r.Method, r.URL.Query().Get("path"))
		acquired, err := d.cache.SetNX(r.Context(), key, []byte("1"), d.window)
		if err != nil {
			// fail open: the lock only suppresses duplicates
			d.logger.Warn("debounce lock unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if !acquired {
			d.metrics.Debounced()
			d.logger.Debug("duplicate request suppressed", "method", r.Method, "path", r.URL.Query().Get("path"))
			respond.JSON(w, http.StatusTooManyRequests, map[string]string{
				"error":   "Too many requests",
				"message": "Duplicate request suppressed",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func debounceKey(accessToken, method, path string) string {
	sum := sha256.Sum256([]byte(accessToken + "\x00" + method + "\x00" + path))
	return "debounce:" + hex.EncodeToString(sum[:16])
}
