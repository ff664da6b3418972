package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/marcogenualdo/session-gateway/internal/auth"
	"github.com/marcogenualdo/session-gateway/internal/config"
	"github.com/marcogenualdo/session-gateway/internal/metrics"
)

// Gate is the edge access check run before any protected page renders. It
// decides from cookies alone and never calls the upstream API: a present
// access credential is let through unvalidated and is re-checked by whatever
// downstream call uses it.
type Gate struct {
	signInPath     string
	publicPaths    map[string]bool
	publicPrefixes []string
	codec          *auth.Codec
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

func NewGate(cfg config.GateConfig, codec *auth.Codec, m *metrics.Metrics, logger *slog.Logger) *Gate {
	publicPaths := make(map[string]bool, len(cfg.PublicPaths))
	for _, p := range cfg.PublicPaths {
		publicPaths[p] = true
	}

	return &Gate{
		signInPath:     cfg.SignInPath,
		publicPaths:    publicPaths,
		publicPrefixes: cfg.PublicPrefixes,
		codec:          codec,
		metrics:        m,
		logger:         logger,
	}
}

func (g *Gate) IsPublic(path string) bool {
	if g.publicPaths[path] {
		return true
	}
	for _, prefix := range g.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// SignInURL is the redirect target for a denied request to path.
func (g *Gate) SignInURL(path string) string {
	return g.signInPath + "?next=" + url.QueryEscape(path)
}

func (g *Gate) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.IsPublic(r.URL.Path) {
			g.metrics.GateDecision("public")
			next.ServeHTTP(w, r)
			return
		}

		creds := g.codec.DecodeRequest(r)
		if creds.HasAccessToken() {
			g.metrics.GateDecision("allow")
			next.ServeHTTP(w, r)
			return
		}

		if creds.HasAnySession() {
			g.logger.Debug("session without access credential", "path", r.URL.Path)
		} else {
			g.logger.Debug("no session cookies", "path", r.URL.Path)
		}

		g.metrics.GateDecision("redirect")
		http.Redirect(w, r, g.SignInURL(r.URL.Path), http.StatusFound)
	})
}
