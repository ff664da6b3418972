package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marcogenualdo/session-gateway/internal/handlers"
	"github.com/marcogenualdo/session-gateway/internal/middleware"
	"github.com/marcogenualdo/session-gateway/internal/proxy"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(
		middleware.Recovery(s.logger),
		middleware.Logging(s.logger, s.metrics),
		addSecurityHeaders,
	)

	sessionHandler := handlers.NewSessionHandler(s.codec, s.upstream, s.cfg.Cookies.PortfolioName, s.metrics, s.logger)
	healthHandler := handlers.NewHealthHandler(s.cfg.Cache.Type, s.cache, s.upstream, s.logger)
	requestProxy := proxy.NewRequestProxy(s.upstream, s.codec, s.cfg.Proxy, s.metrics, s.logger)
	debouncer := middleware.NewDebouncer(s.cache, s.cfg.Proxy.DebounceWindow, s.codec, s.metrics, s.logger)
	gate := middleware.NewGate(s.cfg.Gate, s.codec, s.metrics, s.logger)

	pages := http.NotFoundHandler()
	if s.cfg.Renderer.URL != "" {
		pageProxy, err := proxy.NewPageProxy(s.cfg.Renderer.URL, s.logger)
		if err != nil {
			return nil, err
		}
		pages = pageProxy
	}

	r.Get("/session-probe", sessionHandler.Probe)
	r.Post("/session-issue", sessionHandler.Issue)
	r.Delete("/session-revoke", sessionHandler.Revoke)
	r.Post("/clear-all-cookies", sessionHandler.ClearAll)

	r.Handle("/proxy", debouncer.Suppress(requestProxy))

	r.Get("/health", healthHandler.ServeHTTP)

	if s.cfg.MetricsEnabled() && s.registry != nil {
		r.Get(s.cfg.Metrics.Path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	// everything else is a page navigation
	r.NotFound(gate.Protect(pages).ServeHTTP)

	return r, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
