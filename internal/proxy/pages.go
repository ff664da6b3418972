package proxy

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewPageProxy forwards page navigations to the renderer. It runs behind the
// access gate and passes cookies through untouched; the renderer reads the
// same credential cookies when it needs authenticated data.
func NewPageProxy(rendererURL string, logger *slog.Logger) (http.Handler, error) {
	backendURL, err := url.Parse(rendererURL)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(backendURL)

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = backendURL.Host
		req.URL.Scheme = backendURL.Scheme
		req.URL.Host = backendURL.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("renderer proxy error",
			"error", err,
			"backend", backendURL.String(),
			"path", r.URL.Path,
		)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}
	proxy.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)

	return proxy, nil
}
