package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strconv"

	"github.com/marcogenualdo/session-gateway/internal/auth"
	"github.com/marcogenualdo/session-gateway/internal/config"
	"github.com/marcogenualdo/session-gateway/internal/metrics"
	"github.com/marcogenualdo/session-gateway/internal/respond"
	"github.com/marcogenualdo/session-gateway/internal/upstream"
	"github.com/marcogenualdo/session-gateway/pkg/security"
)

// AuthFailure is the only body a proxied 401 ever carries, whatever the
// upstream sent.
type AuthFailure struct {
	Error       string            `json:"error"`
	Message     string            `json:"message"`
	NeedsReauth bool              `json:"needsReauth"`
	Debug       *AuthFailureDebug `json:"debug,omitempty"`
}

type AuthFailureDebug struct {
	UpstreamStatus int    `json:"upstreamStatus"`
	HadAccessToken bool   `json:"hadAccessToken"`
	Path           string `json:"path"`
}

type callInfo struct {
	path           string
	hadAccessToken bool
}

type callInfoKey struct{}

// RequestProxy forwards /proxy?path=... to the upstream API with the
// credentials held in the caller's cookies. It never writes cookies and never
// refreshes credentials; every upstream 401 is handed back as AuthFailure.
type RequestProxy struct {
	proxy             *httputil.ReverseProxy
	upstream          *upstream.Client
	codec             *auth.Codec
	debugAuthFailures bool
	metrics           *metrics.Metrics
	logger            *slog.Logger
}

func NewRequestProxy(up *upstream.Client, codec *auth.Codec, cfg config.ProxyConfig, m *metrics.Metrics, logger *slog.Logger) *RequestProxy {
	rp := &RequestProxy{
		upstream:          up,
		codec:             codec,
		debugAuthFailures: cfg.DebugAuthFailures,
		metrics:           m,
		logger:            logger,
	}

	rp.proxy = &httputil.ReverseProxy{
		// the outbound request is fully prepared in ServeHTTP
		Director:       func(*http.Request) {},
		Transport:      up.Transport(),
		ModifyResponse: rp.modifyResponse,
		ErrorHandler:   rp.handleError,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return rp
}

func (rp *RequestProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logical := r.URL.Query().Get("path")
	if logical == "" {
		respond.Error(w, http.StatusBadRequest, "Missing path parameter")
		return
	}

	target, err := rp.upstream.Resolve(logical)
	if err != nil {
		rp.logger.Warn("rejected proxy path", "path", logical, "error", err)
		respond.Error(w, http.StatusBadRequest, "Invalid path parameter")
		return
	}

	creds := rp.codec.DecodeRequest(r)

	cookieHeader, dropped := security.SanitizeCookieHeader(security.RequestCookiePairs(r))
	for _, name := range dropped {
		rp.logger.Warn("dropping cookie that is not a valid header value", "cookie", name)
	}
	rp.metrics.CookiesDropped(len(dropped))

	ctx := context.WithValue(r.Context(), callInfoKey{}, callInfo{
		path:           logical,
		hadAccessToken: creds.HasAccessToken(),
	})

	out := r.Clone(ctx)
	out.URL = target
	out.Host = target.Host
	applyCredentials(out.Header, creds, cookieHeader)

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		out.Body = http.NoBody
		out.ContentLength = 0
		out.Header.Del("Content-Length")
	}

	rp.logger.Debug("proxying request",
		"method", r.Method,
		"path", logical,
		"has_access_token", creds.HasAccessToken(),
	)

	rp.proxy.ServeHTTP(w, out)
}

func (rp *RequestProxy) modifyResponse(resp *http.Response) error {
	rp.metrics.UpstreamResponse(resp.StatusCode)

	resp.Header.Del("Set-Cookie")

	if resp.StatusCode != http.StatusUnauthorized {
		if resp.Header.Get("Content-Type") == "" {
			resp.Header.Set("Content-Type", "application/json")
		}
		return nil
	}

	info, _ := resp.Request.Context().Value(callInfoKey{}).(callInfo)
	rp.logger.Info("upstream rejected credential",
		"path", info.path,
		"had_access_token", info.hadAccessToken,
	)

	failure := AuthFailure{
		Error:       "Unauthorized",
		Message:     "Authentication required",
		NeedsReauth: true,
	}
	if rp.debugAuthFailures {
		failure.Debug = &AuthFailureDebug{
			UpstreamStatus: resp.StatusCode,
			HadAccessToken: info.hadAccessToken,
			Path:           info.path,
		}
	}

	body, err := json.Marshal(failure)
	if err != nil {
		return err
	}

	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	resp.Header.Set("Content-Type", "application/json")
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Www-Authenticate")

	return nil
}

func (rp *RequestProxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	rp.metrics.ProxyFailure()

	if errors.Is(err, context.Canceled) {
		rp.logger.Debug("proxy request canceled by client", "path", r.URL.Path)
	} else {
		rp.logger.Error("proxy error",
			"error", err,
			"backend", rp.upstream.BaseURL().String(),
			"path", r.URL.Path,
		)
	}

	respond.JSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Proxy request failed",
		"details": err.Error(),
	})
}
