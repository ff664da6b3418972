package proxy

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marcogenualdo/session-gateway/internal/auth"
	"github.com/marcogenualdo/session-gateway/internal/config"
	"github.com/marcogenualdo/session-gateway/internal/upstream"
	"github.com/marcogenualdo/session-gateway/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedRequest is what the fake upstream saw.
type recordedRequest struct {
	method string
	uri    string
	header http.Header
	body   string
}

type fakeUpstream struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func (fu *fakeUpstream) recorded() []recordedRequest {
	fu.mu.Lock()
	defer fu.mu.Unlock()
	return append([]recordedRequest(nil), fu.requests...)
}

func (fu *fakeUpstream) reset() {
	fu.mu.Lock()
	defer fu.mu.Unlock()
	fu.requests = nil
}

func newFakeUpstream(t *testing.T, handler http.HandlerFunc) *fakeUpstream {
	t.Helper()
	fu := &fakeUpstream{}
	fu.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fu.mu.Lock()
		fu.requests = append(fu.requests, recordedRequest{
			method: r.Method,
			uri:    r.URL.RequestURI(),
			header: r.Header.Clone(),
			body:   string(body),
		})
		fu.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(fu.Close)
	return fu
}

func newTestProxy(t *testing.T, upstreamURL string, cfg config.ProxyConfig) *RequestProxy {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	up, err := upstream.NewClient(config.UpstreamConfig{URL: upstreamURL, IdentityPath: "/auth/me", Timeout: 5 * time.Second}, logger)
	require.NoError(t, err)

	codec := auth.NewCodec(auth.CookieNames{
		Access:  "accessCredential",
		Refresh: "refreshCredential",
		Profile: "userProfile",
	}, security.ProductionProfile(), time.Hour, 30*24*time.Hour)

	return NewRequestProxy(up, codec, cfg, nil, logger)
}

func proxyRequest(method, logical string, body io.Reader) *http.Request {
	target := "/proxy"
	if logical != "" {
		target += "?path=" + url.QueryEscape(logical)
	}
	return httptest.NewRequest(method, target, body)
}

func TestRequestProxy_MissingPath(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	rp := newTestProxy(t, fu.URL, config.ProxyConfig{})

	rec := httptest.NewRecorder()
	rp.ServeHTTP(rec, proxyRequest(http.MethodGet, "", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing path parameter"}`, rec.Body.String())
	assert.Empty(t, fu.recorded())
}

func TestRequestProxy_InvalidPath(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	rp := newTestProxy(t, fu.URL, config.ProxyConfig{})

	rec := httptest.NewRecorder()
	rp.ServeHTTP(rec, proxyRequest(http.MethodGet, "http://evil.example.com/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fu.recorded())
}

func TestRequestProxy_PassThrough(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.SetCookie(w, &http.Cookie{Name: "upstream_session", Value: "leak"})
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"ok":true}`)
	})
	rp := newTestProxy(t, fu.URL, config.ProxyConfig{})

	rec := httptest.NewRecorder()
	rp.ServeHTTP(rec, proxyRequest(http.MethodGet, "/portfolios?limit=5", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Values("Set-Cookie"))

	require.Len(t, fu.recorded(), 1)
	assert.Equal(t, "/portfolios?limit=5", fu.recorded()[0].uri)
}

func TestRequestProxy_ErrorStatusRelayedVerbatim(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "maintenance")
	})
	rp := newTestProxy(t, fu.URL, config.ProxyConfig{})

	rec := httptest.NewRecorder()
	rp.ServeHTTP(rec, proxyRequest(http.MethodGet, "/features", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "maintenance", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestRequestProxy_DefaultContentType(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"missing"}`)
	})
	rp := newTestProxy(t, fu.URL, config.ProxyConfig{})

	rec := httptest.NewRecorder()
	rp.ServeHTTP(rec, proxyRequest(http.MethodGet, "/features/9", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, `{"detail":"missing"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRequestProxy_UnauthorizedIsNormalized(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"expired"}`)
	})

	t.Run("plain", func(t *testing.T) {
		rp := newTestProxy(t, fu.URL, config.ProxyConfig{})

		req := proxyRequest(http.MethodGet, "/portfolios", nil)
		req.Header.Set("Cookie", "accessCredential=stale")
		rec := httptest.NewRecorder()
		rp.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Unauthorized","message":"Authentication required","needsReauth":true}`, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
		assert.NotContains(t, rec.Body.String(), "expired")
	})

	t.Run("with debug", func(t *testing.T) {
		rp := newTestProxy(t, fu.URL, config.ProxyConfig{DebugAuthFailures: true})

		rec := httptest.NewRecorder()
		rp.ServeHTTP(rec, proxyRequest(http.MethodDelete, "/features/3", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{
			"error":"Unauthorized",
			"message":"Authentication required",
			"needsReauth":true,
			"debug":{"upstreamStatus":401,"hadAccessToken":false,"path":"/features/3"}
		}`, rec.Body.String())
	})
}

func TestRequestProxy_TransportFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	rp := newTestProxy(t, deadURL, config.ProxyConfig{})

	rec := httptest.NewRecorder()
	rp.ServeHTTP(rec, proxyRequest(http.MethodGet, "/portfolios", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Proxy request failed"`)
	assert.Contains(t, rec.Body.String(), `"details":`)
}

func TestRequestProxy_OutboundHeaders(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	rp := newTestProxy(t, fu.URL, config.ProxyConfig{})

	t.Run("credentials attached and cookies sanitized", func(t *testing.T) {
		fu.reset()
		req := proxyRequest(http.MethodGet, "/me/settings", nil)
		req.Header.Set("Cookie", "accessCredential=abc; bad=\x00oops; theme=dark")
		req.Header.Set("Authorization", "Bearer spoofed")
		rec := httptest.NewRecorder()
		rp.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Len(t, fu.recorded(), 1)
		h := fu.recorded()[0].header
		assert.Equal(t, "Bearer abc", h.Get("Authorization"))
		assert.Equal(t, "accessCredential=abc; theme=dark", h.Get("Cookie"))
		assert.Equal(t, "application/json", h.Get("Content-Type"))
	})

	t.Run("anonymous call has no auth and no cookie header", func(t *testing.T) {
		fu.reset()
		req := proxyRequest(http.MethodGet, "/features", nil)
		req.Header.Set("Authorization", "Bearer spoofed")
		rec := httptest.NewRecorder()
		rp.ServeHTTP(rec, req)

		require.Len(t, fu.recorded(), 1)
		h := fu.recorded()[0].header
		assert.Empty(t, h.Get("Authorization"))
		assert.Empty(t, h.Values("Cookie"))
	})

	t.Run("body forwarded unmodified for mutations", func(t *testing.T) {
		fu.reset()
		payload := `{"title":"Dark mode","votes":[1, 2]}`
		req := proxyRequest(http.MethodPost, "/features", strings.NewReader(payload))
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		rec := httptest.NewRecorder()
		rp.ServeHTTP(rec, req)

		require.Len(t, fu.recorded(), 1)
		assert.Equal(t, http.MethodPost, fu.recorded()[0].method)
		assert.Equal(t, payload, fu.recorded()[0].body)
		assert.Equal(t, "text/plain; charset=utf-8", fu.recorded()[0].header.Get("Content-Type"))
	})

	t.Run("body dropped for GET", func(t *testing.T) {
		fu.reset()
		req := proxyRequest(http.MethodGet, "/features", strings.NewReader(`{"ignored":true}`))
		rec := httptest.NewRecorder()
		rp.ServeHTTP(rec, req)

		require.Len(t, fu.recorded(), 1)
		assert.Empty(t, fu.recorded()[0].body)
	})
}
