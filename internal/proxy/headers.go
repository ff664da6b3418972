package proxy

import (
	"net/http"

	"github.com/marcogenualdo/session-gateway/internal/auth"
)

// applyCredentials sets the outbound headers the upstream expects. The
// caller's own Authorization header is never forwarded; the bearer comes from
// the access cookie only.
func applyCredentials(h http.Header, creds auth.Credentials, cookieHeader string) {
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}

	h.Del("Cookie")
	if cookieHeader != "" {
		h.Set("Cookie", cookieHeader)
	}

	h.Del("Authorization")
	if creds.HasAccessToken() {
		h.Set("Authorization", "Bearer "+creds.AccessToken)
	}
}
