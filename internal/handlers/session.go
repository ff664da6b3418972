package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/marcogenualdo/session-gateway/internal/auth"
	"github.com/marcogenualdo/session-gateway/internal/metrics"
	"github.com/marcogenualdo/session-gateway/internal/respond"
)

const (
	maxIssueBodyBytes = 64 << 10

	// browsers silently drop cookies above roughly 4KB
	maxProfileCookieBytes = 3800
)

// SessionHandler issues, reports and revokes the credential cookies. It is
// the only code in the gateway that writes cookies.
type SessionHandler struct {
	codec           *auth.Codec
	identity        auth.IdentityProvider
	portfolioCookie string
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

func NewSessionHandler(codec *auth.Codec, identity auth.IdentityProvider, portfolioCookie string, m *metrics.Metrics, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		codec:           codec,
		identity:        identity,
		portfolioCookie: portfolioCookie,
		metrics:         m,
		logger:          logger,
	}
}

type ProbeResponse struct {
	Authenticated   bool            `json:"authenticated"`
	User            json.RawMessage `json:"user,omitempty"`
	HasAccessToken  bool            `json:"hasAccessToken"`
	HasRefreshToken bool            `json:"hasRefreshToken"`
	TokenLength     int             `json:"tokenLength"`
}

type UnauthenticatedResponse struct {
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message"`
	NeedsReauth   bool   `json:"needsReauth,omitempty"`
}

type IssueRequest struct {
	AccessCredential  string          `json:"accessCredential"`
	RefreshCredential string          `json:"refreshCredential"`
	UserProfile       json.RawMessage `json:"userProfile"`
}

// Probe reports whether the caller holds an access credential the upstream
// still accepts. It never touches cookies.
func (h *SessionHandler) Probe(w http.ResponseWriter, r *http.Request) {
	creds := h.codec.DecodeRequest(r)

	if !creds.HasAccessToken() {
		h.metrics.Probe("no_token")
		respond.JSON(w, http.StatusUnauthorized, UnauthenticatedResponse{
			Authenticated: false,
			Message:       "No access token",
		})
		return
	}

	identity, err := h.identity.Identify(r.Context(), creds.AccessToken)
	if err != nil {
		// an unreachable upstream is answered like a rejected token
		h.logger.Info("session probe failed", "error", err)
		h.metrics.Probe("rejected")
		respond.JSON(w, http.StatusUnauthorized, UnauthenticatedResponse{
			Authenticated: false,
			Message:       "Invalid or expired token",
			NeedsReauth:   true,
		})
		return
	}

	user := creds.Profile
	if user == nil {
		user = identity
	}

	h.metrics.Probe("authenticated")
	respond.JSON(w, http.StatusOK, ProbeResponse{
		Authenticated:   true,
		User:            user,
		HasAccessToken:  true,
		HasRefreshToken: creds.HasRefreshToken(),
		TokenLength:     len(creds.AccessToken),
	})
}

// Issue stores credentials obtained by a successful login elsewhere.
func (h *SessionHandler) Issue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIssueBodyBytes)

	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.AccessCredential == "" || req.RefreshCredential == "" || isEmptyJSON(req.UserProfile) {
		respond.Error(w, http.StatusBadRequest, "Missing required fields: accessCredential, refreshCredential, userProfile")
		return
	}

	if len(url.QueryEscape(string(req.UserProfile))) > maxProfileCookieBytes {
		respond.Error(w, http.StatusBadRequest, "userProfile too large")
		return
	}

	for _, cookie := range h.codec.Encode(auth.Credentials{
		AccessToken:  req.AccessCredential,
		RefreshToken: req.RefreshCredential,
		Profile:      req.UserProfile,
	}) {
		http.SetCookie(w, cookie)
	}

	h.metrics.SessionIssued()
	h.logger.Info("session issued", "token_length", len(req.AccessCredential))

	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Revoke clears the three credential cookies whether or not a session exists.
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	for _, cookie := range h.codec.Clear() {
		http.SetCookie(w, cookie)
	}

	h.metrics.SessionRevoked()
	h.logger.Info("session revoked")

	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ClearAll also clears the application's portfolio selection.
func (h *SessionHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	for _, cookie := range h.codec.Clear(h.portfolioCookie) {
		http.SetCookie(w, cookie)
	}

	h.metrics.SessionRevoked()
	h.logger.Info("all cookies cleared")

	respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func isEmptyJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
