package auth

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/marcogenualdo/session-gateway/pkg/security"
)

type CookieNames struct {
	Access  string
	Refresh string
	Profile string
}

// Codec maps credentials to and from cookies. It holds no request state; the
// environment-dependent attributes arrive through the injected profile.
type Codec struct {
	names      CookieNames
	profile    security.CookieProfile
	accessTTL  time.Duration
	sessionTTL time.Duration
}

func NewCodec(names CookieNames, profile security.CookieProfile, accessTTL, sessionTTL time.Duration) *Codec {
	return &Codec{
		names:      names,
		profile:    profile,
		accessTTL:  accessTTL,
		sessionTTL: sessionTTL,
	}
}

func (c *Codec) Names() CookieNames {
	return c.names
}

func (c *Codec) DecodeRequest(r *http.Request) Credentials {
	return c.Decode(security.RequestCookiePairs(r))
}

// Decode reads the credential cookies from jar. The first non-empty
// occurrence of a name wins. A present profile cookie counts as some session
// even when it is empty or does not decode; it is then reported as absent.
func (c *Codec) Decode(jar []security.CookiePair) Credentials {
	var creds Credentials
	seen := make(map[string]bool, 3)

	for _, pair := range jar {
		if pair.Name == c.names.Profile {
			creds.profileSeen = true
		}
		value := unquote(pair.Value)
		if seen[pair.Name] || value == "" {
			continue
		}

		switch pair.Name {
		case c.names.Access:
			creds.AccessToken = decodeToken(value)
		case c.names.Refresh:
			creds.RefreshToken = decodeToken(value)
		case c.names.Profile:
			creds.Profile = decodeProfile(value)
		default:
			continue
		}
		seen[pair.Name] = true
	}

	return creds
}

// Encode returns the three cookies for a freshly issued session. Token values
// are path-escaped so that every byte survives as a cookie-octet; JWT and
// base64url tokens are left as they are.
func (c *Codec) Encode(creds Credentials) []*http.Cookie {
	return []*http.Cookie{
		security.CreateCookie(c.profile, c.names.Access, url.PathEscape(creds.AccessToken), c.accessTTL),
		security.CreateCookie(c.profile, c.names.Refresh, url.PathEscape(creds.RefreshToken), c.sessionTTL),
		security.CreateCookie(c.profile, c.names.Profile, url.QueryEscape(string(creds.Profile)), c.sessionTTL),
	}
}

// Clear returns expiring cookies for the three credential names plus extra.
func (c *Codec) Clear(extra ...string) []*http.Cookie {
	names := append([]string{c.names.Access, c.names.Refresh, c.names.Profile}, extra...)
	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookies = append(cookies, security.ClearCookie(c.profile, name))
	}
	return cookies
}

// unquote removes the optional DQUOTE wrapping of a cookie value.
func unquote(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	return value
}

// decodeToken reverses the escaping done by Encode. A value that is not a
// valid escape sequence was not written by Encode and is used as is.
func decodeToken(value string) string {
	token, err := url.PathUnescape(value)
	if err != nil {
		return value
	}
	return token
}

func decodeProfile(value string) json.RawMessage {
	raw, err := url.QueryUnescape(value)
	if err != nil {
		return nil
	}
	if !json.Valid([]byte(raw)) {
		return nil
	}
	return json.RawMessage(raw)
}
