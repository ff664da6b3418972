package security

import (
	"net/http"
	"time"
)

// CookieProfile is the attribute set shared by every credential cookie in one
// deployment. It depends on the environment only, never on the cookie value.
type CookieProfile struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// DevelopmentProfile binds cookies to a fixed local host so they are shared
// across ports on that host.
func DevelopmentProfile(domain string) CookieProfile {
	return CookieProfile{
		Domain:   domain,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	}
}

func ProductionProfile() CookieProfile {
	return CookieProfile{
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

// CreateCookie builds an HttpOnly, root-path cookie with the profile's attributes.
func CreateCookie(profile CookieProfile, name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   profile.Domain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   profile.Secure,
		HttpOnly: true,
		SameSite: profile.SameSite,
	}
}

// ClearCookie returns a cookie that expires name immediately (Max-Age=0 on the wire).
func ClearCookie(profile CookieProfile, name string) *http.Cookie {
	cookie := CreateCookie(profile, name, "", 0)
	cookie.MaxAge = -1
	return cookie
}
