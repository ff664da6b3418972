package security

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// CookiePair is one name/value pair exactly as the browser sent it.
type CookiePair struct {
	Name  string
	Value string
}

// ParseCookiePairs splits raw Cookie header values into pairs without
// validating them. Order is preserved and empty segments are skipped.
func ParseCookiePairs(headers ...string) []CookiePair {
	var pairs []CookiePair
	for _, header := range headers {
		for _, part := range strings.Split(header, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, value, _ := strings.Cut(part, "=")
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			pairs = append(pairs, CookiePair{Name: name, Value: strings.TrimSpace(value)})
		}
	}
	return pairs
}

// RequestCookiePairs returns the pairs carried by every Cookie header of r.
func RequestCookiePairs(r *http.Request) []CookiePair {
	return ParseCookiePairs(r.Header.Values("Cookie")...)
}

// SanitizeCookieHeader joins the pairs that can legally travel in a Cookie
// header with "; ". A pair that cannot is dropped on its own and its name is
// reported in dropped; the rest of the header is unaffected. An empty header
// means no Cookie header should be sent.
func SanitizeCookieHeader(pairs []CookiePair) (header string, dropped []string) {
	kept := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		trial, ok := trialCookie(pair)
		if !ok {
			dropped = append(dropped, pair.Name)
			continue
		}
		kept = append(kept, trial)
	}
	return strings.Join(kept, "; "), dropped
}

func trialCookie(pair CookiePair) (string, bool) {
	if !httpguts.ValidHeaderFieldName(pair.Name) {
		return "", false
	}
	trial := pair.Name + "=" + pair.Value
	if !httpguts.ValidHeaderFieldValue(trial) {
		return "", false
	}
	// a separator inside the value would smuggle an extra pair into the header
	if strings.ContainsRune(pair.Value, ';') {
		return "", false
	}
	return trial, true
}
