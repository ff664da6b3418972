package auth

import "encoding/json"

// Credentials are the three session artifacts carried in cookies. They are
// opaque here: the access credential is forwarded but never parsed.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Profile      json.RawMessage

	// profileSeen is set when a profile cookie was present, even if it did not decode.
	profileSeen bool
}

func (c Credentials) HasAccessToken() bool {
	return c.AccessToken != ""
}

func (c Credentials) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// HasAnySession reports whether any session artifact was present. A profile or
// refresh credential without an access credential means "possibly expired"
// rather than "never logged in".
func (c Credentials) HasAnySession() bool {
	return c.HasAccessToken() || c.HasRefreshToken() || c.profileSeen
}
