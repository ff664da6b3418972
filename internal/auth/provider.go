package auth

import (
	"context"
	"encoding/json"
)

// IdentityProvider validates an access credential against the authority that
// issued it and returns the identity document it describes.
type IdentityProvider interface {
	Identify(ctx context.Context, accessToken string) (json.RawMessage, error)
}
