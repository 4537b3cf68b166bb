package interfaces

import "errors"

// ErrUnauthorized is returned when a bearer token is missing, malformed or invalid
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when a caller presents a valid identity but lacks
// access to the requested resource or endpoint
var ErrForbidden = errors.New("forbidden")

// Identity represents an authenticated caller
type Identity struct {
	// UserID is the stable caller identifier (JWT subject)
	UserID string `json:"user_id"`

	// Issuer is the token issuer, empty for anonymous identities
	Issuer string `json:"issuer,omitempty"`

	// Anonymous is true when auth is disabled and a development identity
	// was synthesized instead of verified
	Anonymous bool `json:"anonymous,omitempty"`
}

// AuthService verifies caller credentials on inbound requests
type AuthService interface {
	// VerifyBearer validates an Authorization header value ("Bearer <token>")
	// and returns the caller identity. Returns ErrUnauthorized when the
	// header is missing or the token does not verify.
	VerifyBearer(authorization string) (*Identity, error)

	// VerifyQueueToken validates the shared secret presented by the queue
	// dispatch endpoint. Returns ErrForbidden on mismatch.
	VerifyQueueToken(token string) error
}
