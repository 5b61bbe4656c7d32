// Package identity turns a bearer token from the external identity provider
// into a CRM user record.
//
// Verification (is this token genuine, and whose is it?) is delegated to a
// Verifier. Resolution (which User is that, and is it the super admin?) is
// done by the Resolver against the user store on every call.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidToken covers empty, malformed, expired and badly signed tokens.
	ErrInvalidToken = errors.New("invalid identity token")
	// ErrUnavailable means the provider could not be consulted (key fetch
	// failure or timeout). The token may well be valid.
	ErrUnavailable = errors.New("identity provider unavailable")
)

// Identity is what a Verifier vouches for.
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName string
	// EmailVerified is the provider's claim that the subject owns Email.
	// Super-admin status is only granted on a verified email.
	EmailVerified bool
	// ExpiresAt is the token expiry, zero if the token carries none.
	ExpiresAt time.Time
}

// Verifier checks a raw bearer token. Implementations return errors that
// wrap ErrInvalidToken or ErrUnavailable.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}
