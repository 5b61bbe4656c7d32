package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

const (
	firebaseIssuerPrefix = "https://securetoken.google.com/"
	firebaseJWKSURL      = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
)

// FirebaseVerifier verifies Firebase Authentication ID tokens.
//
// Firebase publishes its signing keys at a fixed JWKS endpoint, so no
// discovery round trip is needed at startup; keys are fetched lazily and
// cached by the remote key set.
type FirebaseVerifier struct {
	projectID string
	verifier  *oidc.IDTokenVerifier
}

type firebaseClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Subject       string `json:"sub"`
}

// NewFirebaseVerifier builds a verifier for projectID. ctx scopes the
// background key fetches and should live as long as the server.
func NewFirebaseVerifier(ctx context.Context, projectID string) (*FirebaseVerifier, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("firebase project id is required")
	}
	keys := oidc.NewRemoteKeySet(ctx, firebaseJWKSURL)
	return newFirebaseVerifier(projectID, keys), nil
}

func newFirebaseVerifier(projectID string, keys oidc.KeySet) *FirebaseVerifier {
	v := oidc.NewVerifier(firebaseIssuerPrefix+projectID, keys, &oidc.Config{
		ClientID: projectID,
	})
	return &FirebaseVerifier{projectID: projectID, verifier: v}
}

// Verify checks signature, issuer, audience and expiry of rawToken.
func (f *FirebaseVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	tok, err := f.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, classifyOIDCError(ctx, err)
	}

	var c firebaseClaims
	if err := tok.Claims(&c); err != nil {
		return Identity{}, fmt.Errorf("%w: claims: %v", ErrInvalidToken, err)
	}
	if tok.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if strings.TrimSpace(c.Email) == "" {
		return Identity{}, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}
	return Identity{
		SubjectID:     tok.Subject,
		Email:         c.Email,
		DisplayName:   c.Name,
		EmailVerified: c.EmailVerified,
		ExpiresAt:     tok.Expiry,
	}, nil
}

// classifyOIDCError separates "the token is bad" from "we could not check".
// go-oidc reports key fetch failures inside the signature error text.
func classifyOIDCError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) {
		return fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	if strings.Contains(err.Error(), "fetching keys") {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}
