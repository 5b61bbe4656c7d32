package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HMACIssuer is the iss claim of tokens minted by HMACVerifier.Issue.
const HMACIssuer = "crmhub-dev"

// HMACVerifier verifies HS256 tokens signed with a shared secret. It stands
// in for the real provider in local development and tests.
type HMACVerifier struct {
	secret []byte
}

type hmacClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewHMACVerifier requires a secret of at least 32 bytes.
func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("identity hmac secret must be at least 32 bytes")
	}
	return &HMACVerifier{secret: []byte(secret)}, nil
}

// Issue mints a token for id valid for ttl.
func (h *HMACVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := hmacClaims{
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		Name:          id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID,
			Issuer:    HMACIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

// Verify parses and validates rawToken. It never returns ErrUnavailable.
func (h *HMACVerifier) Verify(_ context.Context, rawToken string) (Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	var c hmacClaims
	_, err := jwt.ParseWithClaims(rawToken, &c,
		func(*jwt.Token) (interface{}, error) { return h.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(HMACIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(c.Subject) == "" || strings.TrimSpace(c.Email) == "" {
		return Identity{}, fmt.Errorf("%w: subject and email are required", ErrInvalidToken)
	}

	id := Identity{SubjectID: c.Subject, Email: c.Email, DisplayName: c.Name, EmailVerified: c.EmailVerified}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id, nil
}
