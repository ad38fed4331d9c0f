package auth

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// Verifier validates platform-issued bearer tokens. The hosting platform
// signs user JWTs with a shared HS256 secret; this service only needs the
// subject claim out of them.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the token signature and expiry and returns the subject
// (the caller's user id).
func (v *Verifier) Verify(token string) (string, error) {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return "", fmt.Errorf("parse bearer token: %w", err)
	}
	var claims jwt.Claims
	if err := parsed.Claims(v.secret, &claims); err != nil {
		return "", fmt.Errorf("verify bearer token: %w", err)
	}
	if err := claims.Validate(jwt.Expected{Time: time.Now()}); err != nil {
		return "", fmt.Errorf("bearer token claims: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("bearer token missing subject")
	}
	return claims.Subject, nil
}
