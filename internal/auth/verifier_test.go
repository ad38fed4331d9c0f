package auth_test

import (
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"github.com/yachttime/qbconnect/internal/auth"
)

func signToken(t *testing.T, secret, subject string, expiry time.Time) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)}, nil)
	require.NoError(t, err)
	raw, err := jwt.Signed(signer).Claims(jwt.Claims{
		Subject:  subject,
		Expiry:   jwt.NewNumericDate(expiry),
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}).Serialize()
	require.NoError(t, err)
	return raw
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	verifier := auth.NewVerifier("jwt-secret")

	token := signToken(t, "jwt-secret", "user-42", time.Now().Add(time.Hour))
	subject, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-42", subject)
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	verifier := auth.NewVerifier("jwt-secret")

	token := signToken(t, "other-secret", "user-42", time.Now().Add(time.Hour))
	_, err := verifier.Verify(token)
	require.Error(t, err)
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	verifier := auth.NewVerifier("jwt-secret")

	token := signToken(t, "jwt-secret", "user-42", time.Now().Add(-time.Hour))
	_, err := verifier.Verify(token)
	require.Error(t, err)
}

func TestVerifierRejectsGarbage(t *testing.T) {
	verifier := auth.NewVerifier("jwt-secret")

	_, err := verifier.Verify("not-a-jwt")
	require.Error(t, err)
}
