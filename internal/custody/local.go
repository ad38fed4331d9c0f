package custody

import (
	"context"
	"fmt"

	"github.com/yachttime/qbconnect/internal/auth"
	"github.com/yachttime/qbconnect/internal/domain"
)

var _ Custodian = (*Local)(nil)

// Local is an in-process Custodian. It applies the same bearer scoping as
// the HTTP handler, so blobs minted locally and over HTTP are
// interchangeable.
type Local struct {
	vault    *Vault
	verifier *auth.Verifier
}

// NewLocal wires a local custodian around the vault.
func NewLocal(vault *Vault, verifier *auth.Verifier) *Local {
	return &Local{vault: vault, verifier: verifier}
}

func (l *Local) Encrypt(ctx context.Context, bearer string, pair domain.TokenPair) (string, error) {
	subject, err := l.verifier.Verify(bearer)
	if err != nil {
		return "", fmt.Errorf("custody encrypt: %w", err)
	}
	return l.vault.Seal(pair, subject)
}

func (l *Local) Decrypt(ctx context.Context, bearer, encryptedSession string) (domain.TokenPair, error) {
	subject, err := l.verifier.Verify(bearer)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("custody decrypt: %w", err)
	}
	return l.vault.Open(encryptedSession, subject)
}
