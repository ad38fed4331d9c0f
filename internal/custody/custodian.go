package custody

import (
	"context"

	"github.com/yachttime/qbconnect/internal/domain"
)

// Custodian is the internal call boundary for token custody. The bearer is
// the same caller credential as the outer request; the custody side derives
// the key scope from it, so blobs cannot cross callers.
type Custodian interface {
	Encrypt(ctx context.Context, bearer string, pair domain.TokenPair) (string, error)
	Decrypt(ctx context.Context, bearer, encryptedSession string) (domain.TokenPair, error)
}
