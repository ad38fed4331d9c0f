package custody

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/yachttime/qbconnect/internal/domain"
)

// ErrInvalidSession is returned when a session blob is malformed, tampered
// with, or was minted for a different caller.
var ErrInvalidSession = errors.New("invalid encrypted session")

// Vault seals token pairs into opaque session blobs with AES-256-GCM.
// The caller's identity is bound as additional authenticated data, so a
// blob decrypts only for the identity it was minted for. Nothing is kept
// between calls; the blob itself is the only durable artifact and it lives
// with the caller.
type Vault struct {
	key [32]byte
}

// NewVault derives the sealing key from the configured custody secret.
func NewVault(secret string) *Vault {
	return &Vault{key: sha256.Sum256([]byte(secret))}
}

// Seal encrypts a token pair scoped to the given caller identity.
func (v *Vault) Seal(pair domain.TokenPair, scope string) (string, error) {
	plaintext, err := json.Marshal(pair)
	if err != nil {
		return "", fmt.Errorf("encode token pair: %w", err)
	}

	gcm, err := v.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, []byte(scope))
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a session blob previously sealed for the same caller scope.
func (v *Vault) Open(blob, scope string) (domain.TokenPair, error) {
	data, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return domain.TokenPair{}, ErrInvalidSession
	}

	gcm, err := v.aead()
	if err != nil {
		return domain.TokenPair{}, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return domain.TokenPair{}, ErrInvalidSession
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(scope))
	if err != nil {
		return domain.TokenPair{}, ErrInvalidSession
	}

	var pair domain.TokenPair
	if err := json.Unmarshal(plaintext, &pair); err != nil {
		return domain.TokenPair{}, ErrInvalidSession
	}
	return pair, nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm mode: %w", err)
	}
	return gcm, nil
}
