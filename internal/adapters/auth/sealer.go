package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var errMalformedSealed = errors.New("malformed sealed token")

// SecretboxSealer seals stored OAuth tokens with NaCl secretbox (XSalsa20-Poly1305).
// The output is base64url(nonce || box).
type SecretboxSealer struct {
	key [32]byte
}

// NewSecretboxSealer returns a sealer for a 32-byte key.
func NewSecretboxSealer(key []byte) (*SecretboxSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("sealer key must be 32 bytes, got %d", len(key))
	}
	s := &SecretboxSealer{}
	copy(s.key[:], key)
	return s, nil
}

func (s *SecretboxSealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *SecretboxSealer) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", errMalformedSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errMalformedSealed
	}
	return string(plain), nil
}
