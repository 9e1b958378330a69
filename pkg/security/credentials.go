package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

var ErrMalformedCiphertext = errors.New("malformed credential ciphertext")

// CredentialCipher encrypts provider credentials at rest with AES-256-GCM.
// The wire format is iv:tag:ciphertext, each segment hex encoded.
type CredentialCipher struct {
	key []byte
}

// NewCredentialCipher derives a 256-bit key from the configured secret.
func NewCredentialCipher(secret string) (*CredentialCipher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("credential encryption secret is required")
	}
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte("merakart-provider-credentials"))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("deriving credential key: %w", err)
	}
	return &CredentialCipher{key: key}, nil
}

// Encrypt seals plaintext and returns the iv:tag:ciphertext encoding.
func (c *CredentialCipher) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	if len(sealed) < tagSize {
		return "", errors.New("sealed payload shorter than tag")
	}
	body := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(body),
	}, ":"), nil
}

// Decrypt opens an iv:tag:ciphertext encoding produced by Encrypt.
func (c *CredentialCipher) Decrypt(encoded string) ([]byte, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return nil, ErrMalformedCiphertext
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return nil, ErrMalformedCiphertext
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return nil, ErrMalformedCiphertext
	}
	body, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, ErrMalformedCiphertext
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	sealed := append(append([]byte{}, body...), tag...)
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("opening credential ciphertext: %w", err)
	}
	return plaintext, nil
}
