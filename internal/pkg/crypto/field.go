package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// encryptedPrefix marks values written by FieldCipher so plaintext rows from
// before encryption was enabled still read back.
const encryptedPrefix = "enc:v1:"

var ErrMalformedCiphertext = errors.New("malformed encrypted field")

// FieldCipher encrypts individual column values with XChaCha20-Poly1305 and
// derives a separate key for deterministic blind indexes.
type FieldCipher struct {
	aead     aeadCipher
	indexKey []byte
}

type aeadCipher interface {
	NonceSize() int
	Overhead() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// NewFieldCipher derives the encryption and index keys from secret with HKDF-SHA256.
func NewFieldCipher(secret string) (*FieldCipher, error) {
	if len(secret) < 16 {
		return nil, errors.New("field encryption key must be at least 16 characters")
	}

	encKey, err := derive(secret, "attendance-engine field encryption")
	if err != nil {
		return nil, err
	}
	indexKey, err := derive(secret, "attendance-engine blind index")
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	return &FieldCipher{aead: aead, indexKey: indexKey}, nil
}

func derive(secret, info string) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext, binding it to field so a value cannot be moved
// between columns.
func (c *FieldCipher) Encrypt(field, plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(field))
	return encryptedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the encryption prefix are returned as is.
func (c *FieldCipher) Decrypt(field, stored string) (string, error) {
	if !strings.HasPrefix(stored, encryptedPrefix) {
		return stored, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, encryptedPrefix))
	if err != nil || len(raw) < c.aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, []byte(field))
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	return string(plain), nil
}

// BlindIndex returns a keyed, deterministic digest of value for equality lookups
// on an encrypted column.
func (c *FieldCipher) BlindIndex(field, value string) string {
	mac := hmac.New(sha256.New, c.indexKey)
	mac.Write([]byte(field))
	mac.Write([]byte{0})
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// SHA256Hex is the digest stored for NFC card tokens.
func SHA256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// EqualHex compares two hex digests in constant time, ignoring case.
func EqualHex(a, b string) bool {
	return hmac.Equal([]byte(strings.ToLower(a)), []byte(strings.ToLower(b)))
}
