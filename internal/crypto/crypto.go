// Package crypto provides the field-level privacy primitives of the
// reporting platform: AES-256-GCM encryption for free-text report fields,
// the content-free deduplication hash, and anonymous identifier generation.
//
// Categorical report columns stay plaintext for aggregate analytics; only
// narrative text (incident description, location description) passes through
// the cipher. The dedup hash is computed over routing metadata, never over
// survivor-provided content.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	// ErrInvalidKey indicates the provided key material is not 32 bytes.
	ErrInvalidKey = errors.New("crypto: key must be 32 bytes")

	// ErrCiphertextFormat indicates a ciphertext blob that cannot be decoded
	// or is shorter than one nonce.
	ErrCiphertextFormat = errors.New("crypto: malformed ciphertext")
)

// Cipher encrypts and decrypts short text fields with AES-256-GCM. The nonce
// is generated per call and prefixed to the ciphertext, so the stored blob is
// self-contained. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from 32 raw key bytes.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromBase64 builds a Cipher from a standard- or URL-base64 encoded
// 32-byte key, as carried in the ENCRYPTION_KEY environment variable.
func NewCipherFromBase64(encoded string) (*Cipher, error) {
	encoded = strings.TrimSpace(encoded)
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		key, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("crypto: decode key: %w", err)
		}
	}
	return NewCipher(key)
}

// GenerateKey returns a fresh random 32-byte key, base64 encoded for storage
// in configuration.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// EncryptString seals plaintext and returns base64(nonce || ciphertext).
// Empty input encrypts to the empty string so optional fields stay optional.
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString. The empty string decrypts to the
// empty string.
func (c *Cipher) DecryptString(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextFormat
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrCiphertextFormat
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("crypto: open: %w", err)
	}
	return string(plain), nil
}

// DedupHash derives the stable report identifier from session id, county,
// and submission time. Inputs are routing metadata only; narrative content
// never enters the hash, so the identifier leaks nothing if exposed.
func DedupHash(sessionID, county string, ts time.Time) string {
	payload := sessionID + "_" + county + "_" + ts.UTC().Format(time.RFC3339)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// NewSessionID returns an opaque session identifier with a recognizable
// prefix. The random part is 16 bytes of entropy, hex encoded.
func NewSessionID() string {
	return "session_" + randomHex(16)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means the process cannot do anything safely.
		panic(err)
	}
	return hex.EncodeToString(b)
}
