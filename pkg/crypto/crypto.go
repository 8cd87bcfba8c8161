package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the AES-256 key size in bytes.
const KeySize = 32

// ErrDecryptionFailed is returned whenever a ciphertext cannot be
// authenticated and decrypted: tampering, truncation, or a key mismatch all
// collapse into this single error so callers always fail closed.
var ErrDecryptionFailed = errors.New("crypto: decryption failed")

// ConstantTimeEquals reports whether a and b are equal without leaking where
// they first differ. Both inputs are hashed before comparison so a length
// mismatch costs the same as a full comparison instead of returning early.
func ConstantTimeEquals(a, b []byte) bool {
	da := sha256.Sum256(a)
	db := sha256.Sum256(b)
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}

// DeriveKey derives a purpose-bound key from a master secret using
// HKDF-SHA256. The context string separates key purposes ("session", "pii",
// ...) so compromise of one derived key does not expose the others. The salt
// is deployment-specific entropy and must not be empty: a fixed salt makes
// derivation predictable across installs.
func DeriveKey(secret []byte, context string, salt []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("crypto: master secret is required")
	}
	if len(salt) == 0 {
		return nil, errors.New("crypto: derivation salt is required")
	}

	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, secret, salt, []byte(context))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("crypto: key derivation failed: %w", err)
	}
	return key, nil
}

// Cipher provides authenticated symmetric encryption (AES-256-GCM).
// Ciphertexts are self-contained: base64url(nonce || sealed).
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns an opaque base64url string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any failure, including a
// malformed encoding or truncated input, returns ErrDecryptionFailed.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrDecryptionFailed
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// HashIdentifier returns a hex-free, URL-safe digest of an identifier such as
// a normalized email address. Used for equality lookups against encrypted
// columns without storing the plaintext.
func HashIdentifier(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
