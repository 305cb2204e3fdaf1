// Package keyderiv derives AES-256-GCM keys from passwords with PBKDF2 and
// encrypts small payloads (credentials, session secrets) with them.
package keyderiv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 iteration count.
	Iterations = 100000
	// KeyLength is the derived key length in bytes (AES-256).
	KeyLength = 32
	// SaltLength is the number of random bytes in a generated salt.
	SaltLength = 32
	// IVLength is the AES-GCM nonce length in bytes.
	IVLength = 12

	minPasswordLength = 8
	minSaltLength     = 12
)

var (
	ErrWeakPassword     = errors.New("password must be at least 8 characters")
	ErrInvalidSalt      = errors.New("invalid salt")
	ErrDecryptionFailed = errors.New("Decryption failed")
)

// Key is a derived AES-GCM key. The raw key material is never exposed.
type Key struct {
	aead cipher.AEAD
}

// Encrypted holds base64 encoded ciphertext and the IV it was sealed with.
type Encrypted struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

// GenerateSalt returns SaltLength random bytes, base64 encoded.
func GenerateSalt() (string, error) {
	b := make([]byte, SaltLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func checkInputs(password, salt string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	if len(salt) < minSaltLength {
		return ErrInvalidSalt
	}
	return nil
}

func derive(password, salt string) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), Iterations, KeyLength, sha256.New)
}

// DeriveKey derives an AES-256-GCM key from password and salt.
// The salt string is used as-is (its UTF-8 bytes), so callers can pass the value from GenerateSalt directly.
func DeriveKey(password, salt string) (*Key, error) {
	if err := checkInputs(password, salt); err != nil {
		return nil, err
	}
	raw := derive(password, salt)
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &Key{aead: aead}, nil
}

// DeriveBits returns the raw derived key bytes, base64 encoded, for callers
// that need to hand the material to another system.
func DeriveBits(password, salt string) (string, error) {
	if err := checkInputs(password, salt); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(derive(password, salt)), nil
}

// EncryptWithKey seals plaintext with key. A random IV is generated when iv is nil.
func EncryptWithKey(plaintext string, key *Key, iv []byte) (*Encrypted, error) {
	if key == nil {
		return nil, errors.New("nil key")
	}
	if iv == nil {
		iv = make([]byte, IVLength)
		if _, err := rand.Read(iv); err != nil {
			return nil, fmt.Errorf("read random: %w", err)
		}
	}
	if len(iv) != key.aead.NonceSize() {
		return nil, fmt.Errorf("iv must be %d bytes", key.aead.NonceSize())
	}
	sealed := key.aead.Seal(nil, iv, []byte(plaintext), nil)
	return &Encrypted{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// DecryptWithKey opens base64 ciphertext sealed by EncryptWithKey.
// Every failure, including a wrong key or tampered data, returns ErrDecryptionFailed.
func DecryptWithKey(ciphertext string, key *Key, iv string) (string, error) {
	if key == nil {
		return "", ErrDecryptionFailed
	}
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil || len(nonce) != key.aead.NonceSize() {
		return "", ErrDecryptionFailed
	}
	plain, err := key.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}
