package calendarsync

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ontour-app/backend/pkg/keyderiv"
)

const sealedPrefix = "v1:"

// Cipher encrypts stored CalDAV passwords with a server-side AES-GCM key.
// The derived key lives in a session key manager and is derived again once
// the session expires or is cleared.
type Cipher struct {
	keys   *keyderiv.SessionKeyManager
	secret string
	salt   string
	ttl    time.Duration
}

// NewCipher derives the storage key from a secret and salt into a private session.
func NewCipher(secret, salt string) (*Cipher, error) {
	return NewSessionCipher(keyderiv.NewSessionKeyManager(), secret, salt, 0)
}

// NewSessionCipher keeps the storage key in keys, usually keyderiv.Session().
// ttl <= 0 uses keyderiv.DefaultSessionTTL.
func NewSessionCipher(keys *keyderiv.SessionKeyManager, secret, salt string, ttl time.Duration) (*Cipher, error) {
	c := &Cipher{keys: keys, secret: secret, salt: salt, ttl: ttl}
	if err := keys.InitializeKey(secret, salt, ttl); err != nil {
		return nil, fmt.Errorf("derive credentials key: %w", err)
	}
	return c, nil
}

func (c *Cipher) key() (*keyderiv.Key, error) {
	if c.keys.Salt() == c.salt {
		if k := c.keys.GetKey(); k != nil {
			return k, nil
		}
	}
	if err := c.keys.InitializeKey(c.secret, c.salt, c.ttl); err != nil {
		return nil, fmt.Errorf("derive credentials key: %w", err)
	}
	return c.keys.GetKey(), nil
}

// KeyID is a short fingerprint of the derived key. Processes sharing stored
// credentials must report the same id.
func (c *Cipher) KeyID() (string, error) {
	bits, err := keyderiv.DeriveBits(c.secret, c.salt)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(bits))
	return hex.EncodeToString(sum[:4]), nil
}

// Seal returns "v1:<iv>:<ciphertext>".
func (c *Cipher) Seal(password string) (string, error) {
	key, err := c.key()
	if err != nil {
		return "", err
	}
	enc, err := keyderiv.EncryptWithKey(password, key, nil)
	if err != nil {
		return "", err
	}
	return sealedPrefix + enc.IV + ":" + enc.Ciphertext, nil
}

// Open reverses Seal. Values without the v1 prefix are legacy base64.
func (c *Cipher) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		raw, err := base64.StdEncoding.DecodeString(stored)
		if err != nil {
			return "", keyderiv.ErrDecryptionFailed
		}
		return string(raw), nil
	}
	iv, ct, ok := strings.Cut(strings.TrimPrefix(stored, sealedPrefix), ":")
	if !ok {
		return "", errors.New("malformed stored credential")
	}
	key, err := c.key()
	if err != nil {
		return "", err
	}
	return keyderiv.DecryptWithKey(ct, key, iv)
}
