package keyderiv

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultSessionTTL is how long a session key lives after InitializeKey.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultExtension is the default ExtendSession increment.
	DefaultExtension = time.Hour

	specialChars = `!@#$%^&*(),.?":{}|<>`
)

// SessionKeyManager holds at most one derived key with an expiry.
type SessionKeyManager struct {
	mu        sync.Mutex
	key       *Key
	salt      string
	expiresAt time.Time
	now       func() time.Time
}

var (
	sessionOnce sync.Once
	session     *SessionKeyManager
)

// Session returns the process-wide session key manager.
func Session() *SessionKeyManager {
	sessionOnce.Do(func() {
		session = NewSessionKeyManager()
	})
	return session
}

// NewSessionKeyManager returns an empty manager. Most callers want Session().
func NewSessionKeyManager() *SessionKeyManager {
	return &SessionKeyManager{now: time.Now}
}

// InitializeKey derives a key and stores it until now+ttl. A salt is generated when salt is empty.
// ttl <= 0 uses DefaultSessionTTL.
func (m *SessionKeyManager) InitializeKey(password, salt string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if salt == "" {
		s, err := GenerateSalt()
		if err != nil {
			return err
		}
		salt = s
	}
	key, err := DeriveKey(password, salt)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	m.salt = salt
	m.expiresAt = m.now().Add(ttl)
	return nil
}

// GetKey returns the key, or nil when none is set or it has expired.
func (m *SessionKeyManager) GetKey() *Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == nil || !m.now().Before(m.expiresAt) {
		return nil
	}
	return m.key
}

// Salt returns the salt the current key was derived with.
func (m *SessionKeyManager) Salt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.salt
}

// ExpiresAt returns the current expiry; zero when no key is set.
func (m *SessionKeyManager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == nil {
		return time.Time{}
	}
	return m.expiresAt
}

// IsValid reports whether a non-expired key is held.
func (m *SessionKeyManager) IsValid() bool {
	return m.GetKey() != nil
}

// Clear drops the key and salt.
func (m *SessionKeyManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = nil
	m.salt = ""
	m.expiresAt = time.Time{}
}

// ExtendSession pushes the expiry to max(expiresAt+d, now+d). No-op without a key.
func (m *SessionKeyManager) ExtendSession(d time.Duration) {
	if d <= 0 {
		d = DefaultExtension
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == nil {
		return
	}
	next := m.expiresAt.Add(d)
	if floor := m.now().Add(d); floor.After(next) {
		next = floor
	}
	m.expiresAt = next
}

// ValidatePassword returns human readable strength problems; empty means acceptable.
func ValidatePassword(password string) []string {
	var problems []string
	if len(password) < minPasswordLength {
		problems = append(problems, "Password must be at least 8 characters")
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "Password must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "Password must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "Password must contain a digit")
	}
	if !special {
		problems = append(problems, "Password must contain a special character")
	}
	return problems
}
