package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned for missing, malformed or unknown credentials.
var ErrUnauthorized = errors.New("unauthorized")

// ParseBearer extracts the credential from an Authorization header value.
// Anything other than "Bearer <non-empty>" is rejected.
func ParseBearer(header string) (string, error) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrUnauthorized
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrUnauthorized
	}
	return token, nil
}

// SystemKeys holds the fixed set of system secrets. Entries starting with "$2"
// are treated as bcrypt hashes, everything else is compared in constant time.
type SystemKeys struct {
	keys atomic.Pointer[[]string]
}

// NewSystemKeys 创建系统密钥集合
func NewSystemKeys(keys []string) *SystemKeys {
	s := &SystemKeys{}
	s.Replace(keys)
	return s
}

// Replace swaps the whole key set at once.
func (s *SystemKeys) Replace(keys []string) {
	cp := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			cp = append(cp, k)
		}
	}
	s.keys.Store(&cp)
}

// Len returns the number of configured keys.
func (s *SystemKeys) Len() int {
	return len(*s.keys.Load())
}

// Verify reports whether secret matches one of the keys.
func (s *SystemKeys) Verify(secret string) bool {
	if secret == "" {
		return false
	}
	for _, k := range *s.keys.Load() {
		if isBcrypt(k) {
			if bcrypt.CompareHashAndPassword([]byte(k), []byte(secret)) == nil {
				return true
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(k), []byte(secret)) == 1 {
			return true
		}
	}
	return false
}

func isBcrypt(k string) bool {
	return strings.HasPrefix(k, "$2a$") || strings.HasPrefix(k, "$2b$") || strings.HasPrefix(k, "$2y$")
}

// Gate performs the two independent authorization checks. System secrets and
// admin tokens are never checked against each other.
type Gate struct {
	System *SystemKeys
	Users  *Allowlist
}

// NewGate 创建授权网关
func NewGate(system *SystemKeys, users *Allowlist) *Gate {
	return &Gate{System: system, Users: users}
}

// AuthorizeSystem checks an Authorization header against the system secrets.
func (g *Gate) AuthorizeSystem(header string) error {
	secret, err := ParseBearer(header)
	if err != nil {
		return err
	}
	if !g.System.Verify(secret) {
		return ErrUnauthorized
	}
	return nil
}

// AuthorizeUser checks an Authorization header against the admin allowlist.
func (g *Gate) AuthorizeUser(header string) error {
	token, err := ParseBearer(header)
	if err != nil {
		return err
	}
	return g.AuthorizeToken(token)
}

// AuthorizeToken checks a raw admin token, as carried in event messages.
func (g *Gate) AuthorizeToken(token string) error {
	if token == "" || !g.Users.Contains(token) {
		return ErrUnauthorized
	}
	return nil
}
