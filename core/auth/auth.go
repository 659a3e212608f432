package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret generates a bcrypt hash suitable for SECRET_KEYS.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("empty secret")
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(bytes), nil
}
