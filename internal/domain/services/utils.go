package services

import (
	"crypto/rand"
	"encoding/base64"
)

// generateSecureToken generates a cryptographically secure random token,
// URL-safe and unpadded so it survives cookies and query strings unescaped.
func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
