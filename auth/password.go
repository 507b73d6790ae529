package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength     = 16
	iterationCount = 4096
	keyLength      = 32
)

// generateSalt returns saltLength bytes of cryptographic randomness.
func generateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// hashPassword derives a PBKDF2-SHA256 key from password and salt.
func hashPassword(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, iterationCount, keyLength, sha256.New)
}

// verifyPassword reports whether password matches the stored hash.
// The comparison is constant time.
func verifyPassword(password string, salt, hash []byte) bool {
	return hmac.Equal(hashPassword(password, salt), hash)
}
