package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrKeyTooShort = errors.New("api key must be at least 24 characters")

const (
	bcryptCost   = 12
	minKeyLength = 24
)

// HashAPIKey hashes an admin API key for the ADMIN_API_KEY_HASH setting.
func HashAPIKey(key string) (string, error) {
	if len(key) < minKeyLength {
		return "", ErrKeyTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckAPIKey compares a presented key with its bcrypt hash.
func CheckAPIKey(key, hash string) bool {
	if key == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
