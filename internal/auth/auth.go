// Package auth provides password hashing and session token generation.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt cost parameters for the password KDF.
const (
	scryptN = 4096
	scryptR = 16
	scryptP = 1
	hashLen = 64
	saltLen = 16
)

// tokenBytes is the entropy of a session token before encoding.
const tokenBytes = 16

// HashPassword derives a password hash under a fresh random salt.
func HashPassword(password string) (hash, salt []byte, err error) {
	salt = make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash, err = scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, hashLen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, salt, nil
}

// CheckPassword reports whether password matches the stored hash and salt.
// The comparison is constant time.
func CheckPassword(password string, hash, salt []byte) bool {
	given, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, hashLen)
	if err != nil {
		return false
	}
	return hmac.Equal(hash, given)
}

// GenerateSessionToken returns a fresh URL-safe token with tokenBytes bytes
// of entropy.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
