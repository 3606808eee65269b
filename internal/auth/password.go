package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	// bcrypt reads at most 72 bytes of input.
	maxPasswordLen = 72
)

// checkPassword enforces what an AUTH line can carry: a single
// whitespace-free parameter that bcrypt hashes in full.
func checkPassword(password string) error {
	if n := len(password); n < minPasswordLen || n > maxPasswordLen {
		return fmt.Errorf("%w: length must be %d-%d bytes", ErrInvalidPassword, minPasswordLen, maxPasswordLen)
	}
	if strings.IndexFunc(password, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: must not contain whitespace", ErrInvalidPassword)
	}
	return nil
}

// HashPassword validates password and returns its bcrypt hash.
func HashPassword(password string) (string, error) {
	if err := checkPassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// PasswordMatches reports whether password hashes to hash. A malformed
// hash never matches.
func PasswordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
