package usersync

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordHashLength is the shortest hash the receiver accepts. A bcrypt
// hash is always 60 characters.
const MinPasswordHashLength = 60

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// IsHashed reports whether value already is a bcrypt hash
func IsHashed(value string) bool {
	if len(value) < MinPasswordHashLength || !strings.HasPrefix(value, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

// EnsureHashed returns value unchanged when it is already a hash and
// hashes it otherwise, so a hash is never hashed twice.
func EnsureHashed(value string) (string, error) {
	if IsHashed(value) {
		return value, nil
	}
	return HashPassword(value)
}
