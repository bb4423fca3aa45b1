package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// HashPassword creates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plaintext password against a stored hash.
// bcrypt performs the comparison in constant time.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// IsHashed reports whether value already is a bcrypt hash, which happens when
// users are imported from another system.
func IsHashed(value string) bool {
	if len(value) != 60 {
		return false
	}
	hasPrefix := false
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(value, p) {
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return false
	}
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

// HashIfNeeded hashes a plaintext password and passes an existing hash through.
func HashIfNeeded(password string) (string, error) {
	if IsHashed(password) {
		return password, nil
	}
	return HashPassword(password)
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	if len(password) > 72 {
		return errors.New("password must be at most 72 characters long")
	}
	return nil
}
