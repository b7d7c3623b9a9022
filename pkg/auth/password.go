package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 10
	MaxPasswordLen = 72 // bcrypt ignores bytes past 72
)

// dummyHash is compared against when the account does not exist, so unknown
// emails cost the same bcrypt work as wrong passwords
var dummyHash = mustHash("dian-gateway-timing-equalizer")

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	return "invalid password: " + strings.Join(e.Errors, "; ")
}

var commonPasswords = map[string]bool{
	"password123!": true,
	"contraseña1!": true,
	"colombia2024": true,
	"facturacion1": true,
	"qwerty12345!": true,
	"admin12345!!": true,
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether password matches hash. An empty hash is
// treated as a missing account and still pays for one bcrypt comparison.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the password policy for seeded accounts
func ValidatePassword(password string) error {
	var problems []string

	if len(password) < MinPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at most %d bytes", MaxPasswordLen))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower {
		problems = append(problems, "must mix upper and lower case letters")
	}
	if !hasDigit {
		problems = append(problems, "must contain a digit")
	}
	if !hasSpecial {
		problems = append(problems, "must contain a special character")
	}
	if commonPasswords[strings.ToLower(password)] {
		problems = append(problems, "is too common")
	}

	if len(problems) > 0 {
		return &PasswordValidationError{Errors: problems}
	}
	return nil
}

func mustHash(s string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(s), BcryptCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}
