package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 20
	minPasswordLength = 6
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// normalizeEmail trims and lowercases an email address
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration checks the registration form, returning an
// ErrValidation-wrapped message describing the first problem found
func validateRegistration(username, email, password string) error {
	if n := len(username); n < minUsernameLength || n > maxUsernameLength {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrValidation, minUsernameLength, maxUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username may only contain letters, digits and underscores", ErrValidation)
	}
	if !validEmail(email) {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}
