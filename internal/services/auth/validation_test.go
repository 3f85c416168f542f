package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		valid    bool
	}{
		{"valid", "alice_01", "alice@example.com", "secret1", true},
		{"username too short", "al", "alice@example.com", "secret1", false},
		{"username too long", strings.Repeat("a", 21), "alice@example.com", "secret1", false},
		{"username max length", strings.Repeat("a", 20), "alice@example.com", "secret1", true},
		{"username bad chars", "alice!", "alice@example.com", "secret1", false},
		{"username with space", "al ice", "alice@example.com", "secret1", false},
		{"email missing at", "alice", "alice.example.com", "secret1", false},
		{"email missing domain dot", "alice", "alice@example", "secret1", false},
		{"email with display name", "alice", "Alice <alice@example.com>", "secret1", false},
		{"password too short", "alice", "alice@example.com", "12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRegistration(tt.username, tt.email, tt.password)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", normalizeEmail("  Alice@Example.COM "))
}
