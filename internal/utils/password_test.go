package utils

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "" || hash == "s3cret-pass" {
		t.Fatalf("HashPassword() returned %q", hash)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("hash %q is not a bcrypt hash", hash)
	}

	again, _ := HashPassword("s3cret-pass")
	if hash == again {
		t.Error("hashes of the same password should differ by salt")
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("x", 73)); err == nil {
		t.Error("expected an error for a password over 72 bytes")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, _ := HashPassword("correct horse")

	tests := []struct {
		name     string
		password string
		hash     string
		expected bool
	}{
		{"match", "correct horse", hash, true},
		{"mismatch", "correct horses", hash, false},
		{"case sensitive", "Correct horse", hash, false},
		{"empty password", "", hash, false},
		{"ldap account has no hash", "correct horse", "", false},
		{"corrupt hash", "correct horse", "not-a-bcrypt-hash", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.expected {
				t.Errorf("CheckPassword(%q) = %v, expected %v", tt.password, got, tt.expected)
			}
		})
	}
}
