package crypto

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPasswordWithCost("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if !VerifyPassword(hash, "secret") {
		t.Fatal("expected password verification to succeed")
	}

	if VerifyPassword(hash, "incorrect") {
		t.Fatal("expected password verification to fail")
	}
}

func TestHashPasswordWithCostFallsBackToDefault(t *testing.T) {
	hash, err := HashPasswordWithCost("secret", 99)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost error: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", cost)
	}
}

func TestHashesAreSalted(t *testing.T) {
	first, err := HashPasswordWithCost("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	second, err := HashPasswordWithCost("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if len(token) == 0 {
		t.Fatal("expected token to be non-empty")
	}
}

func TestPasswordTooLongCountsBytes(t *testing.T) {
	if PasswordTooLong(strings.Repeat("a", MaxPasswordBytes)) {
		t.Fatal("expected 72 ascii bytes to be accepted")
	}
	// 42 runes, 84 bytes.
	long := strings.Repeat("пароль", 7)
	if !PasswordTooLong(long) {
		t.Fatal("expected multibyte password over 72 bytes to be rejected")
	}
	if _, err := HashPasswordWithCost(long, bcrypt.MinCost); err == nil {
		t.Fatal("expected bcrypt to reject the same password")
	}
}
