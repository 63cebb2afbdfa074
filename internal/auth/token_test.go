package auth

import (
	"errors"
	"testing"
)

func TestIssueAndVerify(t *testing.T) {
	ti := NewTokenIssuer([]byte("test-secret"), "civicdesk")

	token, err := ti.Issue(42, "reporter")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Username != "reporter" {
		t.Errorf("Username = %q, want %q", claims.Username, "reporter")
	}
	if claims.Issuer != "civicdesk" {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, "civicdesk")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	ti := NewTokenIssuer([]byte("secret-a"), "civicdesk")
	token, err := ti.Issue(1, "reporter")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewTokenIssuer([]byte("secret-b"), "civicdesk")
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	ti := NewTokenIssuer([]byte("secret"), "civicdesk")
	if _, err := ti.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter3") {
		t.Error("wrong password accepted")
	}
}
