package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "user-1",
		Name: "Avery",
		Role: "editor",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != "user-1" || claims.Name != "Avery" || claims.Role != "editor" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "user-1",
		Name: "Avery",
		Role: "editor",
		JTI:  "jti-1",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	_, err = ParseToken(secret, issued)
	if err == nil {
		t.Fatal("expected ParseToken() to fail for expired token")
	}
}

func TestIssueCarriesEmailAndUniqueJTI(t *testing.T) {
	secret := []byte("secret")
	first, err := Issue(secret, "user-1", "Avery", "avery@example.com", "commenter", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	second, err := Issue(secret, "user-1", "Avery", "avery@example.com", "commenter", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	a, err := ParseToken(secret, first)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	b, _ := ParseToken(secret, second)
	if a.Email != "avery@example.com" || a.Role != "commenter" {
		t.Fatalf("unexpected claims: %+v", a)
	}
	if a.JTI == b.JTI {
		t.Fatal("expected distinct token ids")
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	issued, err := Issue([]byte("secret"), "user-1", "Avery", "", "viewer", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := ParseToken([]byte("other"), issued); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseToken([]byte("secret"), "garbage"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
