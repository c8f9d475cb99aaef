package auth

import (
	"strings"
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "usr_1",
		Name: "Avery",
		Role: "org_admin",
		Org:  "org_acme",
		Dept: "dept_ops",
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
	if claims.Sub != "usr_1" || claims.Name != "Avery" || claims.Role != "org_admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Org != "org_acme" || claims.Dept != "dept_ops" {
		t.Fatalf("tenant claims lost: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "usr_1",
		Name: "Avery",
		Role: "member",
		JTI:  "jti-1",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err = ParseToken(secret, issued); err != ErrExpiredToken {
		t.Fatalf("ParseToken() error = %v, want ErrExpiredToken", err)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issued, err := IssueToken([]byte("secret-a"), Claims{
		Sub:  "usr_1",
		Name: "Avery",
		Role: "member",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err = ParseToken([]byte("secret-b"), issued); err != ErrInvalidToken {
		t.Fatalf("ParseToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestParseTokenRejectsTampered(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "usr_1",
		Name: "Avery",
		Role: "member",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	parts := strings.Split(issued, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token format: %q", issued)
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err = ParseToken(secret, tampered); err == nil {
		t.Fatal("expected ParseToken() to reject tampered payload")
	}
}

func TestHashTokenStable(t *testing.T) {
	a := HashToken("refresh-abc")
	b := HashToken("refresh-abc")
	if a != b {
		t.Fatalf("HashToken not deterministic: %q vs %q", a, b)
	}
	if a == "refresh-abc" || len(a) != 64 {
		t.Fatalf("unexpected hash: %q", a)
	}
}
