package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestVerifyAcceptsSubClaim(t *testing.T) {
	v := NewVerifier(testSecret, "")
	raw := mintToken(t, testSecret, jwt.MapClaims{"sub": "u1"})

	claims, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" {
		t.Fatalf("expected u1, got %q", claims.UserID)
	}
	if claims.Role != RoleStudent {
		t.Fatalf("role must default to student, got %q", claims.Role)
	}
}

func TestVerifyAcceptsLegacyUserIDClaim(t *testing.T) {
	v := NewVerifier(testSecret, "")
	raw := mintToken(t, testSecret, jwt.MapClaims{"userId": "u2", "role": RoleInstructor})

	claims, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u2" || claims.Role != RoleInstructor {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewVerifier(testSecret, "")
	raw := mintToken(t, "other-secret", jwt.MapClaims{"sub": "u1"})

	if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret, "")
	raw := mintToken(t, testSecret, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestVerifyRejectsMissingUser(t *testing.T) {
	v := NewVerifier(testSecret, "")
	raw := mintToken(t, testSecret, jwt.MapClaims{"role": RoleStudent})

	if _, err := v.Verify(raw); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected missing user, got %v", err)
	}
}

func TestVerifyEnforcesIssuer(t *testing.T) {
	v := NewVerifier(testSecret, "quiz-identity")

	good := mintToken(t, testSecret, jwt.MapClaims{"sub": "u1", "iss": "quiz-identity"})
	if _, err := v.Verify(good); err != nil {
		t.Fatalf("verify: %v", err)
	}

	bad := mintToken(t, testSecret, jwt.MapClaims{"sub": "u1", "iss": "someone-else"})
	if _, err := v.Verify(bad); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer rejection, got %v", err)
	}

	missing := mintToken(t, testSecret, jwt.MapClaims{"sub": "u1"})
	if _, err := v.Verify(missing); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer rejection, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewVerifier(testSecret, "")
	if _, err := v.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}
