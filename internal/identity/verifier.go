package identity

import (
	"errors"
	"fmt"

	"github.com/dgrijalva/jwt-go"
)

// Claims is what the gateway needs from the identity provider's token: who
// the user is and their role. Credential validation itself happens at the
// provider; the gateway only verifies the token signature.
type Claims struct {
	UserID string
	Role   string
}

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingUser  = errors.New("token carries no user id")
)

// Verifier checks HMAC-signed bearer tokens issued by the identity provider.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier builds a Verifier. issuer is optional; when set, tokens from
// other issuers are rejected.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates a raw token string.
func (v *Verifier) Verify(raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	if v.issuer != "" && !mapClaims.VerifyIssuer(v.issuer, true) {
		return Claims{}, ErrInvalidToken
	}

	claims := Claims{Role: RoleStudent}
	if sub, ok := mapClaims["sub"].(string); ok && sub != "" {
		claims.UserID = sub
	} else if uid, ok := mapClaims["userId"].(string); ok && uid != "" {
		claims.UserID = uid
	}
	if claims.UserID == "" {
		return Claims{}, ErrMissingUser
	}
	if role, ok := mapClaims["role"].(string); ok && role != "" {
		claims.Role = role
	}
	return claims, nil
}
