// Package auth issues and verifies the JWTs that gate the websocket and REST
// surfaces.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chatwire/backend/internal/models"
)

const issuer = "chatwire-backend"

// Verifier validates bearer tokens and extracts the identity they carry.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: 72 * time.Hour}
}

// VerifyToken parses and validates a token and returns the identity embedded
// in its claims. Every failure maps to models.ErrUnauthorized.
func (v *Verifier) VerifyToken(tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, fmt.Errorf("parsing token: %w", models.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, models.ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return models.Identity{}, fmt.Errorf("token without subject: %w", models.ErrUnauthorized)
	}
	email, _ := claims["email"].(string)
	username, _ := claims["username"].(string)

	return models.Identity{ID: sub, Email: email, Username: username}, nil
}

// IssueToken signs a token for the identity, valid for the verifier's TTL.
func (v *Verifier) IssueToken(identity models.Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      identity.ID,
		"email":    identity.Email,
		"username": identity.Username,
		"exp":      time.Now().Add(v.ttl).Unix(),
		"iss":      issuer,
	})
	return token.SignedString(v.secret)
}
