// Package auth verifies client-supplied bearer tokens locally, without any
// network round trip, so the session's auth step never blocks on I/O.
package auth

import (
	"errors"
	"fmt"

	"github.com/chatwire/chat-gateway/internal/domain/model"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier resolves a raw token into an authenticated identity.
type Verifier interface {
	Verify(token string) (*model.Identity, error)
}

// Claims is the JWT payload issued by the account service.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type hmacVerifier struct {
	secret []byte
}

// NewVerifier builds an HMAC-SHA verifier sharing the issuing service's
// secret.
func NewVerifier(secret string) Verifier {
	return &hmacVerifier{secret: []byte(secret)}
}

func (v *hmacVerifier) Verify(token string) (*model.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return &model.Identity{
		ID:    claims.ID,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}
