// Package auth mints and verifies owner identity tokens. The relay core
// treats tokens as opaque strings; signature verification is an optional
// gate in front of session creation.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// OwnerClaims is the payload of a signed owner token. ClientID identifies
// one physical client across its connections.
type OwnerClaims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	key      []byte
	duration time.Duration
}

func NewTokenIssuer(key []byte, duration time.Duration) TokenIssuer {
	return TokenIssuer{key: key, duration: duration}
}

// Mint creates a signed owner token for a fresh client id.
func (t TokenIssuer) Mint() (string, error) {
	now := time.Now()
	claims := &OwnerClaims{
		ClientID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "relay-lab",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

// Verify parses and validates the signature and expiration of an owner token.
func (t TokenIssuer) Verify(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &OwnerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.key, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrSignatureInvalid
	}
	return nil
}
