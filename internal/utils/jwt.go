// Package utils holds helpers shared by the server and the operator CLI.
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator is the only role that may create events and read metrics.
const RoleOperator = "OPERATOR"

// OperatorClaims are the claims carried by an operator access token.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AccessToken is a signed JWT along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewOperatorToken builds and signs an HS256 JWT for subject with the
// OPERATOR role, valid for ttl from now.
func NewOperatorToken(secret, subject string, ttl time.Duration, now time.Time) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("signing secret is empty")
	}
	if ttl <= 0 {
		return AccessToken{}, fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	now = now.UTC()
	exp := now.Add(ttl)
	claims := OperatorClaims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign token: %w", err)
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseOperatorToken verifies an HS256 token signed with secret and returns
// its claims.  Tokens signed with any other algorithm are rejected.
func ParseOperatorToken(secret, raw string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
