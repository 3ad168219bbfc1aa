// Package auth turns bearer tokens into caller identities. Issuing tokens
// to end users belongs to the user-management service; Sign exists for
// operator tooling and tests.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"movierec/pkg/models"
)

type TokenService struct {
	Secret   []byte
	Issuer   string
	Duration time.Duration
}

type Claims struct {
	UserID string `json:"user_id"`
	Staff  bool   `json:"staff,omitempty"`
	jwt.RegisteredClaims
}

func (ts TokenService) Sign(userID string, staff bool) (string, time.Time, error) {
	now := time.Now()
	d := ts.Duration
	if d <= 0 {
		d = time.Hour
	}
	exp := now.Add(d)

	claims := Claims{
		UserID: userID,
		Staff:  staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

func (ts TokenService) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if ts.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.Issuer))
	}
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return ts.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func (c *Claims) Identity() models.Identity {
	return models.Identity{UserID: c.UserID, Authenticated: true, Staff: c.Staff}
}
