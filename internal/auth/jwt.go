// Package auth issues and verifies bearer tokens and guards routes by role.
package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Clark-Hu/dsmovie/internal/domain"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or shape checks.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims carries the username in Subject and the granted roles.
type Claims struct {
	jwt.RegisteredClaims
	Authorities []string `json:"authorities"`
}

// Token is a signed access token and its expiry.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// JWTIssuer signs HS256 access tokens.
type JWTIssuer struct {
	Secret []byte
	TTL    time.Duration
}

// Issue signs a token for user valid from now for the issuer's TTL.
func (i JWTIssuer) Issue(user domain.User, now time.Time) (Token, error) {
	if len(i.Secret) == 0 {
		return Token{}, errors.New("missing jwt secret")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(i.TTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Authorities: user.Roles,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// JWTVerifier validates HS256 access tokens.
type JWTVerifier struct {
	Secret []byte
}

// Parse verifies tokenString and returns its claims.
func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
