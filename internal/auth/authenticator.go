package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Clark-Hu/dsmovie/internal/domain"
	"github.com/Clark-Hu/dsmovie/internal/repository"
)

// ErrInvalidCredentials is returned when the username or password is wrong.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// UserFinder loads accounts by username.
type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (domain.User, error)
}

// Authenticator exchanges a username and password for an access token.
type Authenticator struct {
	users  UserFinder
	issuer JWTIssuer
	now    func() time.Time
}

// NewAuthenticator builds an Authenticator.
func NewAuthenticator(users UserFinder, issuer JWTIssuer) *Authenticator {
	return &Authenticator{users: users, issuer: issuer, now: time.Now}
}

// Login verifies the password and returns a signed token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, fmt.Errorf("load user: %w", err)
	}
	if err := VerifyPassword(user.Password, password); err != nil {
		return Token{}, ErrInvalidCredentials
	}
	return a.issuer.Issue(user, a.now().UTC())
}
