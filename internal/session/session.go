// Package session holds the signed-in user's credentials.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joseph-ayodele/doffice/internal/entity"
)

// Session is either an authenticated user with a bearer token or a guest without one.
type Session struct {
	token     string
	User      entity.User
	IsGuest   bool
	ExpiresAt time.Time
}

// Guest returns a session that never sends credentials.
func Guest() *Session {
	return &Session{IsGuest: true}
}

// Authenticated builds a session for token. The JWT expiry is read without verifying the
// signature; the backend remains the authority on validity.
func Authenticated(token string, user entity.User) *Session {
	return &Session{token: token, User: user, ExpiresAt: TokenExpiry(token)}
}

// Token implements api.Auth and channel.TokenSource. Nil sessions are anonymous.
func (s *Session) Token() string {
	if s == nil || s.IsGuest {
		return ""
	}
	return s.token
}

// Guest implements api.Auth.
func (s *Session) Guest() bool {
	return s == nil || s.IsGuest || s.token == ""
}

// Expired reports whether the token carried an exp claim that has passed.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// TokenExpiry returns the exp claim of a JWT, or the zero time when the token is not a
// JWT or has no exp.
func TokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
