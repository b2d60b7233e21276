package mockbackend

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userKey = "mock.user"

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func (ti tokenIssuer) issue(email string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

func (ti tokenIssuer) verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// googleEmail reads the email claim of a Google ID token. The mock trusts the token without
// checking Google's signature.
func googleEmail(idToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", err
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", errors.New("id token has no email")
	}
	return email, nil
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// authMiddleware resolves the bearer token to a user. With required=false a missing header
// continues as a guest; an invalid token is always rejected.
func (s *Server) authMiddleware(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				respondDetail(c, http.StatusUnauthorized, "Not authenticated")
				return
			}
			c.Next()
			return
		}
		token, ok := extractBearerToken(header)
		if !ok {
			respondDetail(c, http.StatusUnauthorized, "Invalid authorization header")
			return
		}
		email, err := s.tokens.verify(token)
		if err != nil {
			s.logger.Warn("mock.auth.invalid_token", "path", c.Request.URL.Path, "error", err)
			respondDetail(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		u, ok := s.store.userByEmail(email)
		if !ok {
			respondDetail(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) (user, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return user{}, false
	}
	u, ok := v.(user)
	return u, ok
}

func respondDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
