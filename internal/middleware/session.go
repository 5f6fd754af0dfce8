package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/weblogd/weblogd/internal/domain"
	jwt_internal "github.com/weblogd/weblogd/internal/jwt"
)

var (
	errNoToken       = errors.New("no access token")
	errInvalidClaims = errors.New("invalid token claims")
)

// Key to store the authenticated identity in the request context
type key int

const IdentityKey key = 0

// Session extracts the caller's externally authenticated identity from the
// access token, if any, so handlers can pass it to the registration
// workflow as an explicit parameter.
type Session struct {
	jwtService jwt_internal.JwtService
}

func NewSession(jwtService jwt_internal.JwtService) *Session {
	return &Session{jwtService: jwtService}
}

// OptionalIdentity populates the request context with the authenticated
// identity when a valid token is present, and passes through otherwise.
// Registration must work for anonymous callers, so this never rejects.
func (s *Session) OptionalIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := s.extractIdentity(r)
			if err == nil && identity != nil {
				ctx := context.WithValue(r.Context(), IdentityKey, identity)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext returns the identity set by OptionalIdentity, or nil.
func IdentityFromContext(r *http.Request) *domain.AuthenticatedIdentity {
	identity, _ := r.Context().Value(IdentityKey).(*domain.AuthenticatedIdentity)
	return identity
}

func (s *Session) extractIdentity(r *http.Request) (*domain.AuthenticatedIdentity, error) {
	// Cookie first (browser clients), then Authorization header.
	var tokenString string
	accessCookie, err := r.Cookie("accessToken")
	if err == nil {
		tokenString = accessCookie.Value
	} else if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		tokenString = token
	}

	if tokenString == "" {
		return nil, errNoToken
	}

	token, err := s.jwtService.DecodeToken(tokenString)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidClaims
	}

	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return nil, errInvalidClaims
	}

	identity := &domain.AuthenticatedIdentity{Username: username}
	if v, ok := claims["screen_name"].(string); ok {
		identity.ScreenName = v
	}
	if v, ok := claims["full_name"].(string); ok {
		identity.FullName = v
	}
	if v, ok := claims["email"].(string); ok {
		identity.Email = v
	}

	return identity, nil
}
