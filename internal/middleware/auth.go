package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/pkg/jwt"
)

// ClaimsKey is the context key for JWT claims
const ClaimsKey contextKey = "claims"

// UserEmailKey is the context key for user email
const UserEmailKey contextKey = "userEmail"

var errBadAuthHeader = errors.New("invalid authorization header format")

// AuthService validates access tokens. The token service implements it.
type AuthService interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header.
// ok is false when the header is absent.
func bearerToken(r *http.Request) (token string, ok bool, err error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false, nil
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", true, errBadAuthHeader
	}
	return token, true, nil
}

func withClaims(r *http.Request, claims *jwt.Claims) *http.Request {
	ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return r.WithContext(ctx)
}

// Auth returns a middleware that requires a valid bearer token
func Auth(authService AuthService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present, err := bearerToken(r)
			if !present {
				model.NewUnauthorizedError("missing authorization header").WriteJSON(w)
				return
			}
			if err != nil {
				model.NewUnauthorizedError(err.Error()).WriteJSON(w)
				return
			}

			claims, err := authService.ValidateAccessToken(token)
			if err != nil {
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					model.NewUnauthorizedError("token expired").WriteJSON(w)
				case errors.Is(err, jwt.ErrInvalidSignature):
					model.NewUnauthorizedError("invalid token signature").WriteJSON(w)
				default:
					model.NewUnauthorizedError("invalid token").WriteJSON(w)
				}
				return
			}

			next.ServeHTTP(w, withClaims(r, claims))
		})
	}
}

// OptionalAuth attaches the caller's identity when a valid token is sent and
// otherwise lets the request through anonymously. Public listing pages use it
// so signed-in buyers see what their subscription or NDA unlocks.
func OptionalAuth(authService AuthService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present, err := bearerToken(r)
			if !present || err != nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := authService.ValidateAccessToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, withClaims(r, claims))
		})
	}
}

// GetUserID extracts the user ID from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUserEmail extracts the user email from context
func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

// GetClaims extracts the JWT claims from context
func GetClaims(ctx context.Context) *jwt.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}

// IsAdmin reports whether the authenticated user carries the admin role
func IsAdmin(ctx context.Context) bool {
	claims := GetClaims(ctx)
	return claims != nil && claims.IsAdmin()
}

// AdminAuth rejects requests whose claims lack the admin role.
// It must run after Auth.
func AdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			model.NewUnauthorizedError("authentication required").WriteJSON(w)
			return
		}
		if !IsAdmin(r.Context()) {
			model.NewForbiddenError("admin role required").WriteJSON(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
