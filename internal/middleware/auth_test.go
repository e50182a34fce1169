package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/pkg/jwt"
)

// stubTokens accepts the tokens it knows and fails the rest with err
type stubTokens struct {
	claims map[string]*jwt.Claims
	err    error
	calls  int
}

func (s *stubTokens) ValidateAccessToken(token string) (*jwt.Claims, error) {
	s.calls++
	if c, ok := s.claims[token]; ok {
		return c, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, jwt.ErrInvalidToken
}

func newStubTokens() *stubTokens {
	return &stubTokens{claims: map[string]*jwt.Claims{
		"seller-token": {UserID: "user:seller", Email: "seller@exitlane.test", Username: "seller", Role: "user"},
		"admin-token":  {UserID: "user:admin", Email: "admin@exitlane.test", Username: "ops", Role: "admin"},
	}}
}

// identity is what a handler behind the auth middleware observed
type identity struct {
	called bool
	userID string
	email  string
	claims *jwt.Claims
}

func recordIdentity(id *identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id.called = true
		id.userID = GetUserID(r.Context())
		id.email = GetUserEmail(r.Context())
		id.claims = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func listingRequest(authHeader string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/listings/mine", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) model.ProblemDetails {
	t.Helper()
	var pd model.ProblemDetails
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pd))
	return pd
}

func TestAuth_RejectsBadCredentials(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		tokenErr  error
		detail    string
		validated bool
	}{
		{name: "missing header", header: "", detail: "missing authorization header"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", detail: "invalid authorization header format"},
		{name: "scheme only", header: "Bearer", detail: "invalid authorization header format"},
		{name: "empty token", header: "Bearer ", detail: "invalid authorization header format"},
		{name: "no separator", header: "Bearerseller-token", detail: "invalid authorization header format"},
		{name: "expired", header: "Bearer stale", tokenErr: jwt.ErrTokenExpired, detail: "token expired", validated: true},
		{name: "wrapped expiry", header: "Bearer stale", tokenErr: fmt.Errorf("validate: %w", jwt.ErrTokenExpired), detail: "token expired", validated: true},
		{name: "bad signature", header: "Bearer forged", tokenErr: jwt.ErrInvalidSignature, detail: "invalid token signature", validated: true},
		{name: "other failure", header: "Bearer junk", tokenErr: errors.New("boom"), detail: "invalid token", validated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := newStubTokens()
			tokens.err = tt.tokenErr
			var seen identity

			rec := httptest.NewRecorder()
			Auth(tokens)(recordIdentity(&seen)).ServeHTTP(rec, listingRequest(tt.header))

			assert.False(t, seen.called, "next handler must not run")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.validated, tokens.calls > 0)

			pd := decodeProblem(t, rec)
			assert.Equal(t, model.ErrCodeUnauthorized, pd.Code)
			assert.Equal(t, tt.detail, pd.Detail)
		})
	}
}

func TestAuth_ValidToken_AttachesIdentity(t *testing.T) {
	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		t.Run(scheme, func(t *testing.T) {
			var seen identity
			rec := httptest.NewRecorder()
			Auth(newStubTokens())(recordIdentity(&seen)).ServeHTTP(rec, listingRequest(scheme+" seller-token"))

			require.True(t, seen.called)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "user:seller", seen.userID)
			assert.Equal(t, "seller@exitlane.test", seen.email)
			require.NotNil(t, seen.claims)
			assert.Equal(t, "seller", seen.claims.Username)
			assert.False(t, seen.claims.IsAdmin())
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		tokenErr error
		wantUser string
	}{
		{name: "anonymous", header: ""},
		{name: "malformed header", header: "Token abc"},
		{name: "unknown token", header: "Bearer nope"},
		{name: "expired token", header: "Bearer stale", tokenErr: jwt.ErrTokenExpired},
		{name: "signed-in buyer", header: "Bearer seller-token", wantUser: "user:seller"},
		{name: "admin", header: "Bearer admin-token", wantUser: "user:admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := newStubTokens()
			tokens.err = tt.tokenErr
			var seen identity

			rec := httptest.NewRecorder()
			OptionalAuth(tokens)(recordIdentity(&seen)).ServeHTTP(rec, listingRequest(tt.header))

			require.True(t, seen.called, "optional auth never blocks")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantUser, seen.userID)
			assert.Equal(t, tt.wantUser != "", seen.claims != nil)
		})
	}
}

func TestContextAccessors(t *testing.T) {
	claims := &jwt.Claims{UserID: "user:buyer", Email: "buyer@exitlane.test", Role: "user"}

	t.Run("present", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), UserIDKey, "user:buyer")
		ctx = context.WithValue(ctx, UserEmailKey, "buyer@exitlane.test")
		ctx = context.WithValue(ctx, ClaimsKey, claims)

		assert.Equal(t, "user:buyer", GetUserID(ctx))
		assert.Equal(t, "buyer@exitlane.test", GetUserEmail(ctx))
		assert.Same(t, claims, GetClaims(ctx))
		assert.False(t, IsAdmin(ctx))
	})

	t.Run("missing", func(t *testing.T) {
		ctx := context.Background()
		assert.Empty(t, GetUserID(ctx))
		assert.Empty(t, GetUserEmail(ctx))
		assert.Nil(t, GetClaims(ctx))
		assert.False(t, IsAdmin(ctx))
	})

	t.Run("wrong types", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), UserIDKey, 42)
		ctx = context.WithValue(ctx, UserEmailKey, []byte("x"))
		ctx = context.WithValue(ctx, ClaimsKey, *claims)

		assert.Empty(t, GetUserID(ctx))
		assert.Empty(t, GetUserEmail(ctx))
		assert.Nil(t, GetClaims(ctx))
	})
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
		code   model.ErrorCode
	}{
		{name: "admin", header: "Bearer admin-token", status: http.StatusOK},
		{name: "seller", header: "Bearer seller-token", status: http.StatusForbidden, code: model.ErrCodeForbidden},
		{name: "anonymous", header: "", status: http.StatusUnauthorized, code: model.ErrCodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen identity
			// OptionalAuth lets the anonymous case reach AdminAuth itself
			h := OptionalAuth(newStubTokens())(AdminAuth(recordIdentity(&seen)))

			req := httptest.NewRequest(http.MethodGet, "/v1/admin/listings/pending", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusOK, seen.called)
			if tt.code != 0 {
				assert.Equal(t, tt.code, decodeProblem(t, rec).Code)
			}
		})
	}
}
