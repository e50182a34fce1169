package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/pkg/jwt"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockTokenRepo struct {
	createRefreshTokenFunc    func(ctx context.Context, token *RefreshToken) error
	getRefreshTokenByHashFunc func(ctx context.Context, hash string) (*RefreshToken, error)
	revokeRefreshTokenFunc    func(ctx context.Context, hash string) error
	revokeAllUserTokensFunc   func(ctx context.Context, userID string) error
	deleteExpiredTokensFunc   func(ctx context.Context) error
}

func (m *mockTokenRepo) CreateRefreshToken(ctx context.Context, token *RefreshToken) error {
	if m.createRefreshTokenFunc != nil {
		return m.createRefreshTokenFunc(ctx, token)
	}
	return nil
}

func (m *mockTokenRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	if m.getRefreshTokenByHashFunc != nil {
		return m.getRefreshTokenByHashFunc(ctx, hash)
	}
	return nil, nil
}

func (m *mockTokenRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	if m.revokeRefreshTokenFunc != nil {
		return m.revokeRefreshTokenFunc(ctx, hash)
	}
	return nil
}

func (m *mockTokenRepo) RevokeAllUserTokens(ctx context.Context, userID string) error {
	if m.revokeAllUserTokensFunc != nil {
		return m.revokeAllUserTokensFunc(ctx, userID)
	}
	return nil
}

func (m *mockTokenRepo) DeleteExpiredTokens(ctx context.Context) error {
	if m.deleteExpiredTokensFunc != nil {
		return m.deleteExpiredTokensFunc(ctx)
	}
	return nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func createTestJWTService(t *testing.T) *jwt.Service {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return jwt.NewTestService(privateKey, "test-issuer", time.Hour)
}

func newTestTokenService(t *testing.T, repo TokenRepository) *TokenService {
	t.Helper()
	return NewTokenService(TokenServiceConfig{
		JWTService: createTestJWTService(t),
		TokenRepo:  repo,
	})
}

// ============================================================================
// Helpers Tests
// ============================================================================

func TestHashToken(t *testing.T) {
	t.Parallel()

	if hashToken("token-a") != hashToken("token-a") {
		t.Error("hash should be deterministic")
	}
	if hashToken("token-a") == hashToken("token-b") {
		t.Error("different tokens should have different hashes")
	}
	// SHA-256 produces 32 bytes = 64 hex characters
	if got := len(hashToken("test")); got != 64 {
		t.Errorf("expected hash length 64, got %d", got)
	}
}

func TestStringValue(t *testing.T) {
	t.Parallel()

	s := "jdoe"
	if stringValue(nil) != "" {
		t.Error("expected empty string for nil")
	}
	if stringValue(&s) != "jdoe" {
		t.Errorf("expected 'jdoe', got %q", stringValue(&s))
	}
}

func TestGenerateRefreshToken_UniqueAndSized(t *testing.T) {
	t.Parallel()

	svc := &TokenService{}
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := svc.generateRefreshToken()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// prefix plus 32 bytes of unpadded base64url
		if !strings.HasPrefix(token, refreshTokenPrefix) || len(token) != len(refreshTokenPrefix)+43 {
			t.Fatalf("unexpected token shape %q", token)
		}
		if seen[token] {
			t.Fatal("generated duplicate token")
		}
		seen[token] = true
	}
}

func TestNewTokenService_DefaultDuration(t *testing.T) {
	t.Parallel()

	svc := NewTokenService(TokenServiceConfig{})
	if svc.refreshDuration != 30*24*time.Hour {
		t.Errorf("expected default duration of 30 days, got %v", svc.refreshDuration)
	}
}

// ============================================================================
// GenerateTokenPair Tests
// ============================================================================

func TestGenerateTokenPair_CarriesRoleAndUsername(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var stored *RefreshToken
	svc := newTestTokenService(t, &mockTokenRepo{
		createRefreshTokenFunc: func(ctx context.Context, token *RefreshToken) error {
			stored = token
			return nil
		},
	})

	username := "maker_01"
	user := &model.User{ID: "user:admin1", Email: "ops@exitlane.test", Role: model.UserRoleAdmin}
	pair, err := svc.GenerateTokenPair(ctx, user, &username)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.TokenType != "Bearer" || pair.ExpiresIn <= 0 {
		t.Errorf("unexpected pair metadata: %+v", pair)
	}
	if stored == nil || stored.TokenHash != hashToken(pair.RefreshToken) {
		t.Error("expected the hashed refresh token to be stored")
	}

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("access token should validate: %v", err)
	}
	if !claims.IsAdmin() {
		t.Error("expected admin role in claims")
	}
	if claims.Username != "maker_01" || claims.Subject != "user:admin1" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestGenerateTokenPair_RepoError(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("database error")
	svc := newTestTokenService(t, &mockTokenRepo{
		createRefreshTokenFunc: func(ctx context.Context, token *RefreshToken) error {
			return dbErr
		},
	})

	_, err := svc.GenerateTokenPair(context.Background(), &model.User{ID: "user:1"}, nil)
	if !errors.Is(err, dbErr) {
		t.Errorf("expected database error, got %v", err)
	}
}

// ============================================================================
// RefreshTokens Tests
// ============================================================================

func TestRefreshTokens(t *testing.T) {
	t.Parallel()

	const raw = refreshTokenPrefix + "refresh-token"
	tests := []struct {
		name          string
		token         string
		stored        *RefreshToken
		wantErr       error
		wantRevokeAll bool
		wantRotate    bool
	}{
		{
			name:       "valid token rotates",
			stored:     &RefreshToken{UserID: "user:1", ExpiresAt: time.Now().Add(time.Hour)},
			wantRotate: true,
		},
		{
			name:    "unknown token",
			stored:  nil,
			wantErr: ErrInvalidRefreshToken,
		},
		{
			name:          "reused token revokes everything",
			stored:        &RefreshToken{UserID: "user:1", ExpiresAt: time.Now().Add(time.Hour), Revoked: true},
			wantErr:       ErrRefreshTokenRevoked,
			wantRevokeAll: true,
		},
		{
			name:    "expired token",
			stored:  &RefreshToken{UserID: "user:1", ExpiresAt: time.Now().Add(-time.Hour)},
			wantErr: ErrRefreshTokenExpired,
		},
		{
			name:    "missing prefix",
			token:   "refresh-token",
			stored:  &RefreshToken{UserID: "user:1", ExpiresAt: time.Now().Add(time.Hour)},
			wantErr: ErrInvalidRefreshToken,
		},
		{
			name:    "belongs to another user",
			stored:  &RefreshToken{UserID: "user:2", ExpiresAt: time.Now().Add(time.Hour)},
			wantErr: ErrInvalidRefreshToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			revokedAll := false
			revokedHash := ""
			svc := newTestTokenService(t, &mockTokenRepo{
				getRefreshTokenByHashFunc: func(ctx context.Context, hash string) (*RefreshToken, error) {
					return tt.stored, nil
				},
				revokeAllUserTokensFunc: func(ctx context.Context, userID string) error {
					revokedAll = true
					return nil
				},
				revokeRefreshTokenFunc: func(ctx context.Context, hash string) error {
					revokedHash = hash
					return nil
				},
			})

			token := tt.token
			if token == "" {
				token = raw
			}
			pair, err := svc.RefreshTokens(context.Background(), token, &model.User{ID: "user:1"}, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if revokedAll != tt.wantRevokeAll {
				t.Errorf("revoke all = %v, want %v", revokedAll, tt.wantRevokeAll)
			}
			if tt.wantRotate {
				if pair == nil {
					t.Fatal("expected a new token pair")
				}
				if revokedHash != hashToken(raw) {
					t.Error("expected the old token to be revoked")
				}
			}
		})
	}
}

// ============================================================================
// Misc Tests
// ============================================================================

func TestValidateAccessToken_Invalid(t *testing.T) {
	t.Parallel()

	svc := newTestTokenService(t, &mockTokenRepo{})
	if _, err := svc.ValidateAccessToken("not-a-jwt"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestRevokeAllUserTokens_CallsRepo(t *testing.T) {
	t.Parallel()

	revoked := ""
	svc := NewTokenService(TokenServiceConfig{TokenRepo: &mockTokenRepo{
		revokeAllUserTokensFunc: func(ctx context.Context, userID string) error {
			revoked = userID
			return nil
		},
	}})

	if err := svc.RevokeAllUserTokens(context.Background(), "user:9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revoked != "user:9" {
		t.Errorf("expected user:9 to be revoked, got %q", revoked)
	}
}
