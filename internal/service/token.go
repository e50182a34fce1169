package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/pkg/jwt"
)

// refreshTokenPrefix marks opaque refresh tokens so leaked ones are easy to
// recognize and malformed ones are rejected before touching the database
const refreshTokenPrefix = "elr_"

// RefreshToken represents a stored refresh token
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `json:"revoked"`
}

// TokenRepository defines the interface for refresh token storage
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, hash string) error
	RevokeAllUserTokens(ctx context.Context, userID string) error
	DeleteExpiredTokens(ctx context.Context) error
}

// TokenService signs access tokens and rotates refresh tokens
type TokenService struct {
	jwtService      *jwt.Service
	tokenRepo       TokenRepository
	refreshDuration time.Duration
	now             func() time.Time
}

// TokenServiceConfig holds configuration for the token service
type TokenServiceConfig struct {
	JWTService      *jwt.Service
	TokenRepo       TokenRepository
	RefreshDuration time.Duration // Default: 30 days
}

// NewTokenService creates a new token service
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	if cfg.RefreshDuration == 0 {
		cfg.RefreshDuration = 30 * 24 * time.Hour
	}

	return &TokenService{
		jwtService:      cfg.JWTService,
		tokenRepo:       cfg.TokenRepo,
		refreshDuration: cfg.RefreshDuration,
		now:             time.Now,
	}
}

// TokenPair represents an access token and refresh token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// GenerateTokenPair signs an access token for user and stores the hash of a
// fresh refresh token. username is the profile handle, if one was picked.
func (s *TokenService) GenerateTokenPair(ctx context.Context, user *model.User, username *string) (*TokenPair, error) {
	claims := jwt.Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: stringValue(username),
		Role:     string(user.Role),
	}
	claims.Subject = user.ID

	accessToken, err := s.jwtService.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now()
	stored := &RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: now.Add(s.refreshDuration),
		CreatedAt: now,
	}
	if err := s.tokenRepo.CreateRefreshToken(ctx, stored); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwtService.GetExpiration().Seconds()),
	}, nil
}

// RefreshTokens exchanges a refresh token for a new pair. Tokens are single
// use: presenting a revoked one revokes every session of its owner.
func (s *TokenService) RefreshTokens(ctx context.Context, refreshToken string, user *model.User, username *string) (*TokenPair, error) {
	stored, err := s.LookupRefreshToken(ctx, refreshToken)
	if err != nil || stored == nil || stored.UserID != user.ID {
		return nil, ErrInvalidRefreshToken
	}

	if stored.Revoked {
		slog.Warn("refresh token reuse detected, revoking all sessions",
			slog.String("user_id", stored.UserID))
		_ = s.tokenRepo.RevokeAllUserTokens(ctx, stored.UserID)
		return nil, ErrRefreshTokenRevoked
	}

	if s.now().After(stored.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	if err := s.tokenRepo.RevokeRefreshToken(ctx, hashToken(refreshToken)); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	return s.GenerateTokenPair(ctx, user, username)
}

// ValidateAccessToken validates an access token and returns the claims
func (s *TokenService) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return s.jwtService.Validate(token)
}

// LookupRefreshToken returns the stored record for a raw refresh token. A
// token without the expected prefix is never looked up.
func (s *TokenService) LookupRefreshToken(ctx context.Context, refreshToken string) (*RefreshToken, error) {
	if !strings.HasPrefix(refreshToken, refreshTokenPrefix) {
		return nil, ErrInvalidRefreshToken
	}
	return s.tokenRepo.GetRefreshTokenByHash(ctx, hashToken(refreshToken))
}

// CleanupExpired deletes expired refresh tokens
func (s *TokenService) CleanupExpired(ctx context.Context) error {
	return s.tokenRepo.DeleteExpiredTokens(ctx)
}

// RevokeAllUserTokens signs a user out of every device
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	return s.tokenRepo.RevokeAllUserTokens(ctx, userID)
}

func (s *TokenService) generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return refreshTokenPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken returns the hex SHA-256 of token, the form kept in storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
