package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/service"
)

// TokenRepository handles refresh token data access
type TokenRepository struct {
	db database.Database
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db database.Database) *TokenRepository {
	return &TokenRepository{db: db}
}

var tokenLinks = map[string]string{"user": "user_id"}

// CreateRefreshToken stores a new refresh token
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token *service.RefreshToken) error {
	query := `
		CREATE refresh_token CONTENT {
			user: type::record($user),
			token_hash: $token_hash,
			expires_at: <datetime>$expires_at,
			created_on: time::now(),
			revoked: false
		}
	`
	vars := map[string]interface{}{
		"user":       token.UserID,
		"token_hash": token.TokenHash,
		"expires_at": formatTime(token.ExpiresAt),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	id, created, err := createdID(result)
	if err != nil {
		return err
	}
	token.ID = id
	token.CreatedAt = created
	return nil
}

// GetRefreshTokenByHash retrieves a refresh token by its hash
func (r *TokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*service.RefreshToken, error) {
	query := `SELECT *, created_on AS created_at FROM refresh_token WHERE token_hash = $hash LIMIT 1`
	token, _, err := queryOne[service.RefreshToken](ctx, r.db, query, map[string]interface{}{"hash": hash}, tokenLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return token, nil
}

// RevokeRefreshToken marks a refresh token as revoked
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, hash string) error {
	query := `UPDATE refresh_token SET revoked = true, revoked_on = time::now() WHERE token_hash = $hash`
	return r.db.Execute(ctx, query, map[string]interface{}{"hash": hash})
}

// RevokeAllUserTokens revokes all refresh tokens for a user
func (r *TokenRepository) RevokeAllUserTokens(ctx context.Context, userID string) error {
	query := `UPDATE refresh_token SET revoked = true, revoked_on = time::now() WHERE user = type::record($user) AND revoked = false`
	return r.db.Execute(ctx, query, map[string]interface{}{"user": userID})
}

// DeleteExpiredTokens removes all expired refresh tokens
func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context) error {
	return r.db.Execute(ctx, `DELETE refresh_token WHERE expires_at < time::now()`, nil)
}

// CleanupRevokedTokens removes tokens that have been revoked for more than 7 days
func (r *TokenRepository) CleanupRevokedTokens(ctx context.Context) error {
	cutoff := formatTime(time.Now().Add(-7 * 24 * time.Hour))
	query := `DELETE refresh_token WHERE revoked = true AND revoked_on < <datetime>$cutoff`
	return r.db.Execute(ctx, query, map[string]interface{}{"cutoff": cutoff})
}
