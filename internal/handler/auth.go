package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/service"
)

// AuthService is the account surface the auth endpoints need
type AuthService interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.AuthResult, error)
	Login(ctx context.Context, req service.LoginRequest) (*service.AuthResult, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Me(ctx context.Context, userID string) (*service.Account, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// RegisterRequest represents the register endpoint request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// LoginRequest represents the login endpoint request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the refresh endpoint request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest represents the change password request body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// TokenResponse represents a token response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
	CreatedOn     string `json:"created_on"`
	UpdatedOn     string `json:"updated_on"`
}

// SessionResponse is returned by register and login
type SessionResponse struct {
	User    UserResponse   `json:"user"`
	Profile *model.Profile `json:"profile,omitempty"`
	Token   TokenResponse  `json:"token"`
}

var sessionLinks = map[string]string{
	"self":     "/v1/auth/me",
	"progress": "/v1/progress/merge",
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}

	var req RegisterRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	WriteData(w, http.StatusCreated, toSessionResponse(result), sessionLinks)
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}

	var req LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	WriteData(w, http.StatusOK, toSessionResponse(result), sessionLinks)
}

// Refresh handles POST /v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}

	var req RefreshRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	if req.RefreshToken == "" {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "refresh_token", Message: "refresh_token is required"},
		}))
		return
	}

	tokenPair, err := h.authService.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	WriteData(w, http.StatusOK, toTokenResponse(tokenPair), nil)
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.authService.Logout(r.Context(), userID); err != nil {
		slog.Error("logout failed", "user_id", userID, "error", err)
		WriteError(w, model.NewInternalError("logout failed"))
		return
	}

	WriteNoContent(w)
}

// Me handles GET /v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, model.NewMethodNotAllowedError("GET"))
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	account, err := h.authService.Me(r.Context(), userID)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	response := struct {
		User    UserResponse   `json:"user"`
		Profile *model.Profile `json:"profile,omitempty"`
	}{
		User:    toUserResponse(account.User),
		Profile: account.Profile,
	}

	WriteData(w, http.StatusOK, response, map[string]string{
		"self":    "/v1/auth/me",
		"profile": "/v1/profile",
	})
}

// ChangePassword handles POST /v1/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	if err := h.authService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.handleAuthError(w, err)
		return
	}

	WriteNoContent(w)
}

func (h *AuthHandler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRefreshTokenExpired),
		errors.Is(err, service.ErrRefreshTokenRevoked):
		WriteError(w, model.NewUnauthorizedError("invalid or expired refresh token"))
	default:
		pd := MapServiceError(err)
		if pd.Status >= http.StatusInternalServerError {
			slog.Error("unhandled auth error", "error", err)
			pd.Detail = "authentication error"
		}
		WriteError(w, pd)
	}
}

// Helper functions

func toSessionResponse(result *service.AuthResult) SessionResponse {
	return SessionResponse{
		User:    toUserResponse(result.User),
		Profile: result.Profile,
		Token:   toTokenResponse(result.TokenPair),
	}
}

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Role:          string(user.Role),
		EmailVerified: user.EmailVerified,
		CreatedOn:     user.CreatedOn.Format("2006-01-02T15:04:05Z"),
		UpdatedOn:     user.UpdatedOn.Format("2006-01-02T15:04:05Z"),
	}
}

func toTokenResponse(tokenPair *service.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
	}
}
