package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/pkg/jwt"
)

const (
	// bcrypt cost factor (10-14 recommended for production)
	bcryptCost = 12

	// Password constraints
	minPasswordLength = 8
	maxPasswordLength = 128
)

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
	TouchLogin(ctx context.Context, userID string) error
}

// WelcomeNotifier sends the welcome email after sign-up
type WelcomeNotifier interface {
	Welcome(ctx context.Context, user *model.User, name string)
}

// AuthService handles authentication operations
type AuthService struct {
	userRepo     UserRepository
	profileRepo  ProfileRepository
	tokenService *TokenService
	notifier     WelcomeNotifier
}

// AuthServiceConfig holds configuration for the auth service
type AuthServiceConfig struct {
	UserRepo     UserRepository
	ProfileRepo  ProfileRepository
	TokenService *TokenService
	Notifier     WelcomeNotifier
}

// NewAuthService creates a new auth service
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		userRepo:     cfg.UserRepo,
		profileRepo:  cfg.ProfileRepo,
		tokenService: cfg.TokenService,
		notifier:     cfg.Notifier,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string
	Password string
	FullName string
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string
	Password string
}

// AuthResult is a signed-in account with fresh tokens
type AuthResult struct {
	User      *model.User    `json:"user"`
	Profile   *model.Profile `json:"profile"`
	TokenPair *TokenPair     `json:"tokens"`
}

// Account is the signed-in user and their profile
type Account struct {
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile"`
}

// Register creates a new user account with an empty profile
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	// Validate email
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	// Validate password
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	// Check if email already exists
	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existingUser != nil {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email: email,
		Hash:  &hash,
		Role:  model.UserRoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	name := strings.TrimSpace(req.FullName)
	profile := &model.Profile{
		UserID:   user.ID,
		FullName: stringPtr(name),
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, err
	}

	tokenPair, err := s.tokenService.GenerateTokenPair(ctx, user, nil)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Welcome(ctx, user, name)
	}

	return &AuthResult{User: user, Profile: profile, TokenPair: tokenPair}, nil
}

// Login authenticates a user with email/password
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Hash == nil || *user.Hash == "" {
		return nil, ErrInvalidCredentials
	}
	if !checkPassword(req.Password, *user.Hash) {
		return nil, ErrInvalidCredentials
	}

	profile, err := s.profileRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var username *string
	if profile != nil {
		username = profile.Username
	}
	tokenPair, err := s.tokenService.GenerateTokenPair(ctx, user, username)
	if err != nil {
		return nil, err
	}

	// Last login is informational only
	_ = s.userRepo.TouchLogin(ctx, user.ID)

	return &AuthResult{User: user, Profile: profile, TokenPair: tokenPair}, nil
}

// Me returns the signed-in account
func (s *AuthService) Me(ctx context.Context, userID string) (*Account, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Account{User: user, Profile: profile}, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RefreshTokens validates a refresh token and issues new tokens
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	storedToken, err := s.tokenService.LookupRefreshToken(ctx, refreshToken)
	if err != nil || storedToken == nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, storedToken.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	var username *string
	if profile, err := s.profileRepo.GetByUserID(ctx, user.ID); err == nil && profile != nil {
		username = profile.Username
	}

	// Refresh tokens (handles validation and rotation)
	return s.tokenService.RefreshTokens(ctx, refreshToken, user, username)
}

// Logout revokes the user's refresh tokens
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.tokenService.RevokeAllUserTokens(ctx, userID)
}

// ValidateAccessToken validates an access token and returns the claims
func (s *AuthService) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return s.tokenService.ValidateAccessToken(token)
}

// ChangePassword changes a user's password and signs out every device
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if user.Hash != nil && *user.Hash != "" {
		if !checkPassword(oldPassword, *user.Hash) {
			return ErrInvalidCredentials
		}
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	return s.tokenService.RevokeAllUserTokens(ctx, userID)
}

// Helper functions

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

func isValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	atIndex := strings.Index(email, "@")
	if atIndex < 1 {
		return false
	}
	dotIndex := strings.LastIndex(email, ".")
	if dotIndex < atIndex+2 {
		return false
	}
	return dotIndex < len(email)-1
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
