package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/storage"
)

// DefaultMaxAvatarSize is the avatar upload limit when none is configured
const DefaultMaxAvatarSize = 2 << 20 // 2 MiB

// SubscriptionUpdate changes the paywall subscription on a profile.
// Nil fields are left unchanged.
type SubscriptionUpdate struct {
	Status         model.SubscriptionStatus
	Plan           *string
	EndsOn         *time.Time
	CustomerID     *string
	SubscriptionID *string
}

// ProfileRepository defines the interface for profile storage
type ProfileRepository interface {
	Create(ctx context.Context, profile *model.Profile) error
	GetByUserID(ctx context.Context, userID string) (*model.Profile, error)
	GetByUsername(ctx context.Context, username string) (*model.Profile, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Profile, error)
	GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*model.Profile, error)
	UsernameTaken(ctx context.Context, username, exceptUserID string) (bool, error)
	Update(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.Profile, error)
	SetAvatar(ctx context.Context, userID string, url, path *string) error
	UpdateSubscription(ctx context.Context, userID string, u SubscriptionUpdate) error
	ExpireSubscriptions(ctx context.Context, now time.Time) (int, error)
	CountActiveSubscriptions(ctx context.Context) (int, error)
}

// ProfileService handles profile business logic
type ProfileService struct {
	profileRepo   ProfileRepository
	avatars       storage.Store
	maxAvatarSize int64
}

// ProfileServiceConfig holds configuration for the profile service
type ProfileServiceConfig struct {
	ProfileRepo   ProfileRepository
	Avatars       storage.Store // nil disables avatar uploads
	MaxAvatarSize int64
}

// NewProfileService creates a new profile service
func NewProfileService(cfg ProfileServiceConfig) *ProfileService {
	if cfg.Avatars == nil {
		cfg.Avatars = storage.Disabled{}
	}
	if cfg.MaxAvatarSize <= 0 {
		cfg.MaxAvatarSize = DefaultMaxAvatarSize
	}
	return &ProfileService{
		profileRepo:   cfg.ProfileRepo,
		avatars:       cfg.Avatars,
		maxAvatarSize: cfg.MaxAvatarSize,
	}
}

// GetMyProfile returns the caller's profile
func (s *ProfileService) GetMyProfile(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// UpdateProfile applies a validated profile patch
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.Profile, error) {
	if req.Username != nil {
		if !model.IsValidUsername(*req.Username) {
			return nil, ErrInvalidUsername
		}
		taken, err := s.profileRepo.UsernameTaken(ctx, *req.Username, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrUsernameTaken
		}
	}

	profile, err := s.profileRepo.Update(ctx, userID, req)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// GetPublicProfile returns what other members see of a username
func (s *ProfileService) GetPublicProfile(ctx context.Context, username string) (*model.PublicProfile, error) {
	if !model.IsValidUsername(username) {
		return nil, ErrProfileNotFound
	}
	profile, err := s.profileRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile.ToPublic(), nil
}

// CheckUsername reports whether a username is well formed and free for the caller
func (s *ProfileService) CheckUsername(ctx context.Context, userID, username string) (*model.UsernameAvailability, error) {
	result := &model.UsernameAvailability{Username: username, Valid: model.IsValidUsername(username)}
	if !result.Valid {
		return result, nil
	}
	taken, err := s.profileRepo.UsernameTaken(ctx, username, userID)
	if err != nil {
		return nil, err
	}
	result.Available = !taken
	return result, nil
}

// UploadAvatar stores a new avatar and drops the previous object
func (s *ProfileService) UploadAvatar(ctx context.Context, userID, contentType string, data []byte) (*model.Profile, error) {
	ext, ok := model.AllowedAvatarTypes[contentType]
	if !ok {
		return nil, ErrAvatarType
	}
	if int64(len(data)) > s.maxAvatarSize {
		return nil, ErrAvatarTooLarge
	}

	profile, err := s.GetMyProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s.%s", avatarFolder(userID), uuid.NewString(), ext)
	url, err := s.avatars.Upload(ctx, key, contentType, data)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			return nil, ErrStorageUnavailable
		}
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	if err := s.profileRepo.SetAvatar(ctx, userID, &url, &key); err != nil {
		return nil, err
	}

	if profile.AvatarPath != nil && *profile.AvatarPath != key {
		if err := s.avatars.Delete(ctx, *profile.AvatarPath); err != nil {
			slog.Warn("failed to delete previous avatar", "user_id", userID, "key", *profile.AvatarPath, "error", err)
		}
	}

	profile.AvatarURL = &url
	profile.AvatarPath = &key
	return profile, nil
}

// RemoveAvatar deletes the avatar object and clears it from the profile
func (s *ProfileService) RemoveAvatar(ctx context.Context, userID string) error {
	profile, err := s.GetMyProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.AvatarPath != nil {
		if err := s.avatars.Delete(ctx, *profile.AvatarPath); err != nil {
			if errors.Is(err, storage.ErrNotConfigured) {
				return ErrStorageUnavailable
			}
			return fmt.Errorf("failed to delete avatar: %w", err)
		}
	}
	return s.profileRepo.SetAvatar(ctx, userID, nil, nil)
}

// avatarFolder turns "user:abc" into "abc" so object keys stay URL friendly
func avatarFolder(userID string) string {
	for i := len(userID) - 1; i >= 0; i-- {
		if userID[i] == ':' {
			return userID[i+1:]
		}
	}
	return userID
}
