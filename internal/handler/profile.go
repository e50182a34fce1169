package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/service"
)

// ProfileService is the profile surface the profile endpoints need
type ProfileService interface {
	GetMyProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.Profile, error)
	GetPublicProfile(ctx context.Context, username string) (*model.PublicProfile, error)
	CheckUsername(ctx context.Context, userID, username string) (*model.UsernameAvailability, error)
	UploadAvatar(ctx context.Context, userID, contentType string, data []byte) (*model.Profile, error)
	RemoveAvatar(ctx context.Context, userID string) error
}

// ProfileHandler handles profile endpoints
type ProfileHandler struct {
	profileService ProfileService
	maxAvatarSize  int64
}

// NewProfileHandler creates a new profile handler. maxAvatarSize bounds the
// upload body; the service applies the exact limit.
func NewProfileHandler(profileService ProfileService, maxAvatarSize int64) *ProfileHandler {
	if maxAvatarSize <= 0 {
		maxAvatarSize = service.DefaultMaxAvatarSize
	}
	return &ProfileHandler{
		profileService: profileService,
		maxAvatarSize:  maxAvatarSize,
	}
}

var profileLinks = map[string]string{
	"self":         "/v1/profile",
	"avatar":       "/v1/profile/avatar",
	"subscription": "/v1/subscriptions/status",
}

// Get handles GET /v1/profile - get own profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.profileService.GetMyProfile(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get profile"))
		return
	}

	WriteData(w, http.StatusOK, profile, profileLinks)
}

// Update handles PATCH /v1/profile - update own profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	profile, err := h.profileService.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "update profile"))
		return
	}

	WriteData(w, http.StatusOK, profile, profileLinks)
}

// GetPublic handles GET /v1/profiles/{username}
func (h *ProfileHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		WriteError(w, model.NewBadRequestError("username is required"))
		return
	}

	profile, err := h.profileService.GetPublicProfile(r.Context(), username)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get profile"))
		return
	}

	WriteData(w, http.StatusOK, profile, map[string]string{
		"self": "/v1/profiles/" + username,
	})
}

// CheckUsername handles GET /v1/profile/username-check?username=
func (h *ProfileHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "username", Message: "username is required"},
		}))
		return
	}

	result, err := h.profileService.CheckUsername(r.Context(), userID, username)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "check username"))
		return
	}

	WriteData(w, http.StatusOK, result, nil)
}

// UploadAvatar handles PUT /v1/profile/avatar with a multipart "avatar" file
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	// Room for the multipart envelope on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAvatarSize+64<<10)
	file, _, err := r.FormFile("avatar")
	if err != nil {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "avatar", Message: "avatar file is required and must be at most 2 MiB"},
		}))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxAvatarSize+1))
	if err != nil {
		WriteError(w, model.NewBadRequestError("failed to read avatar"))
		return
	}

	// The sniffed type decides, not the client's claim
	contentType := http.DetectContentType(data)

	profile, err := h.profileService.UploadAvatar(r.Context(), userID, contentType, data)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "upload avatar"))
		return
	}

	WriteData(w, http.StatusOK, profile, profileLinks)
}

// RemoveAvatar handles DELETE /v1/profile/avatar
func (h *ProfileHandler) RemoveAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.profileService.RemoveAvatar(r.Context(), userID); err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "remove avatar"))
		return
	}

	WriteNoContent(w)
}
