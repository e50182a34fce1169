package model

import (
	"strings"
	"time"
)

// RoleType is how a member uses the marketplace
type RoleType string

const (
	RoleTypeBuyer  RoleType = "buyer"
	RoleTypeSeller RoleType = "seller"
	RoleTypeBoth   RoleType = "both"
)

// SubscriptionStatus tracks the marketplace paywall subscription
type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Profile holds the public and marketplace details of a user
type Profile struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	Username             *string            `json:"username,omitempty"`
	FullName             *string            `json:"full_name,omitempty"`
	Bio                  *string            `json:"bio,omitempty"`
	Company              *string            `json:"company,omitempty"`
	LinkedInURL          *string            `json:"linkedin_url,omitempty"`
	AvatarURL            *string            `json:"avatar_url,omitempty"`
	AvatarPath           *string            `json:"-"` // object key in the avatar bucket
	RoleType             RoleType           `json:"role_type"`
	SubscriptionStatus   SubscriptionStatus `json:"subscription_status"`
	SubscriptionPlan     *string            `json:"subscription_plan,omitempty"`
	SubscriptionEndsOn   *time.Time         `json:"subscription_ends_on,omitempty"`
	StripeCustomerID     *string            `json:"-"`
	StripeSubscriptionID *string            `json:"-"`
	CreatedOn            time.Time          `json:"created_on"`
	UpdatedOn            time.Time          `json:"updated_on"`
}

// HasActiveSubscription reports whether the paywall is open for this profile at now.
// A past_due subscription keeps access until its period ends.
func (p *Profile) HasActiveSubscription(now time.Time) bool {
	if p == nil {
		return false
	}
	if p.SubscriptionStatus != SubscriptionActive && p.SubscriptionStatus != SubscriptionPastDue {
		return false
	}
	return p.SubscriptionEndsOn == nil || p.SubscriptionEndsOn.After(now)
}

// PublicProfile is what other members see
type PublicProfile struct {
	Username  *string   `json:"username,omitempty"`
	FullName  *string   `json:"full_name,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	Company   *string   `json:"company,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	RoleType  RoleType  `json:"role_type"`
	MemberOn  time.Time `json:"member_on"`
}

// ToPublic strips subscription and contact details
func (p *Profile) ToPublic() *PublicProfile {
	return &PublicProfile{
		Username:  p.Username,
		FullName:  p.FullName,
		Bio:       p.Bio,
		Company:   p.Company,
		AvatarURL: p.AvatarURL,
		RoleType:  p.RoleType,
		MemberOn:  p.CreatedOn,
	}
}

// Constraints
const (
	MaxFullNameLength = 120
	MaxBioLength      = 1000
	MaxCompanyLength  = 120
)

// AllowedAvatarTypes maps accepted avatar content types to file extensions
var AllowedAvatarTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// UpdateProfileRequest updates the caller's profile. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Username    *string `json:"username,omitempty"`
	FullName    *string `json:"full_name,omitempty" validate:"omitempty,max=120"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=1000"`
	Company     *string `json:"company,omitempty" validate:"omitempty,max=120"`
	LinkedInURL *string `json:"linkedin_url,omitempty"`
	RoleType    *string `json:"role_type,omitempty" validate:"omitempty,oneof=buyer seller both"`
}

// Validate validates the update profile request
func (r *UpdateProfileRequest) Validate() []FieldError {
	errors := validateStruct(r)

	if r.Username != nil {
		if fe := ValidateUsername(*r.Username); fe != nil {
			errors = append(errors, *fe)
		}
	}
	if r.LinkedInURL != nil && *r.LinkedInURL != "" {
		u := strings.ToLower(*r.LinkedInURL)
		if !strings.HasPrefix(u, "https://www.linkedin.com/") && !strings.HasPrefix(u, "https://linkedin.com/") {
			errors = append(errors, FieldError{Field: "linkedin_url", Message: "linkedin_url must be a linkedin.com URL"})
		}
	}
	return errors
}

// UsernameAvailability answers the username check endpoint
type UsernameAvailability struct {
	Username  string `json:"username"`
	Valid     bool   `json:"valid"`
	Available bool   `json:"available"`
}
