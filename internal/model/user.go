package model

import "time"

// UserRole represents the role of a user in the system
type UserRole string

const (
	UserRoleUser  UserRole = "user"  // Buyers and sellers
	UserRoleAdmin UserRole = "admin" // Listing moderation and escrow intervention
)

// Valid reports whether r is a known role
func (r UserRole) Valid() bool {
	return r == UserRoleUser || r == UserRoleAdmin
}

// User represents a user account. Marketplace details live on Profile.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Hash          *string    `json:"-"` // Never expose password hash
	Role          UserRole   `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	CreatedOn     time.Time  `json:"created_on"`
	UpdatedOn     time.Time  `json:"updated_on"`
	LoginOn       *time.Time `json:"login_on,omitempty"`
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
