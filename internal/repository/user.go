package repository

import (
	"context"
	"fmt"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// UserRepository handles user data access
type UserRepository struct {
	db database.Database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	role := user.Role
	if role == "" {
		role = model.UserRoleUser
	}

	query := `
		CREATE user CONTENT {
			email: $email,
			hash: IF $hash IS NOT NULL THEN $hash ELSE NONE END,
			role: $role,
			email_verified: $email_verified,
			created_on: time::now(),
			updated_on: time::now()
		}
	`
	vars := map[string]interface{}{
		"email":          user.Email,
		"hash":           optional(user.Hash),
		"role":           role,
		"email_verified": user.EmailVerified,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: email already exists", database.ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, created, err := createdID(result)
	if err != nil {
		return err
	}
	user.ID = id
	user.Role = role
	user.CreatedOn = created
	user.UpdatedOn = created
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM user WHERE email = $email LIMIT 1`, map[string]interface{}{"email": email})
}

func (r *UserRepository) getOne(ctx context.Context, query string, vars map[string]interface{}) (*model.User, error) {
	user, data, err := queryOne[model.User](ctx, r.db, query, vars, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, nil
	}
	// Hash is json:"-" so it is read straight from the row
	user.Hash = getStringPtr(data, "hash")
	return user, nil
}

// UpdatePassword updates a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	query := `UPDATE type::record($id) SET hash = $hash, updated_on = time::now()`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": userID, "hash": hash})
}

// TouchLogin records a successful sign-in
func (r *UserRepository) TouchLogin(ctx context.Context, userID string) error {
	query := `UPDATE type::record($id) SET login_on = time::now()`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": userID})
}

// SetRole updates a user's role
func (r *UserRepository) SetRole(ctx context.Context, userID string, role model.UserRole) error {
	query := `UPDATE type::record($id) SET role = $role, updated_on = time::now()`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": userID, "role": role})
}

// Delete deletes a user
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.db.Execute(ctx, `DELETE type::record($id)`, map[string]interface{}{"id": id})
}
