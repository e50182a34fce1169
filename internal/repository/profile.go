package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/service"
)

// ProfileRepository handles member profile data access
type ProfileRepository struct {
	db database.Database
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db database.Database) *ProfileRepository {
	return &ProfileRepository{db: db}
}

var profileLinks = map[string]string{"user": "user_id"}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	if profile.RoleType == "" {
		profile.RoleType = model.RoleTypeBuyer
	}
	if profile.SubscriptionStatus == "" {
		profile.SubscriptionStatus = model.SubscriptionNone
	}

	sets := newSetClause(map[string]interface{}{"user_id": profile.UserID})
	sets.expr("user = type::record($user_id)")
	sets.set("role_type", profile.RoleType)
	sets.set("subscription_status", profile.SubscriptionStatus)
	setIfPresent(sets, "username", profile.Username)
	setIfPresent(sets, "full_name", profile.FullName)
	setIfPresent(sets, "company", profile.Company)
	sets.expr("created_on = time::now()")
	sets.expr("updated_on = time::now()")

	result, err := r.db.Query(ctx, "CREATE profiles SET "+sets.String(), sets.vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: profile already exists", database.ErrDuplicate)
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	id, created, err := createdID(result)
	if err != nil {
		return err
	}
	profile.ID = id
	profile.CreatedOn = created
	profile.UpdatedOn = created
	return nil
}

// GetByUserID retrieves the profile of a user
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return r.getOne(ctx, `SELECT * FROM profiles WHERE user = type::record($user) LIMIT 1`, map[string]interface{}{"user": userID})
}

// GetByUsername retrieves a profile by username
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*model.Profile, error) {
	return r.getOne(ctx, `SELECT * FROM profiles WHERE username = $username LIMIT 1`, map[string]interface{}{"username": username})
}

// GetByStripeCustomerID retrieves the profile linked to a processor customer
func (r *ProfileRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Profile, error) {
	return r.getOne(ctx, `SELECT * FROM profiles WHERE stripe_customer_id = $customer LIMIT 1`, map[string]interface{}{"customer": customerID})
}

// GetByStripeSubscriptionID retrieves the profile linked to a processor subscription
func (r *ProfileRepository) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*model.Profile, error) {
	return r.getOne(ctx, `SELECT * FROM profiles WHERE stripe_subscription_id = $subscription LIMIT 1`, map[string]interface{}{"subscription": subscriptionID})
}

func (r *ProfileRepository) getOne(ctx context.Context, query string, vars map[string]interface{}) (*model.Profile, error) {
	profile, data, err := queryOne[model.Profile](ctx, r.db, query, vars, profileLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return nil, nil
	}
	profile.AvatarPath = getStringPtr(data, "avatar_path")
	profile.StripeCustomerID = getStringPtr(data, "stripe_customer_id")
	profile.StripeSubscriptionID = getStringPtr(data, "stripe_subscription_id")
	return profile, nil
}

// UsernameTaken reports whether another user already holds username
func (r *ProfileRepository) UsernameTaken(ctx context.Context, username, exceptUserID string) (bool, error) {
	query := `SELECT count() AS count FROM profiles WHERE username = $username AND user != type::record($user) GROUP ALL`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"username": username, "user": exceptUserID})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	m, _ := result.(map[string]interface{})
	return extractCountValue(m["count"]) > 0, nil
}

// Update applies a profile patch and returns the stored profile
func (r *ProfileRepository) Update(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.Profile, error) {
	sets := newSetClause(map[string]interface{}{"user": userID})
	setIfPresent(sets, "username", req.Username)
	setOrClear(sets, "full_name", req.FullName)
	setOrClear(sets, "bio", req.Bio)
	setOrClear(sets, "company", req.Company)
	setOrClear(sets, "linkedin_url", req.LinkedInURL)
	setIfPresent(sets, "role_type", req.RoleType)
	sets.expr("updated_on = time::now()")

	query := "UPDATE profiles SET " + sets.String() + " WHERE user = type::record($user) RETURN AFTER"
	result, err := r.db.QueryOne(ctx, query, sets.vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: username already taken", database.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	profile, _, err := decodeRow[model.Profile](result, profileLinks)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SetAvatar stores or clears the avatar URL and object key
func (r *ProfileRepository) SetAvatar(ctx context.Context, userID string, url, path *string) error {
	query := `UPDATE profiles SET avatar_url = NONE, avatar_path = NONE, updated_on = time::now() WHERE user = type::record($user)`
	vars := map[string]interface{}{"user": userID}
	if url != nil && path != nil {
		query = `UPDATE profiles SET avatar_url = $url, avatar_path = $path, updated_on = time::now() WHERE user = type::record($user)`
		vars["url"] = *url
		vars["path"] = *path
	}
	if err := r.db.Execute(ctx, query, vars); err != nil {
		return fmt.Errorf("failed to set avatar: %w", err)
	}
	return nil
}

// UpdateSubscription applies a subscription change
func (r *ProfileRepository) UpdateSubscription(ctx context.Context, userID string, u service.SubscriptionUpdate) error {
	sets := newSetClause(map[string]interface{}{"user": userID})
	sets.set("subscription_status", u.Status)
	setIfPresent(sets, "subscription_plan", u.Plan)
	if u.EndsOn != nil {
		sets.setTime("subscription_ends_on", *u.EndsOn)
	}
	setIfPresent(sets, "stripe_customer_id", u.CustomerID)
	setIfPresent(sets, "stripe_subscription_id", u.SubscriptionID)
	sets.expr("updated_on = time::now()")

	query := "UPDATE profiles SET " + sets.String() + " WHERE user = type::record($user)"
	if err := r.db.Execute(ctx, query, sets.vars); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// ExpireSubscriptions marks subscriptions whose period ended before now as expired
func (r *ProfileRepository) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE profiles SET subscription_status = 'expired', updated_on = time::now()
		WHERE subscription_status IN ['active', 'past_due', 'cancelled']
			AND subscription_ends_on != NONE
			AND subscription_ends_on < <datetime>$now
		RETURN id
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"now": formatTime(now)})
	if err != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	return len(statementRows(result, 0)), nil
}

// CountActiveSubscriptions counts profiles with a running subscription
func (r *ProfileRepository) CountActiveSubscriptions(ctx context.Context) (int, error) {
	query := `SELECT count() AS count FROM profiles WHERE subscription_status IN ['active', 'past_due'] GROUP ALL`
	result, err := r.db.QueryOne(ctx, query, nil)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	m, _ := result.(map[string]interface{})
	return extractCountValue(m["count"]), nil
}
