package repository

import (
	"context"
	"fmt"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// PreferencesRepository handles buyer questionnaire answers
type PreferencesRepository struct {
	db database.Database
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(db database.Database) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

var preferencesLinks = map[string]string{"user": "user_id"}

// Get returns the user's saved preferences, if any
func (r *PreferencesRepository) Get(ctx context.Context, userID string) (*model.InvestorPreferences, error) {
	query := `SELECT * FROM investor_preferences WHERE user = type::record($user) LIMIT 1`
	prefs, _, err := queryOne[model.InvestorPreferences](ctx, r.db, query, map[string]interface{}{"user": userID}, preferencesLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

// Upsert stores the user's preferences, creating the row on first save
func (r *PreferencesRepository) Upsert(ctx context.Context, prefs *model.InvestorPreferences) (*model.InvestorPreferences, error) {
	sets := newSetClause(map[string]interface{}{"user": prefs.UserID})
	sets.set("categories", stringsOrEmpty(prefs.Categories))
	sets.set("business_models", stringsOrEmpty(prefs.BusinessModels))
	sets.set("budget_min", prefs.BudgetMin)
	sets.set("budget_max", prefs.BudgetMax)
	sets.set("min_mrr", prefs.MinMRR)
	setNullable(sets, "max_age_months", prefs.MaxAgeMonths)
	sets.set("tech_stack", stringsOrEmpty(prefs.TechStack))
	sets.set("deal_types", stringsOrEmpty(prefs.DealTypes))
	sets.set("timeline", prefs.Timeline)
	sets.set("involvement", prefs.Involvement)
	sets.set("ai_models", stringsOrEmpty(prefs.AIModels))
	sets.expr("updated_on = time::now()")

	existing, err := r.Get(ctx, prefs.UserID)
	if err != nil {
		return nil, err
	}

	var query string
	if existing == nil {
		query = "CREATE investor_preferences SET user = type::record($user), created_on = time::now(), " + sets.String()
	} else {
		query = "UPDATE investor_preferences SET " + sets.String() + " WHERE user = type::record($user) RETURN AFTER"
	}

	saved, _, err := queryOne[model.InvestorPreferences](ctx, r.db, query, sets.vars, preferencesLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	return saved, nil
}
