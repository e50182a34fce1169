package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// LeadRepository handles valuation and buyer matching leads
type LeadRepository struct {
	db database.Database
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db database.Database) *LeadRepository {
	return &LeadRepository{db: db}
}

var leadLinks = map[string]string{"user": "user_id"}

// CreateValuationLead stores a completed valuation quiz
func (r *LeadRepository) CreateValuationLead(ctx context.Context, lead *model.ValuationLead) error {
	answers, err := toObject(lead.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	result, err := toObject(lead.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	query := `
		CREATE valuation_leads SET
			email = $email,
			user = IF $user_id IS NOT NULL THEN type::record($user_id) ELSE NONE END,
			answers = $answers,
			result = $result,
			created_on = time::now()
	`
	vars := map[string]interface{}{
		"email":   normalizeEmail(lead.Email),
		"user_id": optional(lead.UserID),
		"answers": answers,
		"result":  result,
	}
	id, created, err := r.create(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("failed to create valuation lead: %w", err)
	}
	lead.ID = id
	lead.CreatedOn = created
	return nil
}

// CreateBuyerLead stores an anonymous buyer questionnaire completion
func (r *LeadRepository) CreateBuyerLead(ctx context.Context, lead *model.BuyerMatchingLead) error {
	answers, err := toObject(lead.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	query := `
		CREATE buyer_matching_leads SET
			email = $email,
			user = IF $user_id IS NOT NULL THEN type::record($user_id) ELSE NONE END,
			answers = $answers,
			created_on = time::now()
	`
	vars := map[string]interface{}{
		"email":   normalizeEmail(lead.Email),
		"user_id": optional(lead.UserID),
		"answers": answers,
	}
	id, created, err := r.create(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("failed to create buyer lead: %w", err)
	}
	lead.ID = id
	lead.CreatedOn = created
	return nil
}

func (r *LeadRepository) create(ctx context.Context, query string, vars map[string]interface{}) (string, time.Time, error) {
	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return "", time.Time{}, err
	}
	return createdID(result)
}

// LinkByEmail attaches unowned leads submitted with any of emails to the user.
// It returns how many valuation and buyer leads were linked.
func (r *LeadRepository) LinkByEmail(ctx context.Context, userID string, emails []string) (int, int, error) {
	if len(emails) == 0 {
		return 0, 0, nil
	}
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		normalized = append(normalized, normalizeEmail(e))
	}

	query := `
		UPDATE valuation_leads SET user = type::record($user) WHERE email IN $emails AND user IS NONE RETURN id;
		UPDATE buyer_matching_leads SET user = type::record($user) WHERE email IN $emails AND user IS NONE RETURN id;
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"user": userID, "emails": normalized})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to link leads: %w", err)
	}
	return len(statementRows(result, 0)), len(statementRows(result, 1)), nil
}

// ListValuationLeadsByUser returns the user's valuation leads, newest first
func (r *LeadRepository) ListValuationLeadsByUser(ctx context.Context, userID string) ([]*model.ValuationLead, error) {
	query := `SELECT * FROM valuation_leads WHERE user = type::record($user) ORDER BY created_on DESC`
	leads, err := queryMany[model.ValuationLead](ctx, r.db, query, map[string]interface{}{"user": userID}, leadLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list valuation leads: %w", err)
	}
	return leads, nil
}

// CountLeads returns the number of valuation and buyer leads
func (r *LeadRepository) CountLeads(ctx context.Context) (int, int, error) {
	valuation, err := r.count(ctx, "valuation_leads")
	if err != nil {
		return 0, 0, err
	}
	buyer, err := r.count(ctx, "buyer_matching_leads")
	if err != nil {
		return 0, 0, err
	}
	return valuation, buyer, nil
}

func (r *LeadRepository) count(ctx context.Context, table string) (int, error) {
	result, err := r.db.QueryOne(ctx, "SELECT count() AS count FROM type::table($table) GROUP ALL", map[string]interface{}{"table": table})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	m, _ := result.(map[string]interface{})
	return extractCountValue(m["count"]), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
