package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// FeedbackRepository handles post-deal feedback
type FeedbackRepository struct {
	db database.Database
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db database.Database) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

var feedbackLinks = map[string]string{
	"escrow":  "escrow_id",
	"product": "product_id",
	"author":  "author_id",
	"subject": "subject_id",
}

// Create stores feedback. A second feedback by the same author on an escrow is a duplicate.
func (r *FeedbackRepository) Create(ctx context.Context, fb *model.TransactionFeedback) error {
	query := `
		CREATE transaction_feedback SET
			escrow = type::record($escrow_id),
			product = type::record($product_id),
			author = type::record($author_id),
			subject = type::record($subject_id),
			role = $role,
			rating = $rating,
			comment = IF $comment IS NOT NULL THEN $comment ELSE NONE END,
			would_recommend = $would_recommend,
			created_on = time::now()
	`
	vars := map[string]interface{}{
		"escrow_id":       fb.EscrowID,
		"product_id":      fb.ProductID,
		"author_id":       fb.AuthorID,
		"subject_id":      fb.SubjectID,
		"role":            fb.Role,
		"rating":          fb.Rating,
		"comment":         optional(fb.Comment),
		"would_recommend": fb.WouldRecommend,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: feedback already submitted", database.ErrDuplicate)
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}

	id, created, err := createdID(result)
	if err != nil {
		return err
	}
	fb.ID = id
	fb.CreatedOn = created
	return nil
}

// GetByEscrowAuthor returns the author's feedback on an escrow, if any
func (r *FeedbackRepository) GetByEscrowAuthor(ctx context.Context, escrowID, authorID string) (*model.TransactionFeedback, error) {
	query := `SELECT * FROM transaction_feedback WHERE escrow = type::record($escrow) AND author = type::record($author) LIMIT 1`
	fb, _, err := queryOne[model.TransactionFeedback](ctx, r.db, query, map[string]interface{}{"escrow": escrowID, "author": authorID}, feedbackLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return fb, nil
}

// ListForSubject returns the feedback a user received, newest first
func (r *FeedbackRepository) ListForSubject(ctx context.Context, subjectID string, limit int) ([]*model.TransactionFeedback, error) {
	query := `SELECT * FROM transaction_feedback WHERE subject = type::record($subject) ORDER BY created_on DESC LIMIT $limit`
	items, err := queryMany[model.TransactionFeedback](ctx, r.db, query, map[string]interface{}{"subject": subjectID, "limit": limit}, feedbackLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return items, nil
}

// SummaryForSubject aggregates the ratings a user received
func (r *FeedbackRepository) SummaryForSubject(ctx context.Context, subjectID string) (count int, average float64, recommend int, err error) {
	query := `
		SELECT count() AS count, math::mean(rating) AS average, count(would_recommend = true) AS recommend
		FROM transaction_feedback
		WHERE subject = type::record($subject)
		GROUP ALL
	`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"subject": subjectID})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, 0, 0, nil
		}
		return 0, 0, 0, fmt.Errorf("failed to summarize feedback: %w", err)
	}
	m, _ := result.(map[string]interface{})
	switch v := m["average"].(type) {
	case float64:
		average = v
	case float32:
		average = float64(v)
	default:
		average = float64(extractInt64(v))
	}
	return extractCountValue(m["count"]), average, extractCountValue(m["recommend"]), nil
}

// ListPrompts returns the completed deals the user has not rated yet
func (r *FeedbackRepository) ListPrompts(ctx context.Context, userID string) ([]*model.FeedbackPrompt, error) {
	query := `
		SELECT id, product, product.title AS product_title, buyer, seller, completed_on
		FROM escrow_transactions
		WHERE status = 'completed'
			AND (buyer = type::record($user) OR seller = type::record($user))
			AND count((SELECT id FROM transaction_feedback WHERE escrow = $parent.id AND author = type::record($user))) = 0
		ORDER BY completed_on DESC
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback prompts: %w", err)
	}

	rows := statementRows(result, 0)
	prompts := make([]*model.FeedbackPrompt, 0, len(rows))
	for _, row := range rows {
		data, err := rowMap(row, nil)
		if err != nil {
			return nil, err
		}
		buyer, seller := getString(data, "buyer"), getString(data, "seller")
		prompt := &model.FeedbackPrompt{
			EscrowID:     getString(data, "id"),
			ProductID:    getString(data, "product"),
			ProductTitle: getString(data, "product_title"),
		}
		if buyer == userID {
			prompt.Role = model.FeedbackFromBuyer
			prompt.CounterpartyID = seller
		} else {
			prompt.Role = model.FeedbackFromSeller
			prompt.CounterpartyID = buyer
		}
		if t, ok := data["completed_on"].(time.Time); ok {
			prompt.CompletedOn = &t
		}
		prompts = append(prompts, prompt)
	}
	return prompts, nil
}
