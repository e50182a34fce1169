package model

import "time"

// FeedbackRole is which side of the deal wrote the feedback
type FeedbackRole string

const (
	FeedbackFromBuyer  FeedbackRole = "buyer"
	FeedbackFromSeller FeedbackRole = "seller"
)

// TransactionFeedback is a rating left after a completed escrow
type TransactionFeedback struct {
	ID             string       `json:"id"`
	EscrowID       string       `json:"escrow_id"`
	ProductID      string       `json:"product_id"`
	AuthorID       string       `json:"author_id"`
	SubjectID      string       `json:"subject_id"`
	Role           FeedbackRole `json:"role"`
	Rating         int          `json:"rating"`
	Comment        *string      `json:"comment,omitempty"`
	WouldRecommend bool         `json:"would_recommend"`
	CreatedOn      time.Time    `json:"created_on"`
}

// FeedbackPrompt asks a party to rate a completed deal
type FeedbackPrompt struct {
	EscrowID       string       `json:"escrow_id"`
	ProductID      string       `json:"product_id"`
	ProductTitle   string       `json:"product_title"`
	CounterpartyID string       `json:"counterparty_id"`
	Role           FeedbackRole `json:"role"`
	CompletedOn    *time.Time   `json:"completed_on,omitempty"`
}

// FeedbackSummary aggregates the ratings a user received
type FeedbackSummary struct {
	UserID         string                 `json:"user_id"`
	Count          int                    `json:"count"`
	Average        float64                `json:"average"`
	RecommendCount int                    `json:"recommend_count"`
	Recent         []*TransactionFeedback `json:"recent"`
}

// SubmitFeedbackRequest rates the counterparty of a completed deal
type SubmitFeedbackRequest struct {
	Rating         int     `json:"rating" validate:"gte=1,lte=5"`
	Comment        *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
	WouldRecommend bool    `json:"would_recommend"`
}

// Validate validates the submit feedback request
func (r *SubmitFeedbackRequest) Validate() []FieldError {
	return validateStruct(r)
}
