package model

import "strings"

// ModerationDecision is an admin verdict on a listing under review
type ModerationDecision string

const (
	DecisionApprove ModerationDecision = "approve"
	DecisionReject  ModerationDecision = "reject"
)

// Constraints
const (
	MaxFeedbackLength = 2000
)

// ModerateListingRequest approves or rejects a listing.
// Rejection needs feedback for the seller; approval does not.
type ModerateListingRequest struct {
	Decision ModerationDecision `json:"decision"`
	Feedback string             `json:"feedback,omitempty"`
}

// Validate validates the moderation request
func (r *ModerateListingRequest) Validate() []FieldError {
	var errors []FieldError
	r.Feedback = strings.TrimSpace(r.Feedback)

	switch r.Decision {
	case DecisionApprove:
	case DecisionReject:
		if r.Feedback == "" {
			errors = append(errors, FieldError{Field: "feedback", Message: "feedback is required when rejecting a listing"})
		}
	default:
		errors = append(errors, FieldError{Field: "decision", Message: "decision must be 'approve' or 'reject'"})
	}
	if len(r.Feedback) > MaxFeedbackLength {
		errors = append(errors, FieldError{Field: "feedback", Message: "feedback must be 2000 characters or less"})
	}
	return errors
}

// FeatureListingRequest toggles a featured placement
type FeatureListingRequest struct {
	Featured bool `json:"featured"`
	Days     int  `json:"days" validate:"gte=0,lte=365"`
}

// Validate validates the feature request
func (r *FeatureListingRequest) Validate() []FieldError {
	return validateStruct(r)
}

// AdminStats is the moderation dashboard summary
type AdminStats struct {
	ListingsByStatus    map[string]int `json:"listings_by_status"`
	EscrowsByStatus     map[string]int `json:"escrows_by_status"`
	PendingReview       int            `json:"pending_review"`
	ActiveSubscriptions int            `json:"active_subscriptions"`
	CompletedVolume     int64          `json:"completed_volume"`
	ValuationLeads      int            `json:"valuation_leads"`
	BuyerLeads          int            `json:"buyer_leads"`
}
