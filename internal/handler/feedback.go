package handler

import (
	"context"
	"net/http"

	"github.com/forgo/exitlane/api/internal/model"
)

// FeedbackService is the post-deal feedback surface
type FeedbackService interface {
	ListFeedbackPrompts(ctx context.Context, userID string) ([]*model.FeedbackPrompt, error)
	SubmitFeedback(ctx context.Context, userID, escrowID string, req *model.SubmitFeedbackRequest) (*model.TransactionFeedback, error)
	ListFeedbackForUser(ctx context.Context, userID string) (*model.FeedbackSummary, error)
}

// FeedbackHandler handles transaction feedback endpoints
type FeedbackHandler struct {
	feedbackService FeedbackService
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(feedbackService FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// Prompts handles GET /v1/feedback/prompts - completed deals still awaiting
// the caller's feedback
func (h *FeedbackHandler) Prompts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	prompts, err := h.feedbackService.ListFeedbackPrompts(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list feedback prompts"))
		return
	}

	WriteCollection(w, http.StatusOK, prompts, nil, map[string]string{
		"self": "/v1/feedback/prompts",
	})
}

// Submit handles POST /v1/escrow/{escrowId}/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	escrowID := r.PathValue("escrowId")

	var req model.SubmitFeedbackRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	fb, err := h.feedbackService.SubmitFeedback(r.Context(), userID, escrowID, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "submit feedback"))
		return
	}

	WriteData(w, http.StatusCreated, fb, map[string]string{
		"escrow": "/v1/escrow/" + escrowID,
	})
}

// ForUser handles GET /v1/users/{userId}/feedback
func (h *FeedbackHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		WriteError(w, model.NewBadRequestError("userId is required"))
		return
	}

	summary, err := h.feedbackService.ListFeedbackForUser(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list feedback"))
		return
	}

	WriteData(w, http.StatusOK, summary, map[string]string{
		"self": "/v1/users/" + userID + "/feedback",
	})
}
