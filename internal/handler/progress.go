package handler

import (
	"context"
	"net/http"

	"github.com/forgo/exitlane/api/internal/model"
)

// ProgressService folds browser-stored progress into an account
type ProgressService interface {
	MergeProgress(ctx context.Context, userID string, req *model.MergeProgressRequest) (*model.MergeProgressResult, error)
}

// ProgressHandler handles the post-login progress merge
type ProgressHandler struct {
	progressService ProgressService
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progressService ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// Merge handles POST /v1/progress/merge
func (h *ProgressHandler) Merge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.MergeProgressRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.progressService.MergeProgress(r.Context(), userID, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "merge progress"))
		return
	}

	WriteData(w, http.StatusOK, result, map[string]string{
		"preferences": "/v1/preferences",
		"valuations":  "/v1/valuation/leads/mine",
	})
}
