package handler

import (
	"context"
	"net/http"

	"github.com/forgo/exitlane/api/internal/middleware"
	"github.com/forgo/exitlane/api/internal/model"
)

// ValuationService prices a business from the valuation quiz
type ValuationService interface {
	Calculate(a *model.ValuationAnswers) *model.ValuationResult
	SubmitLead(ctx context.Context, req *model.SubmitValuationLeadRequest, userID *string) (*model.ValuationLead, error)
	ListMine(ctx context.Context, userID string) ([]*model.ValuationLead, error)
}

// ValuationHandler handles the valuation calculator
type ValuationHandler struct {
	valuationService ValuationService
}

// NewValuationHandler creates a new valuation handler
func NewValuationHandler(valuationService ValuationService) *ValuationHandler {
	return &ValuationHandler{valuationService: valuationService}
}

// Calculate handles POST /v1/valuation/calculate. Nothing is stored.
func (h *ValuationHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}

	var answers model.ValuationAnswers
	if !decodeAndValidate(w, r, &answers) {
		return
	}

	WriteData(w, http.StatusOK, h.valuationService.Calculate(&answers), map[string]string{
		"leads": "/v1/valuation/leads",
	})
}

// SubmitLead handles POST /v1/valuation/leads. Anonymous callers are allowed;
// a signed-in caller's lead is linked to their account.
func (h *ValuationHandler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}

	var req model.SubmitValuationLeadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var userID *string
	if id := middleware.GetUserID(r.Context()); id != "" {
		userID = &id
	}

	lead, err := h.valuationService.SubmitLead(r.Context(), &req, userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "submit valuation"))
		return
	}

	WriteData(w, http.StatusCreated, lead, nil)
}

// ListMine handles GET /v1/valuation/leads/mine
func (h *ValuationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	leads, err := h.valuationService.ListMine(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list valuations"))
		return
	}

	WriteCollection(w, http.StatusOK, leads, nil, map[string]string{
		"self": "/v1/valuation/leads/mine",
	})
}
