package handler

import (
	"context"
	"net/http"

	"github.com/forgo/exitlane/api/internal/middleware"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/service"
)

// Match page sizes
const (
	DefaultMatchLimit = 10
	MaxMatchLimit     = 50
)

// MatchingService is the buyer matching surface
type MatchingService interface {
	GetPreferences(ctx context.Context, userID string) (*model.InvestorPreferences, error)
	SavePreferences(ctx context.Context, userID string, a *model.PreferencesAnswers) (*model.InvestorPreferences, error)
	SubmitBuyerLead(ctx context.Context, req *model.SubmitBuyerLeadRequest, userID *string) (*model.BuyerMatchingLead, error)
	MatchListings(ctx context.Context, viewer service.Viewer, limit int) ([]*model.ListingMatch, error)
}

// MatchingHandler handles investor preferences and listing matches
type MatchingHandler struct {
	matchingService MatchingService
}

// NewMatchingHandler creates a new matching handler
func NewMatchingHandler(matchingService MatchingService) *MatchingHandler {
	return &MatchingHandler{matchingService: matchingService}
}

var preferenceLinks = map[string]string{
	"self":    "/v1/preferences",
	"matches": "/v1/matches",
}

// GetPreferences handles GET /v1/preferences
func (h *MatchingHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	prefs, err := h.matchingService.GetPreferences(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get preferences"))
		return
	}
	if prefs == nil {
		WriteError(w, model.NewNotFoundError("preferences"))
		return
	}

	WriteData(w, http.StatusOK, prefs, preferenceLinks)
}

// SavePreferences handles PUT /v1/preferences
func (h *MatchingHandler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		WriteError(w, model.NewMethodNotAllowedError("PUT"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var answers model.PreferencesAnswers
	if !decodeAndValidate(w, r, &answers) {
		return
	}

	prefs, err := h.matchingService.SavePreferences(r.Context(), userID, &answers)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "save preferences"))
		return
	}

	WriteData(w, http.StatusOK, prefs, preferenceLinks)
}

// Matches handles GET /v1/matches?limit=
func (h *MatchingHandler) Matches(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	matches, err := h.matchingService.MatchListings(r.Context(), viewerFrom(r), parseLimit(r, DefaultMatchLimit, MaxMatchLimit))
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "match listings"))
		return
	}

	WriteCollection(w, http.StatusOK, matches, nil, preferenceLinks)
}

// SubmitLead handles POST /v1/matching/leads. Works without an account.
func (h *MatchingHandler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}

	var req model.SubmitBuyerLeadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var userID *string
	if id := middleware.GetUserID(r.Context()); id != "" {
		userID = &id
	}

	lead, err := h.matchingService.SubmitBuyerLead(r.Context(), &req, userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "submit buyer lead"))
		return
	}

	WriteData(w, http.StatusCreated, lead, nil)
}
