package handler

import (
	"context"
	"net/http"

	"github.com/forgo/exitlane/api/internal/model"
)

// ModerationService is the admin surface for listing review
type ModerationService interface {
	ListPendingListings(ctx context.Context, limit, offset int) ([]*model.Product, error)
	ModerateListing(ctx context.Context, adminID, id string, req *model.ModerateListingRequest) (*model.Product, error)
	FeatureListing(ctx context.Context, id string, req *model.FeatureListingRequest) (*model.Product, error)
	GetAdminStats(ctx context.Context) (*model.AdminStats, error)
}

// AdminHandler handles admin moderation endpoints. Routes are mounted
// behind middleware.AdminAuth.
type AdminHandler struct {
	moderationService ModerationService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(moderationService ModerationService) *AdminHandler {
	return &AdminHandler{moderationService: moderationService}
}

// PendingListings handles GET /v1/admin/listings/pending?limit=&offset=
func (h *AdminHandler) PendingListings(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, model.DefaultBrowseLimit, model.MaxBrowseLimit)
	offset := parseOffset(r)

	products, err := h.moderationService.ListPendingListings(r.Context(), limit, offset)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list pending listings"))
		return
	}

	page := &PaginationInfo{HasMore: len(products) == limit}
	if page.HasMore {
		next := offset + limit
		page.NextOffset = &next
	}

	WriteCollection(w, http.StatusOK, products, page, map[string]string{
		"self": "/v1/admin/listings/pending",
	})
}

// Moderate handles POST /v1/admin/listings/{listingId}/moderate
func (h *AdminHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("listingId")

	var req model.ModerateListingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	product, err := h.moderationService.ModerateListing(r.Context(), adminID, id, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "moderate listing"))
		return
	}

	WriteData(w, http.StatusOK, product, listingLinks(id))
}

// Feature handles POST /v1/admin/listings/{listingId}/feature
func (h *AdminHandler) Feature(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	id := r.PathValue("listingId")

	var req model.FeatureListingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	product, err := h.moderationService.FeatureListing(r.Context(), id, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "feature listing"))
		return
	}

	WriteData(w, http.StatusOK, product, listingLinks(id))
}

// Stats handles GET /v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.moderationService.GetAdminStats(r.Context())
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get admin stats"))
		return
	}

	WriteData(w, http.StatusOK, stats, nil)
}
