package handler

import (
	"context"
	"net/http"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/service"
)

// ListingService is the listing surface the listing endpoints need
type ListingService interface {
	CreateListing(ctx context.Context, sellerID string, req *model.CreateListingRequest) (*model.Product, error)
	UpdateListing(ctx context.Context, userID, id string, req *model.UpdateListingRequest) (*model.Product, error)
	SubmitForReview(ctx context.Context, userID, id string) (*model.Product, error)
	WithdrawListing(ctx context.Context, userID, id string) (*model.Product, error)
	GetListing(ctx context.Context, viewer service.Viewer, id string) (*model.ListingView, error)
	ListMyListings(ctx context.Context, userID string) ([]*model.Product, error)
	BrowseListings(ctx context.Context, viewer service.Viewer, f *model.ListingFilter) (*model.ListingPage, error)
	SignNDA(ctx context.Context, userID, productID string, req *model.SignNDARequest) (*model.NDASignature, error)
}

// ListingHandler handles listing endpoints
type ListingHandler struct {
	listingService ListingService
}

// NewListingHandler creates a new listing handler
func NewListingHandler(listingService ListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

func listingLinks(id string) map[string]string {
	return map[string]string{
		"self":   "/v1/listings/" + id,
		"bids":   "/v1/listings/" + id + "/bids",
		"nda":    "/v1/listings/" + id + "/nda",
		"submit": "/v1/listings/" + id + "/submit",
	}
}

// Browse handles GET /v1/listings
func (h *ListingHandler) Browse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, model.NewMethodNotAllowedError("GET"))
		return
	}

	filter, errors := model.ParseListingFilter(r.URL.Query())
	if len(errors) > 0 {
		WriteError(w, model.NewValidationError(errors))
		return
	}

	page, err := h.listingService.BrowseListings(r.Context(), viewerFrom(r), filter)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "browse listings"))
		return
	}

	WriteCollection(w, http.StatusOK, page.Listings, &PaginationInfo{
		Cursor:  page.NextCursor,
		HasMore: page.NextCursor != "",
	}, map[string]string{
		"self": "/v1/listings",
	})
}

// Create handles POST /v1/listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CreateListingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	product, err := h.listingService.CreateListing(r.Context(), userID, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "create listing"))
		return
	}

	WriteData(w, http.StatusCreated, product, listingLinks(product.ID))
}

// ListMine handles GET /v1/listings/mine
func (h *ListingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	products, err := h.listingService.ListMyListings(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list listings"))
		return
	}

	WriteCollection(w, http.StatusOK, products, nil, map[string]string{
		"self": "/v1/listings/mine",
	})
}

// Get handles GET /v1/listings/{listingId}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("listingId")
	if id == "" {
		WriteError(w, model.NewBadRequestError("listingId is required"))
		return
	}

	view, err := h.listingService.GetListing(r.Context(), viewerFrom(r), id)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get listing"))
		return
	}

	WriteData(w, http.StatusOK, view, listingLinks(id))
}

// Update handles PATCH /v1/listings/{listingId}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("listingId")

	var req model.UpdateListingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	product, err := h.listingService.UpdateListing(r.Context(), userID, id, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "update listing"))
		return
	}

	WriteData(w, http.StatusOK, product, listingLinks(id))
}

// Submit handles POST /v1/listings/{listingId}/submit
func (h *ListingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit listing", h.listingService.SubmitForReview)
}

// Withdraw handles POST /v1/listings/{listingId}/withdraw
func (h *ListingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "withdraw listing", h.listingService.WithdrawListing)
}

func (h *ListingHandler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, userID, id string) (*model.Product, error)) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("listingId")

	product, err := fn(r.Context(), userID, id)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, op))
		return
	}

	WriteData(w, http.StatusOK, product, listingLinks(id))
}

// SignNDA handles POST /v1/listings/{listingId}/nda
func (h *ListingHandler) SignNDA(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("listingId")

	var req model.SignNDARequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sig, err := h.listingService.SignNDA(r.Context(), userID, id, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "sign nda"))
		return
	}

	WriteData(w, http.StatusCreated, sig, listingLinks(id))
}
