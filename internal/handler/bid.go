package handler

import (
	"context"
	"net/http"

	"github.com/forgo/exitlane/api/internal/middleware"
	"github.com/forgo/exitlane/api/internal/model"
)

// BidService is the offer surface the bid endpoints need
type BidService interface {
	PlaceBid(ctx context.Context, buyerID, productID string, req *model.PlaceBidRequest) (*model.PlaceBidResponse, error)
	AcceptBid(ctx context.Context, sellerID, bidID string) (*model.Bid, error)
	RejectBid(ctx context.Context, sellerID, bidID string) (*model.Bid, error)
	WithdrawBid(ctx context.Context, buyerID, bidID string) (*model.Bid, error)
	ListBidsForListing(ctx context.Context, userID string, isAdmin bool, productID string) ([]*model.Bid, error)
	ListMyBids(ctx context.Context, buyerID string) ([]*model.Bid, error)
}

// BidHandler handles offer and auction bid endpoints
type BidHandler struct {
	bidService BidService
}

// NewBidHandler creates a new bid handler
func NewBidHandler(bidService BidService) *BidHandler {
	return &BidHandler{bidService: bidService}
}

func bidLinks(bid *model.Bid) map[string]string {
	links := map[string]string{
		"self":    "/v1/bids/" + bid.ID,
		"listing": "/v1/listings/" + bid.ProductID,
	}
	if bid.EscrowID != nil {
		links["escrow"] = "/v1/escrow/" + *bid.EscrowID
	}
	return links
}

// Place handles POST /v1/listings/{listingId}/bids.
// The response carries the client secret for confirming the escrow hold.
func (h *BidHandler) Place(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.PlaceBidRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.bidService.PlaceBid(r.Context(), userID, r.PathValue("listingId"), &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "place bid"))
		return
	}

	WriteData(w, http.StatusCreated, result, bidLinks(result.Bid))
}

// ListForListing handles GET /v1/listings/{listingId}/bids (owner or admin)
func (h *BidHandler) ListForListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	bids, err := h.bidService.ListBidsForListing(r.Context(), userID, middleware.IsAdmin(r.Context()), r.PathValue("listingId"))
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list bids"))
		return
	}

	WriteCollection(w, http.StatusOK, bids, nil, nil)
}

// ListMine handles GET /v1/bids/mine
func (h *BidHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	bids, err := h.bidService.ListMyBids(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list bids"))
		return
	}

	WriteCollection(w, http.StatusOK, bids, nil, map[string]string{
		"self": "/v1/bids/mine",
	})
}

// Accept handles POST /v1/bids/{bidId}/accept (seller)
func (h *BidHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "accept bid", h.bidService.AcceptBid)
}

// Reject handles POST /v1/bids/{bidId}/reject (seller)
func (h *BidHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "reject bid", h.bidService.RejectBid)
}

// Withdraw handles POST /v1/bids/{bidId}/withdraw (buyer)
func (h *BidHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "withdraw bid", h.bidService.WithdrawBid)
}

func (h *BidHandler) respond(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, userID, bidID string) (*model.Bid, error)) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	bid, err := fn(r.Context(), userID, r.PathValue("bidId"))
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, op))
		return
	}

	WriteData(w, http.StatusOK, bid, bidLinks(bid))
}
