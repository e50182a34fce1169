package model

import "time"

// BidStatus is the state of an offer or auction bid
type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
	BidStatusExpired   BidStatus = "expired"
	BidStatusCompleted BidStatus = "completed"
)

// IsOpen reports whether the bid can still be accepted, rejected or withdrawn
func (s BidStatus) IsOpen() bool {
	return s == BidStatusPending
}

// Bid is a buyer's escrow-backed offer on a listing
type Bid struct {
	ID          string      `json:"id"`
	ProductID   string      `json:"product_id"`
	BuyerID     string      `json:"buyer_id"`
	SellerID    string      `json:"seller_id"`
	Amount      int64       `json:"amount"`
	Message     *string     `json:"message,omitempty"`
	Kind        ListingType `json:"kind"`
	Status      BidStatus   `json:"status"`
	BelowAsking bool        `json:"below_asking"`
	EscrowID    *string     `json:"escrow_id,omitempty"`
	CreatedOn   time.Time   `json:"created_on"`
	UpdatedOn   time.Time   `json:"updated_on"`
	RespondedOn *time.Time  `json:"responded_on,omitempty"`
}

// Constraints
const (
	MaxBidMessageLength = 2000
)

// PlaceBidRequest places an offer (buy now) or a bid (auction)
type PlaceBidRequest struct {
	Amount  int64   `json:"amount" validate:"gt=0"`
	Message *string `json:"message,omitempty" validate:"omitempty,max=2000"`
}

// Validate validates the place bid request
func (r *PlaceBidRequest) Validate() []FieldError {
	return validateStruct(r)
}

// PlaceBidResponse carries what the client needs to confirm the escrow hold
type PlaceBidResponse struct {
	Bid          *Bid               `json:"bid"`
	Escrow       *EscrowTransaction `json:"escrow"`
	ClientSecret string             `json:"client_secret"`
}
