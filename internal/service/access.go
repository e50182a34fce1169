package service

import (
	"time"

	"github.com/forgo/exitlane/api/internal/model"
)

// Viewer is who is looking at a listing
type Viewer struct {
	UserID     string // empty when anonymous
	IsAdmin    bool
	Subscribed bool
	NDASigned  bool
}

// ComputeAccess decides how much of a listing the viewer may see.
// Owners and admins see everything. A subscription opens the financials,
// and the confidential fields too unless the listing demands an NDA, in
// which case the signature is also needed.
func ComputeAccess(p *model.Product, v Viewer) model.AccessLevel {
	switch {
	case v.IsAdmin || (v.UserID != "" && v.UserID == p.SellerID):
		return model.AccessFull
	case !v.Subscribed:
		return model.AccessPublic
	case !p.RequiresNDA || v.NDASigned:
		return model.AccessNDA
	default:
		return model.AccessSubscriber
	}
}

// Redact returns a copy of the listing with the fields above level removed
func Redact(p *model.Product, level model.AccessLevel) *model.Product {
	out := *p
	out.TechStack = append([]string(nil), p.TechStack...)
	out.AIModels = append([]string(nil), p.AIModels...)

	if level == model.AccessFull {
		return &out
	}

	// Moderation details are for the owner
	out.AdminFeedback = nil
	out.ReviewedByID = nil
	out.ReviewedOn = nil
	out.SubmittedOn = nil
	out.Package = nil

	if level == model.AccessPublic {
		out.MonthlyProfit = nil
		out.MonthlyVisitors = nil
		out.Customers = nil
	}
	if level == model.AccessPublic || level == model.AccessSubscriber {
		out.WebsiteURL = nil
		out.ConfidentialDetails = nil
		out.FinancialsURL = nil
	}
	return &out
}

// BuildListingView redacts a listing for one viewer and attaches the auction
// countdown when it is an auction.
func BuildListingView(p *model.Product, v Viewer, now time.Time) *model.ListingView {
	level := ComputeAccess(p, v)
	view := &model.ListingView{
		Listing:            Redact(p, level),
		Access:             level,
		FinancialsLocked:   level == model.AccessPublic,
		ConfidentialLocked: level == model.AccessPublic || level == model.AccessSubscriber,
		NDASigned:          v.NDASigned,
	}
	if p.IsAuction() {
		view.AuctionState = AuctionTimer(p.Auction, now)
	}
	return view
}
