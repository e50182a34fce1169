package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ListingStatus is the lifecycle state of a product listing
type ListingStatus string

const (
	ListingStatusDraft         ListingStatus = "draft"
	ListingStatusPendingReview ListingStatus = "pending_review"
	ListingStatusApproved      ListingStatus = "approved"
	ListingStatusRejected      ListingStatus = "rejected"
	ListingStatusUnderOffer    ListingStatus = "under_offer"
	ListingStatusSold          ListingStatus = "sold"
	ListingStatusWithdrawn     ListingStatus = "withdrawn"
	ListingStatusEnded         ListingStatus = "ended" // auction closed without a sale
)

// IsEditable reports whether the seller may still change the listing
func (s ListingStatus) IsEditable() bool {
	return s == ListingStatusDraft || s == ListingStatusRejected || s == ListingStatusApproved
}

// IsPubliclyVisible reports whether the listing shows up in browse
func (s ListingStatus) IsPubliclyVisible() bool {
	return s == ListingStatusApproved || s == ListingStatusUnderOffer
}

// ListingType is how a listing sells
type ListingType string

const (
	ListingTypeBuyNow  ListingType = "buy_now"
	ListingTypeAuction ListingType = "auction"
)

// Categories a listing can be filed under
var ListingCategories = []string{
	"ai_assistant", "content_generation", "computer_vision", "data_analytics",
	"developer_tools", "marketing", "productivity", "customer_support", "other",
}

// BusinessModels a listing can declare
var BusinessModels = []string{"subscription", "usage_based", "one_time", "freemium", "marketplace"}

// AuctionSettings configures a Dutch auction. Prices are cents.
// A zero DropAmount means the drop is derived so the price reaches the
// reserve at EndsAt.
type AuctionSettings struct {
	StartPrice       int64     `json:"start_price"`
	ReservePrice     int64     `json:"reserve_price"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	DropIntervalMins int       `json:"drop_interval_minutes"`
	DropAmount       int64     `json:"drop_amount,omitempty"`
}

// Product is a business listed for sale
type Product struct {
	ID            string   `json:"id"`
	SellerID      string   `json:"seller_id"`
	Title         string   `json:"title"`
	Tagline       *string  `json:"tagline,omitempty"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	BusinessModel string   `json:"business_model"`
	TechStack     []string `json:"tech_stack"`
	AIModels      []string `json:"ai_models"`
	AgeMonths     int      `json:"age_months"`

	MonthlyRevenue int64 `json:"monthly_revenue"`
	AskingPrice    int64 `json:"asking_price"`

	// Financial metrics behind the subscription paywall
	MonthlyProfit   *int64 `json:"monthly_profit,omitempty"`
	MonthlyVisitors *int   `json:"monthly_visitors,omitempty"`
	Customers       *int   `json:"customers,omitempty"`

	// Confidential fields behind the NDA
	RequiresNDA         bool    `json:"requires_nda"`
	WebsiteURL          *string `json:"website_url,omitempty"`
	ConfidentialDetails *string `json:"confidential_details,omitempty"`
	FinancialsURL       *string `json:"financials_url,omitempty"`

	ListingType ListingType      `json:"listing_type"`
	Auction     *AuctionSettings `json:"auction,omitempty"`

	Status        ListingStatus `json:"status"`
	AdminFeedback *string       `json:"admin_feedback,omitempty"`
	ReviewedByID  *string       `json:"reviewed_by_id,omitempty"`
	ReviewedOn    *time.Time    `json:"reviewed_on,omitempty"`
	SubmittedOn   *time.Time    `json:"submitted_on,omitempty"`

	Package       *string    `json:"package,omitempty"`
	Featured      bool       `json:"featured"`
	FeaturedUntil *time.Time `json:"featured_until,omitempty"`
	ViewCount     int        `json:"view_count"`

	WinningBidID     *string    `json:"winning_bid_id,omitempty"`
	ResultNotifiedOn *time.Time `json:"result_notified_on,omitempty"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// IsAuction reports whether the listing is a Dutch auction
func (p *Product) IsAuction() bool {
	return p.ListingType == ListingTypeAuction && p.Auction != nil
}

// IsFeatured reports whether the featured placement is still running at now
func (p *Product) IsFeatured(now time.Time) bool {
	return p.Featured && (p.FeaturedUntil == nil || p.FeaturedUntil.After(now))
}

// AccessLevel is how much of a listing the viewer may see
type AccessLevel string

const (
	AccessPublic     AccessLevel = "public"     // card fields only
	AccessSubscriber AccessLevel = "subscriber" // plus financial metrics
	AccessNDA        AccessLevel = "nda"        // plus confidential fields
	AccessFull       AccessLevel = "full"       // owner or admin
)

// ListingView is a listing redacted for one viewer
type ListingView struct {
	Listing            *Product      `json:"listing"`
	Access             AccessLevel   `json:"access"`
	FinancialsLocked   bool          `json:"financials_locked"`
	ConfidentialLocked bool          `json:"confidential_locked"`
	NDASigned          bool          `json:"nda_signed"`
	AuctionState       *AuctionState `json:"auction_state,omitempty"`
}

// AuctionPhase is where a Dutch auction is in its schedule
type AuctionPhase string

const (
	AuctionUpcoming AuctionPhase = "upcoming"
	AuctionLive     AuctionPhase = "live"
	AuctionEnded    AuctionPhase = "ended"
)

// AuctionState is the countdown and price display of a Dutch auction at a moment
type AuctionState struct {
	Phase           AuctionPhase `json:"phase"`
	CurrentPrice    int64        `json:"current_price"`
	NextPrice       int64        `json:"next_price"`
	ReservePrice    int64        `json:"reserve_price"`
	NextDropAt      *time.Time   `json:"next_drop_at,omitempty"`
	SecondsToDrop   int64        `json:"seconds_to_drop"`
	SecondsLeft     int64        `json:"seconds_left"`
	PercentElapsed  float64      `json:"percent_elapsed"`
	AtReserve       bool         `json:"at_reserve"`
	DropAmount      int64        `json:"drop_amount"`
	DropIntervalSec int64        `json:"drop_interval_seconds"`
}

// Constraints
const (
	MaxTitleLength       = 120
	MaxTaglineLength     = 200
	MaxDescriptionLength = 10000
	DefaultBrowseLimit   = 24
	MaxBrowseLimit       = 100
)

// AuctionSettingsRequest is the seller's auction configuration
type AuctionSettingsRequest struct {
	StartPrice       int64  `json:"start_price" validate:"gt=0"`
	ReservePrice     int64  `json:"reserve_price" validate:"gte=0"`
	StartsAt         string `json:"starts_at,omitempty"`
	DurationDays     int    `json:"duration_days" validate:"gte=1,lte=30"`
	DropIntervalMins int    `json:"drop_interval_minutes" validate:"gte=5,lte=1440"`
	DropAmount       int64  `json:"drop_amount" validate:"gte=0"`
}

// Validate checks cross-field auction rules
func (r *AuctionSettingsRequest) Validate() []FieldError {
	var errors []FieldError
	if r.ReservePrice >= r.StartPrice && r.StartPrice > 0 {
		errors = append(errors, FieldError{Field: "auction.reserve_price", Message: "reserve_price must be below start_price"})
	}
	if r.StartsAt != "" {
		if _, err := time.Parse(time.RFC3339, r.StartsAt); err != nil {
			errors = append(errors, FieldError{Field: "auction.starts_at", Message: "starts_at must be an RFC 3339 timestamp"})
		}
	}
	return errors
}

// ToSettings resolves the request into stored settings, starting at now when no start is given
func (r *AuctionSettingsRequest) ToSettings(now time.Time) (*AuctionSettings, error) {
	start := now
	if r.StartsAt != "" {
		t, err := time.Parse(time.RFC3339, r.StartsAt)
		if err != nil {
			return nil, fmt.Errorf("parse starts_at: %w", err)
		}
		start = t
	}
	return &AuctionSettings{
		StartPrice:       r.StartPrice,
		ReservePrice:     r.ReservePrice,
		StartsAt:         start.UTC(),
		EndsAt:           start.UTC().Add(time.Duration(r.DurationDays) * 24 * time.Hour),
		DropIntervalMins: r.DropIntervalMins,
		DropAmount:       r.DropAmount,
	}, nil
}

// CreateListingRequest creates a draft listing
type CreateListingRequest struct {
	Title               string                  `json:"title" validate:"required,min=5,max=120"`
	Tagline             *string                 `json:"tagline,omitempty" validate:"omitempty,max=200"`
	Description         string                  `json:"description" validate:"required,min=20,max=10000"`
	Category            string                  `json:"category" validate:"required,oneof=ai_assistant content_generation computer_vision data_analytics developer_tools marketing productivity customer_support other"`
	BusinessModel       string                  `json:"business_model" validate:"required,oneof=subscription usage_based one_time freemium marketplace"`
	TechStack           []string                `json:"tech_stack,omitempty" validate:"max=20,dive,min=1,max=40"`
	AIModels            []string                `json:"ai_models,omitempty" validate:"max=10,dive,min=1,max=40"`
	AgeMonths           int                     `json:"age_months" validate:"gte=0,lte=600"`
	MonthlyRevenue      int64                   `json:"monthly_revenue" validate:"gte=0"`
	MonthlyProfit       int64                   `json:"monthly_profit"`
	MonthlyVisitors     int                     `json:"monthly_visitors" validate:"gte=0"`
	Customers           int                     `json:"customers" validate:"gte=0"`
	AskingPrice         int64                   `json:"asking_price" validate:"gte=0"`
	ListingType         string                  `json:"listing_type" validate:"required,oneof=buy_now auction"`
	Auction             *AuctionSettingsRequest `json:"auction,omitempty"`
	RequiresNDA         bool                    `json:"requires_nda"`
	WebsiteURL          *string                 `json:"website_url,omitempty" validate:"omitempty,url"`
	ConfidentialDetails *string                 `json:"confidential_details,omitempty" validate:"omitempty,max=10000"`
	FinancialsURL       *string                 `json:"financials_url,omitempty" validate:"omitempty,url"`
}

// Validate validates the create listing request
func (r *CreateListingRequest) Validate() []FieldError {
	errors := validateStruct(r)

	switch ListingType(r.ListingType) {
	case ListingTypeBuyNow:
		if r.AskingPrice <= 0 {
			errors = append(errors, FieldError{Field: "asking_price", Message: "asking_price is required for buy now listings"})
		}
		if r.Auction != nil {
			errors = append(errors, FieldError{Field: "auction", Message: "auction settings are only allowed on auction listings"})
		}
	case ListingTypeAuction:
		if r.Auction == nil {
			errors = append(errors, FieldError{Field: "auction", Message: "auction settings are required for auction listings"})
		} else {
			errors = append(errors, r.Auction.Validate()...)
		}
	}
	return errors
}

// UpdateListingRequest edits a listing. Nil fields are left unchanged.
type UpdateListingRequest struct {
	Title               *string                 `json:"title,omitempty" validate:"omitempty,min=5,max=120"`
	Tagline             *string                 `json:"tagline,omitempty" validate:"omitempty,max=200"`
	Description         *string                 `json:"description,omitempty" validate:"omitempty,min=20,max=10000"`
	Category            *string                 `json:"category,omitempty" validate:"omitempty,oneof=ai_assistant content_generation computer_vision data_analytics developer_tools marketing productivity customer_support other"`
	BusinessModel       *string                 `json:"business_model,omitempty" validate:"omitempty,oneof=subscription usage_based one_time freemium marketplace"`
	TechStack           []string                `json:"tech_stack,omitempty" validate:"omitempty,max=20,dive,min=1,max=40"`
	AIModels            []string                `json:"ai_models,omitempty" validate:"omitempty,max=10,dive,min=1,max=40"`
	AgeMonths           *int                    `json:"age_months,omitempty" validate:"omitempty,gte=0,lte=600"`
	MonthlyRevenue      *int64                  `json:"monthly_revenue,omitempty" validate:"omitempty,gte=0"`
	MonthlyProfit       *int64                  `json:"monthly_profit,omitempty"`
	MonthlyVisitors     *int                    `json:"monthly_visitors,omitempty" validate:"omitempty,gte=0"`
	Customers           *int                    `json:"customers,omitempty" validate:"omitempty,gte=0"`
	AskingPrice         *int64                  `json:"asking_price,omitempty" validate:"omitempty,gt=0"`
	Auction             *AuctionSettingsRequest `json:"auction,omitempty"`
	RequiresNDA         *bool                   `json:"requires_nda,omitempty"`
	WebsiteURL          *string                 `json:"website_url,omitempty" validate:"omitempty,url"`
	ConfidentialDetails *string                 `json:"confidential_details,omitempty" validate:"omitempty,max=10000"`
	FinancialsURL       *string                 `json:"financials_url,omitempty" validate:"omitempty,url"`
}

// Validate validates the update listing request
func (r *UpdateListingRequest) Validate() []FieldError {
	errors := validateStruct(r)
	if r.Auction != nil {
		errors = append(errors, r.Auction.Validate()...)
	}
	return errors
}

// IsMaterial reports whether the update touches fields a moderator must re-check
func (r *UpdateListingRequest) IsMaterial() bool {
	return r.Title != nil || r.Description != nil || r.Category != nil ||
		r.MonthlyRevenue != nil || r.MonthlyProfit != nil || r.AskingPrice != nil ||
		r.Auction != nil || r.WebsiteURL != nil || r.FinancialsURL != nil
}

// ============================================================================
// Browse filter
// ============================================================================

// ListingKind is the browse toggle between sale formats.
// Buy Now and Auctions are mutually exclusive: at most one is on.
type ListingKind string

const (
	ListingKindAll     ListingKind = "all"
	ListingKindBuyNow  ListingKind = "buy_now"
	ListingKindAuction ListingKind = "auction"
)

// Toggle flips the given format. Turning one on turns the other off;
// turning the active one off returns to all.
func (k ListingKind) Toggle(t ListingType) ListingKind {
	if k == ListingKind(t) {
		return ListingKindAll
	}
	return ListingKind(t)
}

// BuyNowOn reports whether the Buy Now toggle is active
func (k ListingKind) BuyNowOn() bool { return k == ListingKindBuyNow }

// AuctionsOn reports whether the Auctions toggle is active
func (k ListingKind) AuctionsOn() bool { return k == ListingKindAuction }

// ListingKindFromFlags maps the two toggle flags to a kind. Both set is rejected.
func ListingKindFromFlags(buyNow, auction bool) (ListingKind, error) {
	switch {
	case buyNow && auction:
		return "", fmt.Errorf("buy_now and auction filters are mutually exclusive")
	case buyNow:
		return ListingKindBuyNow, nil
	case auction:
		return ListingKindAuction, nil
	default:
		return ListingKindAll, nil
	}
}

// ListingSort orders browse results
type ListingSort string

const (
	SortNewest     ListingSort = "newest"
	SortPriceAsc   ListingSort = "price_asc"
	SortPriceDesc  ListingSort = "price_desc"
	SortMRRDesc    ListingSort = "mrr_desc"
	SortEndingSoon ListingSort = "ending_soon"
)

// ListingFilter is a parsed browse query
type ListingFilter struct {
	Kind     ListingKind
	Category string
	MinPrice *int64
	MaxPrice *int64
	MinMRR   *int64
	Search   string
	Sort     ListingSort
	Limit    int
	Offset   int
}

// ParseListingFilter reads browse query parameters.
// The cursor is the offset of the next page.
func ParseListingFilter(q url.Values) (*ListingFilter, []FieldError) {
	var errors []FieldError
	f := &ListingFilter{Sort: SortNewest, Limit: DefaultBrowseLimit}

	buyNow, err := parseBoolParam(q, "buy_now")
	if err != nil {
		errors = append(errors, FieldError{Field: "buy_now", Message: "buy_now must be true or false"})
	}
	auction, err := parseBoolParam(q, "auction")
	if err != nil {
		errors = append(errors, FieldError{Field: "auction", Message: "auction must be true or false"})
	}
	kind, err := ListingKindFromFlags(buyNow, auction)
	if err != nil {
		errors = append(errors, FieldError{Field: "auction", Message: err.Error()})
	}
	f.Kind = kind

	if c := q.Get("category"); c != "" {
		if !contains(ListingCategories, c) {
			errors = append(errors, FieldError{Field: "category", Message: "category is not a known category"})
		}
		f.Category = c
	}

	for _, p := range []struct {
		name string
		dst  **int64
	}{{"min_price", &f.MinPrice}, {"max_price", &f.MaxPrice}, {"min_mrr", &f.MinMRR}} {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				errors = append(errors, FieldError{Field: p.name, Message: p.name + " must be a non-negative integer"})
				continue
			}
			*p.dst = &n
		}
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		errors = append(errors, FieldError{Field: "max_price", Message: "max_price must not be below min_price"})
	}

	f.Search = strings.TrimSpace(q.Get("q"))
	if len(f.Search) > 100 {
		errors = append(errors, FieldError{Field: "q", Message: "q must be 100 characters or less"})
	}

	if s := q.Get("sort"); s != "" {
		switch ListingSort(s) {
		case SortNewest, SortPriceAsc, SortPriceDesc, SortMRRDesc, SortEndingSoon:
			f.Sort = ListingSort(s)
		default:
			errors = append(errors, FieldError{Field: "sort", Message: "sort must be one of: newest, price_asc, price_desc, mrr_desc, ending_soon"})
		}
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errors = append(errors, FieldError{Field: "limit", Message: "limit must be a positive integer"})
		} else {
			f.Limit = min(n, MaxBrowseLimit)
		}
	}
	if v := q.Get("cursor"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errors = append(errors, FieldError{Field: "cursor", Message: "cursor is invalid"})
		} else {
			f.Offset = n
		}
	}

	return f, errors
}

func parseBoolParam(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ListingPage is one page of browse results. NextCursor is empty on the last page.
type ListingPage struct {
	Listings   []*ListingView `json:"listings"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
