package model

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func hasFieldError(errors []FieldError, field string) bool {
	for _, e := range errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

// ============================================================================
// Username Tests
// ============================================================================

func TestIsValidUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		username string
		valid    bool
	}{
		{"abc", true},
		{"seller_01", true},
		{"a_very_long_name_20c", true},
		{"ab", false},
		{"a_very_long_name_21ch", false},
		{"Alice", false},
		{"bob-smith", false},
		{"bob smith", false},
		{"", false},
		{"émile", false},
		{"___", true},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			if got := IsValidUsername(tt.username); got != tt.valid {
				t.Errorf("IsValidUsername(%q) = %v, want %v", tt.username, got, tt.valid)
			}
		})
	}
}

func TestUpdateProfileRequest_Validate_Username(t *testing.T) {
	t.Parallel()

	bad := "Bad Name"
	req := &UpdateProfileRequest{Username: &bad}
	errors := req.Validate()
	if len(errors) != 1 || errors[0].Field != "username" {
		t.Errorf("expected username error, got %v", errors)
	}

	good := "good_name"
	req = &UpdateProfileRequest{Username: &good}
	if errors := req.Validate(); len(errors) > 0 {
		t.Errorf("expected no errors, got %v", errors)
	}
}

func TestUpdateProfileRequest_Validate_RoleTypeAndLinkedIn(t *testing.T) {
	t.Parallel()

	role := "investor"
	link := "https://example.com/me"
	req := &UpdateProfileRequest{RoleType: &role, LinkedInURL: &link}

	errors := req.Validate()
	if !hasFieldError(errors, "role_type") {
		t.Errorf("expected role_type error, got %v", errors)
	}
	if !hasFieldError(errors, "linkedin_url") {
		t.Errorf("expected linkedin_url error, got %v", errors)
	}
}

// ============================================================================
// CreateListingRequest Tests
// ============================================================================

func validListingRequest() *CreateListingRequest {
	return &CreateListingRequest{
		Title:          "AI Resume Writer",
		Description:    "A GPT-powered resume writing SaaS with 400 paying customers.",
		Category:       "content_generation",
		BusinessModel:  "subscription",
		TechStack:      []string{"nextjs", "postgres"},
		AgeMonths:      18,
		MonthlyRevenue: 850000,
		AskingPrice:    30000000,
		ListingType:    "buy_now",
	}
}

func TestCreateListingRequest_Validate_Valid(t *testing.T) {
	t.Parallel()

	if errors := validListingRequest().Validate(); len(errors) > 0 {
		t.Errorf("expected no errors, got %v", errors)
	}
}

func TestCreateListingRequest_Validate_MissingTitle(t *testing.T) {
	t.Parallel()

	req := validListingRequest()
	req.Title = ""

	errors := req.Validate()
	if len(errors) != 1 || errors[0].Field != "title" {
		t.Errorf("expected title error, got %v", errors)
	}
	if !strings.Contains(errors[0].Message, "required") {
		t.Errorf("expected required message, got %q", errors[0].Message)
	}
}

func TestCreateListingRequest_Validate_InvalidCategory(t *testing.T) {
	t.Parallel()

	req := validListingRequest()
	req.Category = "crypto"

	errors := req.Validate()
	if !hasFieldError(errors, "category") {
		t.Errorf("expected category error, got %v", errors)
	}
}

func TestCreateListingRequest_Validate_BuyNowNeedsPrice(t *testing.T) {
	t.Parallel()

	req := validListingRequest()
	req.AskingPrice = 0

	errors := req.Validate()
	if len(errors) != 1 || errors[0].Field != "asking_price" {
		t.Errorf("expected asking_price error, got %v", errors)
	}
}

func TestCreateListingRequest_Validate_AuctionNeedsSettings(t *testing.T) {
	t.Parallel()

	req := validListingRequest()
	req.ListingType = "auction"

	errors := req.Validate()
	if !hasFieldError(errors, "auction") {
		t.Errorf("expected auction error, got %v", errors)
	}
}

func TestCreateListingRequest_Validate_AuctionReserveBelowStart(t *testing.T) {
	t.Parallel()

	req := validListingRequest()
	req.ListingType = "auction"
	req.Auction = &AuctionSettingsRequest{
		StartPrice:       5000000,
		ReservePrice:     5000000,
		DurationDays:     7,
		DropIntervalMins: 60,
	}

	errors := req.Validate()
	if !hasFieldError(errors, "auction.reserve_price") {
		t.Errorf("expected auction.reserve_price error, got %v", errors)
	}
}

func TestCreateListingRequest_Validate_AuctionNestedTags(t *testing.T) {
	t.Parallel()

	req := validListingRequest()
	req.ListingType = "auction"
	req.Auction = &AuctionSettingsRequest{
		StartPrice:       5000000,
		DurationDays:     45,
		DropIntervalMins: 1,
	}

	errors := req.Validate()
	if !hasFieldError(errors, "auction.duration_days") {
		t.Errorf("expected auction.duration_days error, got %v", errors)
	}
	if !hasFieldError(errors, "auction.drop_interval_minutes") {
		t.Errorf("expected auction.drop_interval_minutes error, got %v", errors)
	}
}

func TestAuctionSettingsRequest_ToSettings(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req := &AuctionSettingsRequest{StartPrice: 100, ReservePrice: 50, DurationDays: 2, DropIntervalMins: 30}

	s, err := req.ToSettings(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.StartsAt.Equal(now) {
		t.Errorf("StartsAt = %v, want %v", s.StartsAt, now)
	}
	if want := now.Add(48 * time.Hour); !s.EndsAt.Equal(want) {
		t.Errorf("EndsAt = %v, want %v", s.EndsAt, want)
	}
}

// ============================================================================
// Browse Filter Tests
// ============================================================================

func TestListingKind_Toggle_MutuallyExclusive(t *testing.T) {
	t.Parallel()

	k := ListingKindAll
	k = k.Toggle(ListingTypeBuyNow)
	if !k.BuyNowOn() || k.AuctionsOn() {
		t.Fatalf("after enabling buy now: %q", k)
	}

	k = k.Toggle(ListingTypeAuction)
	if k.BuyNowOn() || !k.AuctionsOn() {
		t.Fatalf("enabling auctions should disable buy now: %q", k)
	}

	k = k.Toggle(ListingTypeAuction)
	if k != ListingKindAll {
		t.Fatalf("toggling the active filter should clear it: %q", k)
	}
}

func TestListingKind_NeverBothOn(t *testing.T) {
	t.Parallel()

	sequence := []ListingType{ListingTypeBuyNow, ListingTypeBuyNow, ListingTypeAuction, ListingTypeBuyNow, ListingTypeAuction, ListingTypeAuction}
	k := ListingKindAll
	for _, t2 := range sequence {
		k = k.Toggle(t2)
		if k.BuyNowOn() && k.AuctionsOn() {
			t.Fatalf("both filters on after toggling %s", t2)
		}
	}
}

func TestParseListingFilter_BothFlagsRejected(t *testing.T) {
	t.Parallel()

	_, errors := ParseListingFilter(url.Values{"buy_now": {"true"}, "auction": {"true"}})
	if !hasFieldError(errors, "auction") {
		t.Errorf("expected exclusivity error, got %v", errors)
	}
}

func TestParseListingFilter_Valid(t *testing.T) {
	t.Parallel()

	f, errors := ParseListingFilter(url.Values{
		"auction":   {"true"},
		"category":  {"marketing"},
		"min_price": {"100"},
		"max_price": {"900"},
		"sort":      {"ending_soon"},
		"limit":     {"500"},
		"cursor":    {"24"},
		"q":         {"  resume  "},
	})
	if len(errors) > 0 {
		t.Fatalf("unexpected errors: %v", errors)
	}
	if f.Kind != ListingKindAuction {
		t.Errorf("Kind = %q", f.Kind)
	}
	if *f.MinPrice != 100 || *f.MaxPrice != 900 {
		t.Errorf("price range = %d..%d", *f.MinPrice, *f.MaxPrice)
	}
	if f.Limit != MaxBrowseLimit {
		t.Errorf("Limit = %d, want capped %d", f.Limit, MaxBrowseLimit)
	}
	if f.Offset != 24 || f.Search != "resume" || f.Sort != SortEndingSoon {
		t.Errorf("unexpected filter %+v", f)
	}
}

func TestParseListingFilter_InvalidValues(t *testing.T) {
	t.Parallel()

	_, errors := ParseListingFilter(url.Values{
		"min_price": {"-5"},
		"sort":      {"random"},
		"category":  {"gaming"},
		"buy_now":   {"maybe"},
	})
	for _, field := range []string{"min_price", "sort", "category", "buy_now"} {
		if !hasFieldError(errors, field) {
			t.Errorf("expected %s error, got %v", field, errors)
		}
	}
}

// ============================================================================
// Moderation Tests
// ============================================================================

func TestModerateListingRequest_RejectRequiresFeedback(t *testing.T) {
	t.Parallel()

	for _, feedback := range []string{"", "   ", "\n\t"} {
		req := &ModerateListingRequest{Decision: DecisionReject, Feedback: feedback}
		errors := req.Validate()
		if len(errors) != 1 || errors[0].Field != "feedback" {
			t.Errorf("feedback %q: expected feedback error, got %v", feedback, errors)
		}
	}

	req := &ModerateListingRequest{Decision: DecisionReject, Feedback: "Add revenue proof"}
	if errors := req.Validate(); len(errors) > 0 {
		t.Errorf("expected no errors, got %v", errors)
	}
}

func TestModerateListingRequest_ApproveWithoutFeedback(t *testing.T) {
	t.Parallel()

	req := &ModerateListingRequest{Decision: DecisionApprove}
	if errors := req.Validate(); len(errors) > 0 {
		t.Errorf("expected approve without feedback to be valid, got %v", errors)
	}
}

func TestModerateListingRequest_InvalidDecision(t *testing.T) {
	t.Parallel()

	req := &ModerateListingRequest{Decision: "defer"}
	errors := req.Validate()
	if len(errors) != 1 || errors[0].Field != "decision" {
		t.Errorf("expected decision error, got %v", errors)
	}
}

// ============================================================================
// Payment Return Tests
// ============================================================================

func TestParsePaymentReturn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		query     string
		wantError string
	}{
		{"success", "payment_status=success&product_id=products:abc&package=featured&session_id=cs_123", ""},
		{"cancelled", "payment_status=cancelled&product_id=products:abc&package=premium", ""},
		{"basic_no_session", "payment_status=success&product_id=products:abc&package=basic", ""},
		{"missing_status", "product_id=products:abc", "payment_status"},
		{"unknown_status", "payment_status=pending&product_id=products:abc", "payment_status"},
		{"missing_product", "payment_status=success", "product_id"},
		{"unknown_package", "payment_status=success&product_id=p&package=gold", "package"},
		{"paid_without_session", "payment_status=success&product_id=p&package=featured", "session_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("bad query: %v", err)
			}
			pr, errors := ParsePaymentReturn(q)
			if tt.wantError == "" {
				if len(errors) > 0 {
					t.Errorf("unexpected errors: %v", errors)
				}
				if pr.ProductID != "products:abc" {
					t.Errorf("ProductID = %q", pr.ProductID)
				}
				return
			}
			if !hasFieldError(errors, tt.wantError) {
				t.Errorf("expected %s error, got %v", tt.wantError, errors)
			}
		})
	}
}

// ============================================================================
// Questionnaire and Lead Tests
// ============================================================================

func TestPreferencesAnswers_Validate(t *testing.T) {
	t.Parallel()

	a := &PreferencesAnswers{
		Categories: []string{"marketing", "nft"},
		BudgetMin:  5000000,
		BudgetMax:  1000000,
		DealTypes:  []string{"buy_now"},
		Timeline:   "someday",
	}

	errors := a.Validate()
	for _, field := range []string{"categories[1]", "budget_max", "timeline"} {
		if !hasFieldError(errors, field) {
			t.Errorf("expected %s error, got %v", field, errors)
		}
	}
}

func TestSubmitBuyerLeadRequest_Validate_Email(t *testing.T) {
	t.Parallel()

	req := &SubmitBuyerLeadRequest{Email: "not-an-email"}
	errors := req.Validate()
	if len(errors) != 1 || errors[0].Field != "email" {
		t.Errorf("expected email error, got %v", errors)
	}
}

func TestSubmitValuationLeadRequest_Validate_NestedAnswers(t *testing.T) {
	t.Parallel()

	req := &SubmitValuationLeadRequest{
		Email: "founder@example.com",
		Answers: ValuationAnswers{
			MonthlyRevenue: 100000,
			ChurnRate:      150,
			BusinessModel:  "subscription",
		},
	}

	errors := req.Validate()
	if !hasFieldError(errors, "answers.churn_rate") {
		t.Errorf("expected answers.churn_rate error, got %v", errors)
	}
	if !hasFieldError(errors, "answers.ai_dependency") {
		t.Errorf("expected answers.ai_dependency error, got %v", errors)
	}
}

func TestSignNDARequest_Validate(t *testing.T) {
	t.Parallel()

	req := &SignNDARequest{FullName: "  Dana Buyer  ", Accept: false}
	errors := req.Validate()
	if len(errors) != 1 || errors[0].Field != "accept" {
		t.Errorf("expected accept error, got %v", errors)
	}
	if req.FullName != "Dana Buyer" {
		t.Errorf("expected trimmed name, got %q", req.FullName)
	}
}

func TestSubmitFeedbackRequest_Validate_RatingRange(t *testing.T) {
	t.Parallel()

	for _, rating := range []int{0, 6} {
		req := &SubmitFeedbackRequest{Rating: rating}
		errors := req.Validate()
		if len(errors) != 1 || errors[0].Field != "rating" {
			t.Errorf("rating %d: expected rating error, got %v", rating, errors)
		}
	}
	req := &SubmitFeedbackRequest{Rating: 5}
	if errors := req.Validate(); len(errors) > 0 {
		t.Errorf("expected no errors, got %v", errors)
	}
}

func TestProfile_HasActiveSubscription(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name    string
		profile *Profile
		want    bool
	}{
		{"nil", nil, false},
		{"none", &Profile{SubscriptionStatus: SubscriptionNone}, false},
		{"active_open_ended", &Profile{SubscriptionStatus: SubscriptionActive}, true},
		{"active_future", &Profile{SubscriptionStatus: SubscriptionActive, SubscriptionEndsOn: &future}, true},
		{"active_lapsed", &Profile{SubscriptionStatus: SubscriptionActive, SubscriptionEndsOn: &past}, false},
		{"past_due_in_period", &Profile{SubscriptionStatus: SubscriptionPastDue, SubscriptionEndsOn: &future}, true},
		{"cancelled", &Profile{SubscriptionStatus: SubscriptionCancelled, SubscriptionEndsOn: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.HasActiveSubscription(now); got != tt.want {
				t.Errorf("HasActiveSubscription() = %v, want %v", got, tt.want)
			}
		})
	}
}
