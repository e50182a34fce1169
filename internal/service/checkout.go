package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/exitlane/api/internal/catalog"
	"github.com/forgo/exitlane/api/internal/metrics"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/payments"
)

// PurchaseRepository defines the interface for package purchase storage
type PurchaseRepository interface {
	Create(ctx context.Context, p *model.PackagePurchase) error
	GetByID(ctx context.Context, id string) (*model.PackagePurchase, error)
	GetBySession(ctx context.Context, sessionID string) (*model.PackagePurchase, error)
	SetSession(ctx context.Context, id, sessionID string) error
	MarkPaid(ctx context.Context, id string) (bool, error)
	MarkCancelled(ctx context.Context, id string) (bool, error)
}

// Checkout metadata kinds
const (
	checkoutKindPackage      = "package"
	checkoutKindSubscription = "subscription"
)

// checkoutSessionPlaceholder is replaced by the processor with the session id
const checkoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

// CheckoutService sells listing packages and marketplace subscriptions
// through hosted checkout pages
type CheckoutService struct {
	productRepo  ProductRepository
	purchaseRepo PurchaseRepository
	profileRepo  ProfileRepository
	userRepo     UserRepository
	listings     *ListingService
	gateway      payments.Gateway
	catalog      *catalog.Catalog
	frontendURL  string
	now          func() time.Time
}

// CheckoutServiceConfig holds configuration for the checkout service
type CheckoutServiceConfig struct {
	ProductRepo  ProductRepository
	PurchaseRepo PurchaseRepository
	ProfileRepo  ProfileRepository
	UserRepo     UserRepository
	Listings     *ListingService
	Gateway      payments.Gateway
	Catalog      *catalog.Catalog
	FrontendURL  string
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(cfg CheckoutServiceConfig) *CheckoutService {
	gateway := cfg.Gateway
	if gateway == nil {
		gateway = payments.Disabled{}
	}
	return &CheckoutService{
		productRepo:  cfg.ProductRepo,
		purchaseRepo: cfg.PurchaseRepo,
		profileRepo:  cfg.ProfileRepo,
		userRepo:     cfg.UserRepo,
		listings:     cfg.Listings,
		gateway:      gateway,
		catalog:      cfg.Catalog,
		frontendURL:  strings.TrimRight(cfg.FrontendURL, "/"),
		now:          time.Now,
	}
}

// Catalog returns the priced offerings
func (s *CheckoutService) Catalog() *catalog.Catalog {
	return s.catalog
}

// PackageReturnURL builds the thank-you page URL checkout sends the seller back to
func (s *CheckoutService) PackageReturnURL(status model.PaymentReturnStatus, productID string, pkg model.PackageType) string {
	q := url.Values{}
	q.Set("payment_status", string(status))
	q.Set("product_id", productID)
	q.Set("package", string(pkg))
	u := s.frontendURL + "/listing-thank-you?" + q.Encode()
	if status == model.PaymentReturnSuccess {
		// The placeholder must reach the processor unescaped
		u += "&session_id=" + checkoutSessionPlaceholder
	}
	return u
}

// CreatePackagePayment starts checkout for a listing package. The free
// package is applied at once and needs no checkout.
func (s *CheckoutService) CreatePackagePayment(ctx context.Context, sellerID string, req *model.CreatePackagePaymentRequest) (*model.CheckoutResponse, error) {
	p, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrListingNotFound
	}
	if p.SellerID != sellerID {
		return nil, ErrNotListingOwner
	}
	if !p.Status.IsEditable() {
		return nil, ErrListingNotEditable
	}
	pkg, ok := s.catalog.Package(req.Package)
	if !ok {
		return nil, ErrPackageNotFound
	}

	purchase := &model.PackagePurchase{
		ProductID: p.ID,
		SellerID:  sellerID,
		Package:   model.PackageType(pkg.Type),
		Amount:    pkg.Price,
		Currency:  s.catalog.Currency,
		Status:    model.PurchasePending,
	}
	if pkg.IsFree() {
		purchase.Status = model.PurchaseFree
		if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
			return nil, err
		}
		if err := s.applyPackage(ctx, purchase); err != nil {
			return nil, err
		}
		return &model.CheckoutResponse{PurchaseID: purchase.ID, Free: true}, nil
	}

	if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
		return nil, err
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		Mode:              payments.CheckoutPayment,
		Currency:          s.catalog.Currency,
		ItemName:          pkg.Name + " listing package",
		UnitAmount:        pkg.Price,
		SuccessURL:        s.PackageReturnURL(model.PaymentReturnSuccess, p.ID, purchase.Package),
		CancelURL:         s.PackageReturnURL(model.PaymentReturnCancelled, p.ID, purchase.Package),
		ClientReferenceID: purchase.ID,
		Metadata: map[string]string{
			"kind":        checkoutKindPackage,
			"purchase_id": purchase.ID,
			"product_id":  p.ID,
			"package":     pkg.Type,
		},
		IdempotencyKey: "package-" + purchase.ID,
	})
	if err != nil {
		metrics.RecordPaymentFailure("checkout")
		return nil, err
	}
	if err := s.purchaseRepo.SetSession(ctx, purchase.ID, session.ID); err != nil {
		return nil, err
	}
	return &model.CheckoutResponse{URL: session.URL, SessionID: session.ID, PurchaseID: purchase.ID}, nil
}

// VerifyPackagePayment checks a returned checkout session and applies the
// package once it is paid
func (s *CheckoutService) VerifyPackagePayment(ctx context.Context, sellerID, sessionID string) (*model.PackagePurchase, error) {
	purchase, err := s.purchaseRepo.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if purchase == nil || purchase.SellerID != sellerID {
		return nil, ErrPurchaseNotFound
	}
	if purchase.Status == model.PurchasePaid {
		return purchase, nil
	}

	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		metrics.RecordPaymentFailure("verify_checkout")
		return nil, err
	}
	if !session.IsPaid() {
		return nil, ErrPaymentNotCompleted
	}
	if err := s.completePurchase(ctx, purchase); err != nil {
		return nil, err
	}
	return s.purchaseRepo.GetByID(ctx, purchase.ID)
}

// completePurchase marks the purchase paid and applies it. A purchase
// already paid by the webhook or an earlier verify is left alone.
func (s *CheckoutService) completePurchase(ctx context.Context, purchase *model.PackagePurchase) error {
	changed, err := s.purchaseRepo.MarkPaid(ctx, purchase.ID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.applyPackage(ctx, purchase)
}

// applyPackage sets the featured placement and sends the listing to review
func (s *CheckoutService) applyPackage(ctx context.Context, purchase *model.PackagePurchase) error {
	pkg, ok := s.catalog.Package(string(purchase.Package))
	if !ok {
		return ErrPackageNotFound
	}
	p, err := s.productRepo.GetByID(ctx, purchase.ProductID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrListingNotFound
	}

	var until *time.Time
	if pkg.FeaturedDays > 0 {
		t := s.now().Add(time.Duration(pkg.FeaturedDays) * 24 * time.Hour)
		until = &t
	}
	pkgType := pkg.Type
	if err := s.productRepo.SetFeatured(ctx, p.ID, pkg.FeaturedDays > 0, until, &pkgType); err != nil {
		return err
	}

	if p.Status == model.ListingStatusDraft || p.Status == model.ListingStatusRejected {
		if err := s.listings.submit(ctx, p); err != nil && !errors.Is(err, ErrListingNotSubmittable) {
			return err
		}
	}
	return nil
}

// CreateSubscriptionCheckout starts checkout for a marketplace subscription
func (s *CheckoutService) CreateSubscriptionCheckout(ctx context.Context, userID string, req *model.CreateSubscriptionRequest) (*model.CheckoutResponse, error) {
	plan, ok := s.catalog.Plan(req.Plan)
	if !ok {
		return nil, ErrPlanNotFound
	}
	if plan.PriceID == "" {
		return nil, ErrPlanNotConfigured
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.HasActiveSubscription(s.now()) {
		return nil, ErrAlreadySubscribed
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		Mode:              payments.CheckoutSubscription,
		PriceID:           plan.PriceID,
		SuccessURL:        s.frontendURL + "/marketplace?subscription=success&session_id=" + checkoutSessionPlaceholder,
		CancelURL:         s.frontendURL + "/pricing?subscription=cancelled",
		CustomerEmail:     user.Email,
		ClientReferenceID: userID,
		Metadata: map[string]string{
			"kind":    checkoutKindSubscription,
			"user_id": userID,
			"plan":    plan.ID,
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		metrics.RecordPaymentFailure("checkout")
		return nil, err
	}
	return &model.CheckoutResponse{URL: session.URL, SessionID: session.ID}, nil
}

// VerifySubscription checks a returned subscription checkout and activates
// the subscription once paid
func (s *CheckoutService) VerifySubscription(ctx context.Context, userID, sessionID string) (*model.SubscriptionState, error) {
	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		metrics.RecordPaymentFailure("verify_checkout")
		return nil, err
	}
	if session.Mode != payments.CheckoutSubscription || subscriptionOwner(session) != userID {
		return nil, ErrPurchaseNotFound
	}
	if !session.IsPaid() {
		return nil, ErrPaymentNotCompleted
	}
	if err := s.activateSubscription(ctx, session); err != nil {
		return nil, err
	}
	return s.GetSubscriptionStatus(ctx, userID)
}

// CompleteCheckout applies a completed checkout session reported by webhook
func (s *CheckoutService) CompleteCheckout(ctx context.Context, session *payments.CheckoutSession) error {
	if !session.IsPaid() {
		return nil
	}
	switch {
	case session.Mode == payments.CheckoutSubscription:
		return s.activateSubscription(ctx, session)
	case session.Metadata["kind"] == checkoutKindPackage || session.Metadata["purchase_id"] != "":
		purchase, err := s.purchaseFor(ctx, session)
		if err != nil || purchase == nil {
			return err
		}
		return s.completePurchase(ctx, purchase)
	}
	return nil
}

// ExpireCheckout cancels the pending purchase of an abandoned session
func (s *CheckoutService) ExpireCheckout(ctx context.Context, session *payments.CheckoutSession) error {
	if session.Mode == payments.CheckoutSubscription {
		return nil
	}
	purchase, err := s.purchaseFor(ctx, session)
	if err != nil || purchase == nil {
		return err
	}
	_, err = s.purchaseRepo.MarkCancelled(ctx, purchase.ID)
	return err
}

func (s *CheckoutService) purchaseFor(ctx context.Context, session *payments.CheckoutSession) (*model.PackagePurchase, error) {
	if id := session.Metadata["purchase_id"]; id != "" {
		return s.purchaseRepo.GetByID(ctx, id)
	}
	return s.purchaseRepo.GetBySession(ctx, session.ID)
}

func subscriptionOwner(session *payments.CheckoutSession) string {
	if session.ClientReferenceID != "" {
		return session.ClientReferenceID
	}
	return session.Metadata["user_id"]
}

func (s *CheckoutService) activateSubscription(ctx context.Context, session *payments.CheckoutSession) error {
	userID := subscriptionOwner(session)
	if userID == "" {
		slog.Warn("subscription checkout without a user", "session_id", session.ID)
		return nil
	}
	update := SubscriptionUpdate{
		Status: model.SubscriptionActive,
		EndsOn: session.PeriodEnd,
	}
	if plan := session.Metadata["plan"]; plan != "" {
		update.Plan = &plan
	}
	if session.CustomerID != "" {
		update.CustomerID = &session.CustomerID
	}
	if session.SubscriptionID != "" {
		update.SubscriptionID = &session.SubscriptionID
	}
	return s.profileRepo.UpdateSubscription(ctx, userID, update)
}

// SubscriptionChange is a processor update to a running subscription
type SubscriptionChange struct {
	SubscriptionID string
	CustomerID     string
	Status         string // processor status: active, trialing, past_due, unpaid, canceled, ...
	PeriodEnd      *time.Time
	Deleted        bool
}

// ApplySubscriptionChange mirrors a processor subscription update onto the profile
func (s *CheckoutService) ApplySubscriptionChange(ctx context.Context, c SubscriptionChange) error {
	profile, err := s.profileRepo.GetByStripeSubscriptionID(ctx, c.SubscriptionID)
	if err != nil {
		return err
	}
	if profile == nil && c.CustomerID != "" {
		if profile, err = s.profileRepo.GetByStripeCustomerID(ctx, c.CustomerID); err != nil {
			return err
		}
	}
	if profile == nil {
		slog.Warn("subscription update for unknown profile", "subscription_id", c.SubscriptionID)
		return nil
	}

	status, ok := mapSubscriptionStatus(c.Status)
	if c.Deleted {
		status, ok = model.SubscriptionCancelled, true
	}
	if !ok {
		return nil
	}
	update := SubscriptionUpdate{Status: status, EndsOn: c.PeriodEnd}
	if c.SubscriptionID != "" {
		update.SubscriptionID = &c.SubscriptionID
	}
	return s.profileRepo.UpdateSubscription(ctx, profile.UserID, update)
}

func mapSubscriptionStatus(status string) (model.SubscriptionStatus, bool) {
	switch status {
	case "active", "trialing":
		return model.SubscriptionActive, true
	case "past_due", "unpaid":
		return model.SubscriptionPastDue, true
	case "canceled":
		return model.SubscriptionCancelled, true
	case "incomplete_expired":
		return model.SubscriptionExpired, true
	}
	return "", false
}

// GetSubscriptionStatus returns the caller's paywall state
func (s *CheckoutService) GetSubscriptionStatus(ctx context.Context, userID string) (*model.SubscriptionState, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	status := profile.SubscriptionStatus
	if status == "" {
		status = model.SubscriptionNone
	}
	return &model.SubscriptionState{
		Status: status,
		Plan:   profile.SubscriptionPlan,
		EndsOn: profile.SubscriptionEndsOn,
		Active: profile.HasActiveSubscription(s.now()),
	}, nil
}

// ExpireSubscriptions marks subscriptions past their period as expired
func (s *CheckoutService) ExpireSubscriptions(ctx context.Context) (int, error) {
	return s.profileRepo.ExpireSubscriptions(ctx, s.now())
}
