// Package fixtures provides test data factories for integration testing.
//
// Each factory method creates entities with sensible defaults while allowing
// customization via option functions. Factories insert through the real
// repositories and return fully populated models.
//
// Usage:
//
//	f := fixtures.New(tdb.DB)
//	seller := f.CreateUser(t)
//	listing := f.CreateListing(t, seller)
//	bid := f.CreateBid(t, listing, f.CreateSubscribedBuyer(t))
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/repository"
	"github.com/forgo/exitlane/api/internal/service"
)

// Factory creates test entities in the database
type Factory struct {
	db       database.Database
	users    *repository.UserRepository
	profiles *repository.ProfileRepository
	products *repository.ProductRepository
	bids     *repository.BidRepository
	escrows  *repository.EscrowRepository
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{
		db:       db,
		users:    repository.NewUserRepository(db),
		profiles: repository.NewProfileRepository(db),
		products: repository.NewProductRepository(db),
		bids:     repository.NewBidRepository(db),
		escrows:  repository.NewEscrowRepository(db),
	}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// Account Fixtures
// ============================================================================

// UserOpts customizes user creation
type UserOpts struct {
	Email    string
	Username string
	Password string
	Role     model.UserRole
	RoleType model.RoleType
}

// CreateUser creates a user with a profile
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	id := randomID()
	o := &UserOpts{
		Email:    fmt.Sprintf("user_%s@test.local", id),
		Username: "user_" + id,
		Password: "testpass123",
		Role:     model.UserRoleUser,
		RoleType: model.RoleTypeBoth,
	}
	for _, fn := range opts {
		fn(o)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("fixtures: failed to hash password: %v", err)
	}
	hashStr := string(hash)

	user := &model.User{
		Email:         o.Email,
		Hash:          &hashStr,
		Role:          o.Role,
		EmailVerified: true,
	}
	if err := f.users.Create(ctx(t), user); err != nil {
		t.Fatalf("fixtures: failed to create user: %v", err)
	}

	username := o.Username
	profile := &model.Profile{
		UserID:   user.ID,
		Username: &username,
		RoleType: o.RoleType,
	}
	if err := f.profiles.Create(ctx(t), profile); err != nil {
		t.Fatalf("fixtures: failed to create profile: %v", err)
	}

	user.Hash = nil // Don't expose hash in fixture
	return user
}

// CreateAdmin creates an admin user
func (f *Factory) CreateAdmin(t *testing.T) *model.User {
	return f.CreateUser(t, func(o *UserOpts) {
		o.Role = model.UserRoleAdmin
	})
}

// CreateSubscribedBuyer creates a buyer with an active monthly subscription
func (f *Factory) CreateSubscribedBuyer(t *testing.T) *model.User {
	t.Helper()

	user := f.CreateUser(t, func(o *UserOpts) {
		o.RoleType = model.RoleTypeBuyer
	})
	plan := "buyer_monthly"
	endsOn := time.Now().Add(30 * 24 * time.Hour)
	if err := f.profiles.UpdateSubscription(ctx(t), user.ID, service.SubscriptionUpdate{
		Status: model.SubscriptionActive,
		Plan:   &plan,
		EndsOn: &endsOn,
	}); err != nil {
		t.Fatalf("fixtures: failed to activate subscription: %v", err)
	}
	return user
}

// ============================================================================
// Listing Fixtures
// ============================================================================

// ListingOpts customizes listing creation
type ListingOpts struct {
	Title          string
	Category       string
	BusinessModel  string
	MonthlyRevenue int64
	AskingPrice    int64
	RequiresNDA    bool
	Status         model.ListingStatus
	Auction        *model.AuctionSettings
}

// WithStatus sets the listing status
func WithStatus(status model.ListingStatus) func(*ListingOpts) {
	return func(o *ListingOpts) {
		o.Status = status
	}
}

// WithAuction makes the listing a Dutch auction running from start to end
func WithAuction(start, end time.Time, startPrice, reserve int64) func(*ListingOpts) {
	return func(o *ListingOpts) {
		o.Auction = &model.AuctionSettings{
			StartPrice:       startPrice,
			ReservePrice:     reserve,
			StartsAt:         start,
			EndsAt:           end,
			DropIntervalMins: 60,
			DropAmount:       (startPrice - reserve) / 10,
		}
	}
}

// CreateListing creates an approved buy-now listing owned by seller
func (f *Factory) CreateListing(t *testing.T, seller *model.User, opts ...func(*ListingOpts)) *model.Product {
	t.Helper()

	o := &ListingOpts{
		Title:          "Listing " + randomID(),
		Category:       "developer_tools",
		BusinessModel:  "subscription",
		MonthlyRevenue: 500000,
		AskingPrice:    15000000,
		Status:         model.ListingStatusApproved,
	}
	for _, fn := range opts {
		fn(o)
	}

	p := &model.Product{
		SellerID:       seller.ID,
		Title:          o.Title,
		Description:    "An AI SaaS business created for tests.",
		Category:       o.Category,
		BusinessModel:  o.BusinessModel,
		TechStack:      []string{"go", "postgres"},
		AIModels:       []string{"gpt-4o"},
		AgeMonths:      18,
		MonthlyRevenue: o.MonthlyRevenue,
		AskingPrice:    o.AskingPrice,
		RequiresNDA:    o.RequiresNDA,
		ListingType:    model.ListingTypeBuyNow,
		Status:         o.Status,
	}
	if o.Auction != nil {
		p.ListingType = model.ListingTypeAuction
		p.Auction = o.Auction
	}

	if err := f.products.Create(ctx(t), p); err != nil {
		t.Fatalf("fixtures: failed to create listing: %v", err)
	}
	return p
}

// ============================================================================
// Deal Fixtures
// ============================================================================

// CreateBid creates a pending bid by buyer on listing
func (f *Factory) CreateBid(t *testing.T, listing *model.Product, buyer *model.User, amount int64) *model.Bid {
	t.Helper()

	bid := &model.Bid{
		ProductID:   listing.ID,
		BuyerID:     buyer.ID,
		SellerID:    listing.SellerID,
		Amount:      amount,
		Kind:        listing.ListingType,
		BelowAsking: listing.ListingType == model.ListingTypeBuyNow && amount < listing.AskingPrice,
	}
	if err := f.bids.Create(ctx(t), bid); err != nil {
		t.Fatalf("fixtures: failed to create bid: %v", err)
	}
	return bid
}

// CreateEscrow creates an escrow transaction backing bid in the given status
func (f *Factory) CreateEscrow(t *testing.T, bid *model.Bid, status model.EscrowStatus) *model.EscrowTransaction {
	t.Helper()

	e := &model.EscrowTransaction{
		ProductID:       bid.ProductID,
		BidID:           bid.ID,
		BuyerID:         bid.BuyerID,
		SellerID:        bid.SellerID,
		Amount:          bid.Amount,
		BuyerFee:        bid.Amount / 20,
		TotalCharged:    bid.Amount + bid.Amount/20,
		Currency:        "usd",
		PaymentIntentID: "pi_test_" + randomID(),
		Status:          status,
	}
	if err := f.escrows.Create(ctx(t), e); err != nil {
		t.Fatalf("fixtures: failed to create escrow: %v", err)
	}
	if err := f.bids.SetEscrow(ctx(t), bid.ID, e.ID); err != nil {
		t.Fatalf("fixtures: failed to link escrow: %v", err)
	}
	return e
}
