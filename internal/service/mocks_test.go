package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forgo/exitlane/api/internal/catalog"
	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/email"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/payments"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockUserRepo struct {
	users      map[string]*model.User
	emailIndex map[string]*model.User
	createErr  error
	getErr     error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:      make(map[string]*model.User),
		emailIndex: make(map[string]*model.User),
	}
}

func (m *mockUserRepo) add(id, addr string) *model.User {
	u := &model.User{ID: id, Email: addr, Role: model.UserRoleUser}
	m.users[id] = u
	m.emailIndex[addr] = u
	return u
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.emailIndex[user.Email]; ok {
		return database.ErrDuplicate
	}
	user.ID = "user:" + user.Email
	user.CreatedOn = time.Now()
	user.UpdatedOn = time.Now()
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.users[id], nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.emailIndex[email], nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, userID, hash string) error {
	if user, ok := m.users[userID]; ok {
		user.Hash = &hash
	}
	return nil
}

func (m *mockUserRepo) TouchLogin(ctx context.Context, userID string) error {
	return nil
}

type mockProfileRepo struct {
	profiles map[string]*model.Profile // by user id
	updates  []SubscriptionUpdate
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (m *mockProfileRepo) add(userID string, status model.SubscriptionStatus) *model.Profile {
	p := &model.Profile{ID: "profiles:" + userID, UserID: userID, SubscriptionStatus: status, RoleType: model.RoleTypeBoth}
	m.profiles[userID] = p
	return p
}

func (m *mockProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	profile.ID = "profiles:" + profile.UserID
	if profile.SubscriptionStatus == "" {
		profile.SubscriptionStatus = model.SubscriptionNone
	}
	m.profiles[profile.UserID] = profile
	return nil
}

func (m *mockProfileRepo) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return m.profiles[userID], nil
}

func (m *mockProfileRepo) GetByUsername(ctx context.Context, username string) (*model.Profile, error) {
	for _, p := range m.profiles {
		if p.Username != nil && *p.Username == username {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProfileRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Profile, error) {
	for _, p := range m.profiles {
		if p.StripeCustomerID != nil && *p.StripeCustomerID == customerID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProfileRepo) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*model.Profile, error) {
	for _, p := range m.profiles {
		if p.StripeSubscriptionID != nil && *p.StripeSubscriptionID == subscriptionID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProfileRepo) UsernameTaken(ctx context.Context, username, exceptUserID string) (bool, error) {
	for _, p := range m.profiles {
		if p.Username != nil && *p.Username == username && p.UserID != exceptUserID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProfileRepo) Update(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.Profile, error) {
	p := m.profiles[userID]
	if p == nil {
		return nil, nil
	}
	if req.Username != nil {
		p.Username = req.Username
	}
	if req.FullName != nil {
		p.FullName = req.FullName
	}
	if req.Bio != nil {
		p.Bio = req.Bio
	}
	return p, nil
}

func (m *mockProfileRepo) SetAvatar(ctx context.Context, userID string, url, path *string) error {
	if p := m.profiles[userID]; p != nil {
		p.AvatarURL = url
		p.AvatarPath = path
	}
	return nil
}

func (m *mockProfileRepo) UpdateSubscription(ctx context.Context, userID string, u SubscriptionUpdate) error {
	m.updates = append(m.updates, u)
	p := m.profiles[userID]
	if p == nil {
		return nil
	}
	p.SubscriptionStatus = u.Status
	if u.Plan != nil {
		p.SubscriptionPlan = u.Plan
	}
	if u.EndsOn != nil {
		p.SubscriptionEndsOn = u.EndsOn
	}
	if u.CustomerID != nil {
		p.StripeCustomerID = u.CustomerID
	}
	if u.SubscriptionID != nil {
		p.StripeSubscriptionID = u.SubscriptionID
	}
	return nil
}

func (m *mockProfileRepo) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	n := 0
	for _, p := range m.profiles {
		if (p.SubscriptionStatus == model.SubscriptionActive || p.SubscriptionStatus == model.SubscriptionPastDue) &&
			p.SubscriptionEndsOn != nil && !p.SubscriptionEndsOn.After(now) {
			p.SubscriptionStatus = model.SubscriptionExpired
			n++
		}
	}
	return n, nil
}

func (m *mockProfileRepo) CountActiveSubscriptions(ctx context.Context) (int, error) {
	n := 0
	for _, p := range m.profiles {
		if p.SubscriptionStatus == model.SubscriptionActive {
			n++
		}
	}
	return n, nil
}

type mockProductRepo struct {
	products map[string]*model.Product
	seq      int
	getErr   error
	browse   []*model.Product
	finalize []*model.Product
	notified map[string]bool // id -> ended
	added    map[string]int64
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{
		products: make(map[string]*model.Product),
		notified: make(map[string]bool),
		added:    make(map[string]int64),
	}
}

func (m *mockProductRepo) put(p *model.Product) *model.Product {
	m.products[p.ID] = p
	return p
}

// stored returns the live row, not a copy
func (m *mockProductRepo) stored(id string) *model.Product {
	return m.products[id]
}

func (m *mockProductRepo) Create(ctx context.Context, p *model.Product) error {
	m.seq++
	p.ID = fmt.Sprintf("products:%d", m.seq)
	p.CreatedOn = time.Now()
	p.UpdatedOn = p.CreatedOn
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) Update(ctx context.Context, p *model.Product) error {
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockProductRepo) UpdateStatus(ctx context.Context, id string, from []model.ListingStatus, to model.ListingStatus) (bool, error) {
	p, ok := m.products[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if p.Status == s {
			p.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProductRepo) Review(ctx context.Context, id string, status model.ListingStatus, feedback *string, reviewerID string) (*model.Product, error) {
	p, ok := m.products[id]
	if !ok || p.Status != model.ListingStatusPendingReview {
		return nil, nil
	}
	now := time.Now()
	p.Status = status
	p.AdminFeedback = feedback
	p.ReviewedByID = &reviewerID
	p.ReviewedOn = &now
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) SetFeatured(ctx context.Context, id string, featured bool, until *time.Time, pkg *string) error {
	if p, ok := m.products[id]; ok {
		p.Featured = featured
		p.FeaturedUntil = until
		if pkg != nil {
			p.Package = pkg
		}
	}
	return nil
}

func (m *mockProductRepo) Browse(ctx context.Context, f *model.ListingFilter, limit int, now time.Time) ([]*model.Product, error) {
	out := m.browse
	if f.Offset < len(out) {
		out = out[f.Offset:]
	} else {
		out = nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockProductRepo) ListBySeller(ctx context.Context, sellerID string) ([]*model.Product, error) {
	var out []*model.Product
	for _, p := range m.products {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) ListByStatus(ctx context.Context, status model.ListingStatus, limit, offset int) ([]*model.Product, error) {
	var out []*model.Product
	for _, p := range m.products {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockProductRepo) ListApproved(ctx context.Context, limit int) ([]*model.Product, error) {
	out, _ := m.ListByStatus(ctx, model.ListingStatusApproved, limit, 0)
	return out, nil
}

func (m *mockProductRepo) ListAuctionsToFinalize(ctx context.Context, now time.Time) ([]*model.Product, error) {
	return m.finalize, nil
}

func (m *mockProductRepo) MarkResultNotified(ctx context.Context, id string, ended bool) error {
	m.notified[id] = ended
	if p, ok := m.products[id]; ok {
		t := time.Now()
		p.ResultNotifiedOn = &t
		if ended {
			p.Status = model.ListingStatusEnded
		}
	}
	return nil
}

func (m *mockProductRepo) AddViews(ctx context.Context, counts map[string]int64) error {
	for id, n := range counts {
		m.added[id] += n
	}
	return nil
}

func (m *mockProductRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	for _, p := range m.products {
		out[string(p.Status)]++
	}
	return out, nil
}

type mockBidRepo struct {
	bids map[string]*model.Bid
	seq  int
}

func newMockBidRepo() *mockBidRepo {
	return &mockBidRepo{bids: make(map[string]*model.Bid)}
}

func (m *mockBidRepo) put(b *model.Bid) *model.Bid {
	m.bids[b.ID] = b
	return b
}

func (m *mockBidRepo) Create(ctx context.Context, bid *model.Bid) error {
	m.seq++
	bid.ID = fmt.Sprintf("bids:%d", m.seq)
	bid.CreatedOn = time.Now()
	cp := *bid
	m.bids[bid.ID] = &cp
	return nil
}

func (m *mockBidRepo) GetByID(ctx context.Context, id string) (*model.Bid, error) {
	b, ok := m.bids[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *mockBidRepo) list(match func(*model.Bid) bool) []*model.Bid {
	var out []*model.Bid
	for _, b := range m.bids {
		if match(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockBidRepo) ListByProduct(ctx context.Context, productID string) ([]*model.Bid, error) {
	return m.list(func(b *model.Bid) bool { return b.ProductID == productID }), nil
}

func (m *mockBidRepo) ListByBuyer(ctx context.Context, buyerID string) ([]*model.Bid, error) {
	return m.list(func(b *model.Bid) bool { return b.BuyerID == buyerID }), nil
}

func (m *mockBidRepo) ListOpenByProduct(ctx context.Context, productID string) ([]*model.Bid, error) {
	return m.list(func(b *model.Bid) bool { return b.ProductID == productID && b.Status.IsOpen() }), nil
}

func (m *mockBidRepo) FindOpenByBuyer(ctx context.Context, productID, buyerID string) (*model.Bid, error) {
	open := m.list(func(b *model.Bid) bool {
		return b.ProductID == productID && b.BuyerID == buyerID && b.Status.IsOpen()
	})
	if len(open) == 0 {
		return nil, nil
	}
	return open[0], nil
}

func (m *mockBidRepo) UpdateStatus(ctx context.Context, id string, from []model.BidStatus, to model.BidStatus) (bool, error) {
	b, ok := m.bids[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *mockBidRepo) SetEscrow(ctx context.Context, bidID, escrowID string) error {
	if b, ok := m.bids[bidID]; ok {
		b.EscrowID = &escrowID
	}
	return nil
}

// mockEscrowRepo runs the deal transactions against the bid and product
// mocks so multi-record transitions can be asserted end to end.
type mockEscrowRepo struct {
	escrows  map[string]*model.EscrowTransaction
	bids     *mockBidRepo
	products *mockProductRepo
	seq      int

	acceptErr error
}

func newMockEscrowRepo(bids *mockBidRepo, products *mockProductRepo) *mockEscrowRepo {
	return &mockEscrowRepo{
		escrows:  make(map[string]*model.EscrowTransaction),
		bids:     bids,
		products: products,
	}
}

func (m *mockEscrowRepo) put(e *model.EscrowTransaction) *model.EscrowTransaction {
	m.escrows[e.ID] = e
	return e
}

func (m *mockEscrowRepo) Create(ctx context.Context, e *model.EscrowTransaction) error {
	m.seq++
	e.ID = fmt.Sprintf("escrow_transactions:%d", m.seq)
	cp := *e
	m.escrows[e.ID] = &cp
	return nil
}

func (m *mockEscrowRepo) GetByID(ctx context.Context, id string) (*model.EscrowTransaction, error) {
	e, ok := m.escrows[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *mockEscrowRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*model.EscrowTransaction, error) {
	for _, e := range m.escrows {
		if e.PaymentIntentID == intentID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockEscrowRepo) GetByBid(ctx context.Context, bidID string) (*model.EscrowTransaction, error) {
	for _, e := range m.escrows {
		if e.BidID == bidID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockEscrowRepo) ListByUser(ctx context.Context, userID string) ([]*model.EscrowTransaction, error) {
	var out []*model.EscrowTransaction
	for _, e := range m.escrows {
		if e.IsParty(userID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEscrowRepo) UpdateStatus(ctx context.Context, id string, from []model.EscrowStatus, to model.EscrowStatus, reason *string) (*model.EscrowTransaction, error) {
	e, ok := m.escrows[id]
	if !ok {
		return nil, nil
	}
	for _, s := range from {
		if e.Status == s {
			e.Status = to
			if reason != nil {
				e.CancelReason = reason
			}
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockEscrowRepo) AcceptDeal(ctx context.Context, escrowID, bidID, productID string, rejectBidIDs []string) error {
	if m.acceptErr != nil {
		return m.acceptErr
	}
	e := m.escrows[escrowID]
	b := m.bids.bids[bidID]
	p := m.products.products[productID]
	if e == nil || b == nil || p == nil ||
		e.Status != model.EscrowFundsHeld || b.Status != model.BidStatusPending || p.Status != model.ListingStatusApproved {
		return ErrDealStateChanged
	}
	e.Status = model.EscrowTransferInProgress
	b.Status = model.BidStatusAccepted
	p.Status = model.ListingStatusUnderOffer
	p.WinningBidID = &bidID
	for _, id := range rejectBidIDs {
		if other := m.bids.bids[id]; other != nil && other.Status == model.BidStatusPending {
			other.Status = model.BidStatusRejected
		}
	}
	return nil
}

func (m *mockEscrowRepo) CompleteDeal(ctx context.Context, escrowID, bidID, productID string) error {
	e := m.escrows[escrowID]
	if e == nil || (e.Status != model.EscrowTransferInProgress && e.Status != model.EscrowAwaitingConfirmation) {
		return ErrDealStateChanged
	}
	e.Status = model.EscrowCompleted
	if b := m.bids.bids[bidID]; b != nil {
		b.Status = model.BidStatusCompleted
	}
	if p := m.products.products[productID]; p != nil {
		p.Status = model.ListingStatusSold
	}
	return nil
}

func (m *mockEscrowRepo) CancelDeal(ctx context.Context, escrowID, bidID, productID string, bidStatus model.BidStatus, reason *string) error {
	e := m.escrows[escrowID]
	if e == nil || e.Status.IsTerminal() {
		return ErrDealStateChanged
	}
	e.Status = model.EscrowCancelled
	e.CancelReason = reason
	if b := m.bids.bids[bidID]; b != nil && (b.Status == model.BidStatusPending || b.Status == model.BidStatusAccepted) {
		b.Status = bidStatus
	}
	if p := m.products.products[productID]; p != nil && p.Status == model.ListingStatusUnderOffer &&
		p.WinningBidID != nil && *p.WinningBidID == bidID {
		p.Status = model.ListingStatusApproved
		p.WinningBidID = nil
	}
	return nil
}

func (m *mockEscrowRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	for _, e := range m.escrows {
		out[string(e.Status)]++
	}
	return out, nil
}

func (m *mockEscrowRepo) CompletedVolume(ctx context.Context) (int64, error) {
	var total int64
	for _, e := range m.escrows {
		if e.Status == model.EscrowCompleted {
			total += e.Amount
		}
	}
	return total, nil
}

type mockNDARepo struct {
	signed map[string]*model.NDASignature // product|user
}

func newMockNDARepo() *mockNDARepo {
	return &mockNDARepo{signed: make(map[string]*model.NDASignature)}
}

func (m *mockNDARepo) Sign(ctx context.Context, sig *model.NDASignature) (*model.NDASignature, error) {
	key := sig.ProductID + "|" + sig.UserID
	if existing, ok := m.signed[key]; ok {
		return existing, nil
	}
	sig.ID = "nda_signatures:" + key
	sig.SignedOn = time.Now()
	m.signed[key] = sig
	return sig, nil
}

func (m *mockNDARepo) Has(ctx context.Context, productID, userID string) (bool, error) {
	_, ok := m.signed[productID+"|"+userID]
	return ok, nil
}

type mockViewCounter struct {
	counts map[string]int64
}

func newMockViewCounter() *mockViewCounter {
	return &mockViewCounter{counts: make(map[string]int64)}
}

func (m *mockViewCounter) Incr(ctx context.Context, productID string) error {
	m.counts[productID]++
	return nil
}

func (m *mockViewCounter) Drain(ctx context.Context) (map[string]int64, error) {
	out := m.counts
	m.counts = make(map[string]int64)
	return out, nil
}

type mockPurchaseRepo struct {
	purchases map[string]*model.PackagePurchase
	seq       int
}

func newMockPurchaseRepo() *mockPurchaseRepo {
	return &mockPurchaseRepo{purchases: make(map[string]*model.PackagePurchase)}
}

func (m *mockPurchaseRepo) Create(ctx context.Context, p *model.PackagePurchase) error {
	m.seq++
	p.ID = fmt.Sprintf("package_purchases:%d", m.seq)
	cp := *p
	m.purchases[p.ID] = &cp
	return nil
}

func (m *mockPurchaseRepo) GetByID(ctx context.Context, id string) (*model.PackagePurchase, error) {
	p, ok := m.purchases[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockPurchaseRepo) GetBySession(ctx context.Context, sessionID string) (*model.PackagePurchase, error) {
	for _, p := range m.purchases {
		if p.CheckoutSessionID != nil && *p.CheckoutSessionID == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockPurchaseRepo) SetSession(ctx context.Context, id, sessionID string) error {
	if p, ok := m.purchases[id]; ok {
		p.CheckoutSessionID = &sessionID
	}
	return nil
}

func (m *mockPurchaseRepo) MarkPaid(ctx context.Context, id string) (bool, error) {
	p, ok := m.purchases[id]
	if !ok || p.Status != model.PurchasePending {
		return false, nil
	}
	now := time.Now()
	p.Status = model.PurchasePaid
	p.PaidOn = &now
	return true, nil
}

func (m *mockPurchaseRepo) MarkCancelled(ctx context.Context, id string) (bool, error) {
	p, ok := m.purchases[id]
	if !ok || p.Status != model.PurchasePending {
		return false, nil
	}
	p.Status = model.PurchaseCancelled
	return true, nil
}

type mockPrefsRepo struct {
	prefs map[string]*model.InvestorPreferences
}

func newMockPrefsRepo() *mockPrefsRepo {
	return &mockPrefsRepo{prefs: make(map[string]*model.InvestorPreferences)}
}

func (m *mockPrefsRepo) Get(ctx context.Context, userID string) (*model.InvestorPreferences, error) {
	return m.prefs[userID], nil
}

func (m *mockPrefsRepo) Upsert(ctx context.Context, prefs *model.InvestorPreferences) (*model.InvestorPreferences, error) {
	prefs.UpdatedOn = time.Now()
	m.prefs[prefs.UserID] = prefs
	return prefs, nil
}

type mockLeadRepo struct {
	valuation []*model.ValuationLead
	buyer     []*model.BuyerMatchingLead
	linked    []string
}

func (m *mockLeadRepo) CreateValuationLead(ctx context.Context, lead *model.ValuationLead) error {
	lead.ID = fmt.Sprintf("valuation_leads:%d", len(m.valuation)+1)
	m.valuation = append(m.valuation, lead)
	return nil
}

func (m *mockLeadRepo) ListValuationLeadsByUser(ctx context.Context, userID string) ([]*model.ValuationLead, error) {
	var out []*model.ValuationLead
	for _, l := range m.valuation {
		if l.UserID != nil && *l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLeadRepo) CreateBuyerLead(ctx context.Context, lead *model.BuyerMatchingLead) error {
	lead.ID = fmt.Sprintf("buyer_matching_leads:%d", len(m.buyer)+1)
	m.buyer = append(m.buyer, lead)
	return nil
}

func (m *mockLeadRepo) LinkByEmail(ctx context.Context, userID string, emails []string) (int, int, error) {
	m.linked = append(m.linked, emails...)
	v, b := 0, 0
	for _, l := range m.valuation {
		for _, e := range emails {
			if l.UserID == nil && strings.EqualFold(l.Email, e) {
				id := userID
				l.UserID = &id
				v++
			}
		}
	}
	for _, l := range m.buyer {
		for _, e := range emails {
			if l.UserID == nil && strings.EqualFold(l.Email, e) {
				id := userID
				l.UserID = &id
				b++
			}
		}
	}
	return v, b, nil
}

func (m *mockLeadRepo) CountLeads(ctx context.Context) (int, int, error) {
	return len(m.valuation), len(m.buyer), nil
}

type mockFeedbackRepo struct {
	feedback []*model.TransactionFeedback
	prompts  []*model.FeedbackPrompt
}

func (m *mockFeedbackRepo) Create(ctx context.Context, fb *model.TransactionFeedback) error {
	for _, f := range m.feedback {
		if f.EscrowID == fb.EscrowID && f.AuthorID == fb.AuthorID {
			return database.ErrDuplicate
		}
	}
	fb.ID = fmt.Sprintf("transaction_feedback:%d", len(m.feedback)+1)
	m.feedback = append(m.feedback, fb)
	return nil
}

func (m *mockFeedbackRepo) GetByEscrowAuthor(ctx context.Context, escrowID, authorID string) (*model.TransactionFeedback, error) {
	for _, f := range m.feedback {
		if f.EscrowID == escrowID && f.AuthorID == authorID {
			return f, nil
		}
	}
	return nil, nil
}

func (m *mockFeedbackRepo) ListForSubject(ctx context.Context, subjectID string, limit int) ([]*model.TransactionFeedback, error) {
	var out []*model.TransactionFeedback
	for _, f := range m.feedback {
		if f.SubjectID == subjectID && len(out) < limit {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockFeedbackRepo) SummaryForSubject(ctx context.Context, subjectID string) (int, float64, int, error) {
	count, sum, recommend := 0, 0, 0
	for _, f := range m.feedback {
		if f.SubjectID != subjectID {
			continue
		}
		count++
		sum += f.Rating
		if f.WouldRecommend {
			recommend++
		}
	}
	if count == 0 {
		return 0, 0, 0, nil
	}
	return count, float64(sum) / float64(count), recommend, nil
}

func (m *mockFeedbackRepo) ListPrompts(ctx context.Context, userID string) ([]*model.FeedbackPrompt, error) {
	return m.prompts, nil
}

type mockConversationRepo struct {
	conversations map[string]*model.Conversation
	messages      map[string][]*model.Message
	seq           int
	createErr     error
}

func newMockConversationRepo() *mockConversationRepo {
	return &mockConversationRepo{
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]*model.Message),
	}
}

func (m *mockConversationRepo) Create(ctx context.Context, c *model.Conversation) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	c.ID = fmt.Sprintf("conversations:%d", m.seq)
	m.conversations[c.ID] = c
	return nil
}

func (m *mockConversationRepo) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	return m.conversations[id], nil
}

func (m *mockConversationRepo) GetByProductBuyer(ctx context.Context, productID, buyerID string) (*model.Conversation, error) {
	for _, c := range m.conversations {
		if c.ProductID == productID && c.BuyerID == buyerID {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockConversationRepo) ListForUser(ctx context.Context, userID string) ([]*model.ConversationSummary, error) {
	var out []*model.ConversationSummary
	for _, c := range m.conversations {
		if c.BuyerID == userID || c.SellerID == userID {
			out = append(out, &model.ConversationSummary{Conversation: c})
		}
	}
	return out, nil
}

func (m *mockConversationRepo) AddMessage(ctx context.Context, c *model.Conversation, msg *model.Message) error {
	msg.ID = fmt.Sprintf("messages:%d", len(m.messages[c.ID])+1)
	msg.CreatedOn = time.Now()
	m.messages[c.ID] = append(m.messages[c.ID], msg)
	return nil
}

func (m *mockConversationRepo) ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]*model.Message, error) {
	msgs := m.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *mockConversationRepo) MarkRead(ctx context.Context, c *model.Conversation, userID string) error {
	return nil
}

// ============================================================================
// Mock Collaborators
// ============================================================================

// mockGateway is an in-memory payment processor. Intents are created in
// requires_payment_method and tests move them with setIntent.
type mockGateway struct {
	mu       sync.Mutex
	intents  map[string]*payments.Intent
	sessions map[string]*payments.CheckoutSession
	seq      int

	createIntentErr error
	captureErr      error
	cancelErr       error
	webhookEvent    *payments.WebhookEvent
	webhookErr      error

	captured  []string
	cancelled []string
	checkouts []payments.CheckoutParams
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		intents:  make(map[string]*payments.Intent),
		sessions: make(map[string]*payments.CheckoutSession),
	}
}

func (m *mockGateway) setIntent(id string, status payments.IntentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.intents[id]; ok {
		in.Status = status
		return
	}
	m.intents[id] = &payments.Intent{ID: id, Status: status}
}

func (m *mockGateway) CreateIntent(ctx context.Context, p payments.CreateIntentParams) (*payments.Intent, error) {
	if m.createIntentErr != nil {
		return nil, m.createIntentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("pi_%d", m.seq)
	in := &payments.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       payments.IntentRequiresPaymentMethod,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Metadata:     p.Metadata,
	}
	m.intents[id] = in
	cp := *in
	return &cp, nil
}

func (m *mockGateway) GetIntent(ctx context.Context, id string) (*payments.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[id]
	if !ok {
		return nil, &payments.Error{Op: "get_intent", Code: "resource_missing"}
	}
	cp := *in
	return &cp, nil
}

func (m *mockGateway) CaptureIntent(ctx context.Context, id, idempotencyKey string) (*payments.Intent, error) {
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured = append(m.captured, id)
	in, ok := m.intents[id]
	if !ok {
		in = &payments.Intent{ID: id}
		m.intents[id] = in
	}
	in.Status = payments.IntentSucceeded
	cp := *in
	return &cp, nil
}

func (m *mockGateway) CancelIntent(ctx context.Context, id string) (*payments.Intent, error) {
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, id)
	in, ok := m.intents[id]
	if !ok {
		in = &payments.Intent{ID: id}
		m.intents[id] = in
	}
	in.Status = payments.IntentCanceled
	cp := *in
	return &cp, nil
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, p payments.CheckoutParams) (*payments.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.checkouts = append(m.checkouts, p)
	s := &payments.CheckoutSession{
		ID:                fmt.Sprintf("cs_%d", m.seq),
		Mode:              p.Mode,
		Status:            "open",
		PaymentStatus:     "unpaid",
		ClientReferenceID: p.ClientReferenceID,
		Metadata:          p.Metadata,
	}
	s.URL = "https://checkout.test/" + s.ID
	m.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (m *mockGateway) completeSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Status = "complete"
		s.PaymentStatus = "paid"
	}
}

func (m *mockGateway) GetCheckoutSession(ctx context.Context, id string) (*payments.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, &payments.Error{Op: "get_checkout_session", Code: "resource_missing"}
	}
	cp := *s
	return &cp, nil
}

func (m *mockGateway) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	if m.webhookErr != nil {
		return nil, m.webhookErr
	}
	return m.webhookEvent, nil
}

type sentEmail struct {
	To       string
	Template email.Template
	Data     email.Data
}

type mockMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *mockMailer) Send(ctx context.Context, to string, name email.Template, data email.Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{To: to, Template: name, Data: data})
	return m.err
}

func (m *mockMailer) templates() []email.Template {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]email.Template, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.Template)
	}
	return out
}

type mockPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockPublisher) SendToUser(userID string, event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.UserID = userID
	m.events = append(m.events, event)
}

func (m *mockPublisher) count(userID string, t EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.UserID == userID && e.Type == t {
			n++
		}
	}
	return n
}

// ============================================================================
// Fixtures
// ============================================================================

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func mustCatalog() *catalog.Catalog {
	c, err := catalog.Default()
	if err != nil {
		panic(err)
	}
	return c
}

func buyNowListing(id, sellerID string, status model.ListingStatus) *model.Product {
	return &model.Product{
		ID:             id,
		SellerID:       sellerID,
		Title:          "Summarizer SaaS",
		Description:    "An AI meeting summarizer with paying teams",
		Category:       "productivity",
		BusinessModel:  "subscription",
		ListingType:    model.ListingTypeBuyNow,
		AskingPrice:    5_000_000,
		MonthlyRevenue: 150_000,
		Status:         status,
	}
}

func auctionListing(id, sellerID string, status model.ListingStatus) *model.Product {
	p := buyNowListing(id, sellerID, status)
	p.ListingType = model.ListingTypeAuction
	p.Auction = &model.AuctionSettings{
		StartPrice:       1_000_000,
		ReservePrice:     400_000,
		StartsAt:         testNow.Add(-2 * time.Hour),
		EndsAt:           testNow.Add(10 * time.Hour),
		DropIntervalMins: 60,
		DropAmount:       100_000,
	}
	p.AskingPrice = p.Auction.StartPrice
	return p
}

// dealFixture wires the bid and escrow services over shared mocks
type dealFixture struct {
	products *mockProductRepo
	bids     *mockBidRepo
	escrows  *mockEscrowRepo
	profiles *mockProfileRepo
	users    *mockUserRepo
	gateway  *mockGateway
	mailer   *mockMailer
	events   *mockPublisher
	notifier *Notifier
	escrow   *EscrowService
	bid      *BidService
}

func newDealFixture() *dealFixture {
	f := &dealFixture{
		products: newMockProductRepo(),
		bids:     newMockBidRepo(),
		profiles: newMockProfileRepo(),
		users:    newMockUserRepo(),
		gateway:  newMockGateway(),
		mailer:   &mockMailer{},
		events:   &mockPublisher{},
	}
	f.escrows = newMockEscrowRepo(f.bids, f.products)
	f.notifier = NewNotifier(NotifierConfig{
		Mailer:      f.mailer,
		UserRepo:    f.users,
		ProfileRepo: f.profiles,
		BaseURL:     "https://exitlane.test",
	})
	f.escrow = NewEscrowService(EscrowServiceConfig{
		EscrowRepo:  f.escrows,
		BidRepo:     f.bids,
		ProductRepo: f.products,
		Gateway:     f.gateway,
		Events:      f.events,
		Notifier:    f.notifier,
	})
	f.escrow.now = fixedClock
	f.bid = NewBidService(BidServiceConfig{
		BidRepo:     f.bids,
		ProductRepo: f.products,
		EscrowRepo:  f.escrows,
		Escrow:      f.escrow,
		Gateway:     f.gateway,
		Catalog:     mustCatalog(),
	})
	f.bid.now = fixedClock
	f.users.add("user:seller", "seller@example.com")
	f.users.add("user:buyer", "buyer@example.com")
	f.users.add("user:buyer2", "buyer2@example.com")
	return f
}

// fund moves the bid's hold to requires_capture and applies it
func (f *dealFixture) fund(ctx context.Context, e *model.EscrowTransaction) (*model.EscrowTransaction, error) {
	f.gateway.setIntent(e.PaymentIntentID, payments.IntentRequiresCapture)
	intent, _ := f.gateway.GetIntent(ctx, e.PaymentIntentID)
	return f.escrow.ApplyIntent(ctx, e, intent)
}
