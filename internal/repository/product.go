package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// ProductRepository handles listing data access
type ProductRepository struct {
	db database.Database
}

// NewProductRepository creates a new product repository
func NewProductRepository(db database.Database) *ProductRepository {
	return &ProductRepository{db: db}
}

var productLinks = map[string]string{
	"seller":      "seller_id",
	"reviewed_by": "reviewed_by_id",
	"winning_bid": "winning_bid_id",
}

// publicStatuses are the statuses shown in browse
var publicStatuses = []string{string(model.ListingStatusApproved), string(model.ListingStatusUnderOffer)}

// Create creates a new listing
func (r *ProductRepository) Create(ctx context.Context, p *model.Product) error {
	if p.Status == "" {
		p.Status = model.ListingStatusDraft
	}

	sets := newSetClause(map[string]interface{}{"seller_id": p.SellerID})
	sets.expr("seller = type::record($seller_id)")
	r.writeFields(sets, p)
	sets.set("status", p.Status)
	sets.set("featured", false)
	sets.set("view_count", 0)
	sets.expr("created_on = time::now()")
	sets.expr("updated_on = time::now()")

	result, err := r.db.Query(ctx, "CREATE products SET "+sets.String(), sets.vars)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	id, created, err := createdID(result)
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedOn = created
	p.UpdatedOn = created
	return nil
}

// writeFields binds every seller-editable field
func (r *ProductRepository) writeFields(sets *setClause, p *model.Product) {
	sets.set("title", p.Title)
	setNullable(sets, "tagline", p.Tagline)
	sets.set("description", p.Description)
	sets.set("category", p.Category)
	sets.set("business_model", p.BusinessModel)
	sets.set("tech_stack", stringsOrEmpty(p.TechStack))
	sets.set("ai_models", stringsOrEmpty(p.AIModels))
	sets.set("age_months", p.AgeMonths)
	sets.set("monthly_revenue", p.MonthlyRevenue)
	sets.set("asking_price", p.AskingPrice)
	setNullable(sets, "monthly_profit", p.MonthlyProfit)
	setNullable(sets, "monthly_visitors", p.MonthlyVisitors)
	setNullable(sets, "customers", p.Customers)
	sets.set("requires_nda", p.RequiresNDA)
	setNullable(sets, "website_url", p.WebsiteURL)
	setNullable(sets, "confidential_details", p.ConfidentialDetails)
	setNullable(sets, "financials_url", p.FinancialsURL)
	sets.set("listing_type", p.ListingType)

	if p.Auction == nil {
		sets.expr("auction = NONE")
		return
	}
	a := p.Auction
	sets.vars["auction_start_price"] = a.StartPrice
	sets.vars["auction_reserve_price"] = a.ReservePrice
	sets.vars["auction_starts_at"] = formatTime(a.StartsAt)
	sets.vars["auction_ends_at"] = formatTime(a.EndsAt)
	sets.vars["auction_interval"] = a.DropIntervalMins
	sets.vars["auction_drop"] = a.DropAmount
	sets.expr(`auction = {
		start_price: $auction_start_price,
		reserve_price: $auction_reserve_price,
		starts_at: <datetime>$auction_starts_at,
		ends_at: <datetime>$auction_ends_at,
		drop_interval_minutes: $auction_interval,
		drop_amount: $auction_drop
	}`)
}

// GetByID retrieves a listing by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	query := `SELECT * FROM type::record($id)`
	p, _, err := queryOne[model.Product](ctx, r.db, query, map[string]interface{}{"id": id}, productLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return p, nil
}

// Update writes the editable fields and status of a listing
func (r *ProductRepository) Update(ctx context.Context, p *model.Product) error {
	sets := newSetClause(map[string]interface{}{"id": p.ID})
	r.writeFields(sets, p)
	sets.set("status", p.Status)
	setNullable(sets, "admin_feedback", p.AdminFeedback)
	setNullableTime(sets, "submitted_on", p.SubmittedOn)
	sets.expr("updated_on = time::now()")

	if err := r.db.Execute(ctx, "UPDATE type::record($id) SET "+sets.String(), sets.vars); err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return nil
}

// UpdateStatus moves a listing to status when it is currently in one of from.
// It reports whether the listing changed.
func (r *ProductRepository) UpdateStatus(ctx context.Context, id string, from []model.ListingStatus, to model.ListingStatus) (bool, error) {
	query := `
		UPDATE type::record($id) SET
			status = $to,
			submitted_on = IF $to = 'pending_review' THEN time::now() ELSE submitted_on END,
			updated_on = time::now()
		WHERE status IN $from
		RETURN id
	`
	vars := map[string]interface{}{"id": id, "to": to, "from": statusStrings(from)}
	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return false, fmt.Errorf("failed to update listing status: %w", err)
	}
	return len(statementRows(result, 0)) > 0, nil
}

// Review records a moderation decision on a listing pending review.
// It returns nil when the listing is no longer pending review.
func (r *ProductRepository) Review(ctx context.Context, id string, status model.ListingStatus, feedback *string, reviewerID string) (*model.Product, error) {
	query := `
		UPDATE type::record($id) SET
			status = $status,
			admin_feedback = IF $feedback IS NOT NULL THEN $feedback ELSE NONE END,
			reviewed_by = type::record($reviewer),
			reviewed_on = time::now(),
			updated_on = time::now()
		WHERE status = 'pending_review'
		RETURN AFTER
	`
	vars := map[string]interface{}{
		"id":       id,
		"status":   status,
		"feedback": optional(feedback),
		"reviewer": reviewerID,
	}
	p, _, err := queryOne[model.Product](ctx, r.db, query, vars, productLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to review listing: %w", err)
	}
	return p, nil
}

// SetFeatured sets the featured placement and optionally the purchased package
func (r *ProductRepository) SetFeatured(ctx context.Context, id string, featured bool, until *time.Time, pkg *string) error {
	sets := newSetClause(map[string]interface{}{"id": id})
	sets.set("featured", featured)
	setNullableTime(sets, "featured_until", until)
	setIfPresent(sets, "package", pkg)
	sets.expr("updated_on = time::now()")

	if err := r.db.Execute(ctx, "UPDATE type::record($id) SET "+sets.String(), sets.vars); err != nil {
		return fmt.Errorf("failed to set featured: %w", err)
	}
	return nil
}

// Browse returns publicly visible listings matching the filter.
// Featured listings sort first. limit is passed through so callers can over-fetch by one.
func (r *ProductRepository) Browse(ctx context.Context, f *model.ListingFilter, limit int, now time.Time) ([]*model.Product, error) {
	conds := []string{"status IN $statuses"}
	vars := map[string]interface{}{
		"statuses": publicStatuses,
		"now":      formatTime(now),
		"limit":    limit,
		"offset":   f.Offset,
	}

	switch f.Kind {
	case model.ListingKindBuyNow, model.ListingKindAuction:
		conds = append(conds, "listing_type = $kind")
		vars["kind"] = string(f.Kind)
	}
	if f.Category != "" {
		conds = append(conds, "category = $category")
		vars["category"] = f.Category
	}
	if f.MinPrice != nil {
		conds = append(conds, "asking_price >= $min_price")
		vars["min_price"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		conds = append(conds, "asking_price <= $max_price")
		vars["max_price"] = *f.MaxPrice
	}
	if f.MinMRR != nil {
		conds = append(conds, "monthly_revenue >= $min_mrr")
		vars["min_mrr"] = *f.MinMRR
	}
	if f.Search != "" {
		conds = append(conds, "(string::lowercase(title) CONTAINS $search OR string::lowercase(description) CONTAINS $search)")
		vars["search"] = strings.ToLower(f.Search)
	}

	order := "created_on DESC"
	switch f.Sort {
	case model.SortPriceAsc:
		order = "asking_price ASC"
	case model.SortPriceDesc:
		order = "asking_price DESC"
	case model.SortMRRDesc:
		order = "monthly_revenue DESC"
	case model.SortEndingSoon:
		conds = append(conds, "listing_type = 'auction'", "auction.ends_at > <datetime>$now")
		order = "auction.ends_at ASC"
	}

	query := fmt.Sprintf(`
		SELECT *, (featured = true AND (featured_until IS NONE OR featured_until > <datetime>$now)) AS featured_rank
		FROM products
		WHERE %s
		ORDER BY featured_rank DESC, %s
		LIMIT $limit START $offset
	`, strings.Join(conds, " AND "), order)

	products, err := queryMany[model.Product](ctx, r.db, query, vars, productLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to browse listings: %w", err)
	}
	return products, nil
}

// ListBySeller returns every listing of a seller, newest first
func (r *ProductRepository) ListBySeller(ctx context.Context, sellerID string) ([]*model.Product, error) {
	query := `SELECT * FROM products WHERE seller = type::record($seller) ORDER BY created_on DESC`
	products, err := queryMany[model.Product](ctx, r.db, query, map[string]interface{}{"seller": sellerID}, productLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller listings: %w", err)
	}
	return products, nil
}

// ListByStatus returns listings in a status, oldest submission first
func (r *ProductRepository) ListByStatus(ctx context.Context, status model.ListingStatus, limit, offset int) ([]*model.Product, error) {
	query := `
		SELECT * FROM products
		WHERE status = $status
		ORDER BY submitted_on ASC, created_on ASC
		LIMIT $limit START $offset
	`
	vars := map[string]interface{}{"status": status, "limit": limit, "offset": offset}
	products, err := queryMany[model.Product](ctx, r.db, query, vars, productLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings by status: %w", err)
	}
	return products, nil
}

// ListApproved returns approved listings for matching
func (r *ProductRepository) ListApproved(ctx context.Context, limit int) ([]*model.Product, error) {
	query := `SELECT * FROM products WHERE status = 'approved' ORDER BY created_on DESC LIMIT $limit`
	products, err := queryMany[model.Product](ctx, r.db, query, map[string]interface{}{"limit": limit}, productLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved listings: %w", err)
	}
	return products, nil
}

// ListAuctionsToFinalize returns auctions whose result email has not gone out:
// those with a winner, and approved ones whose end has passed.
func (r *ProductRepository) ListAuctionsToFinalize(ctx context.Context, now time.Time) ([]*model.Product, error) {
	query := `
		SELECT * FROM products
		WHERE listing_type = 'auction'
			AND result_notified_on IS NONE
			AND (winning_bid IS NOT NONE OR (status = 'approved' AND auction.ends_at <= <datetime>$now))
		ORDER BY auction.ends_at ASC
		LIMIT 100
	`
	products, err := queryMany[model.Product](ctx, r.db, query, map[string]interface{}{"now": formatTime(now)}, productLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions to finalize: %w", err)
	}
	return products, nil
}

// MarkResultNotified stamps the auction result email. When ended is set an
// approved listing also moves to ended.
func (r *ProductRepository) MarkResultNotified(ctx context.Context, id string, ended bool) error {
	query := `
		UPDATE type::record($id) SET
			result_notified_on = time::now(),
			status = IF $ended AND status = 'approved' THEN 'ended' ELSE status END,
			updated_on = time::now()
	`
	if err := r.db.Execute(ctx, query, map[string]interface{}{"id": id, "ended": ended}); err != nil {
		return fmt.Errorf("failed to mark auction result: %w", err)
	}
	return nil
}

// AddViews adds flushed view counts to their listings in one transaction
func (r *ProductRepository) AddViews(ctx context.Context, counts map[string]int64) error {
	batch := database.NewAtomicBatch()
	for id, n := range counts {
		if n <= 0 {
			continue
		}
		batch.Add(`UPDATE type::record($id) SET view_count += $n`, map[string]interface{}{"id": id, "n": n})
	}
	if err := batch.Execute(ctx, r.db); err != nil {
		return fmt.Errorf("failed to add listing views: %w", err)
	}
	return nil
}

// CountByStatus counts listings grouped by status
func (r *ProductRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	result, err := r.db.Query(ctx, `SELECT status, count() AS count FROM products GROUP BY status`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}
	return groupCounts(result, "status"), nil
}

func statusStrings[S ~string](in []S) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
