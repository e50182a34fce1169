package repository

import (
	"context"
	"fmt"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// BidRepository handles offer and auction bid data access
type BidRepository struct {
	db database.Database
}

// NewBidRepository creates a new bid repository
func NewBidRepository(db database.Database) *BidRepository {
	return &BidRepository{db: db}
}

var bidLinks = map[string]string{
	"product": "product_id",
	"buyer":   "buyer_id",
	"seller":  "seller_id",
	"escrow":  "escrow_id",
}

// Create creates a new bid
func (r *BidRepository) Create(ctx context.Context, bid *model.Bid) error {
	if bid.Status == "" {
		bid.Status = model.BidStatusPending
	}

	query := `
		CREATE bids SET
			product = type::record($product_id),
			buyer = type::record($buyer_id),
			seller = type::record($seller_id),
			amount = $amount,
			message = IF $message IS NOT NULL THEN $message ELSE NONE END,
			kind = $kind,
			status = $status,
			below_asking = $below_asking,
			created_on = time::now(),
			updated_on = time::now()
	`
	vars := map[string]interface{}{
		"product_id":   bid.ProductID,
		"buyer_id":     bid.BuyerID,
		"seller_id":    bid.SellerID,
		"amount":       bid.Amount,
		"message":      optional(bid.Message),
		"kind":         bid.Kind,
		"status":       bid.Status,
		"below_asking": bid.BelowAsking,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}

	id, created, err := createdID(result)
	if err != nil {
		return err
	}
	bid.ID = id
	bid.CreatedOn = created
	bid.UpdatedOn = created
	return nil
}

// GetByID retrieves a bid by ID
func (r *BidRepository) GetByID(ctx context.Context, id string) (*model.Bid, error) {
	bid, _, err := queryOne[model.Bid](ctx, r.db, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id}, bidLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// ListByProduct returns the bids on a listing, highest first
func (r *BidRepository) ListByProduct(ctx context.Context, productID string) ([]*model.Bid, error) {
	query := `SELECT * FROM bids WHERE product = type::record($product) ORDER BY amount DESC, created_on ASC`
	return r.list(ctx, query, map[string]interface{}{"product": productID})
}

// ListByBuyer returns a buyer's bids, newest first
func (r *BidRepository) ListByBuyer(ctx context.Context, buyerID string) ([]*model.Bid, error) {
	query := `SELECT * FROM bids WHERE buyer = type::record($buyer) ORDER BY created_on DESC`
	return r.list(ctx, query, map[string]interface{}{"buyer": buyerID})
}

// ListOpenByProduct returns the pending bids on a listing
func (r *BidRepository) ListOpenByProduct(ctx context.Context, productID string) ([]*model.Bid, error) {
	query := `SELECT * FROM bids WHERE product = type::record($product) AND status = 'pending' ORDER BY created_on ASC`
	return r.list(ctx, query, map[string]interface{}{"product": productID})
}

// FindOpenByBuyer returns the buyer's pending bid on a listing, if any
func (r *BidRepository) FindOpenByBuyer(ctx context.Context, productID, buyerID string) (*model.Bid, error) {
	query := `
		SELECT * FROM bids
		WHERE product = type::record($product) AND buyer = type::record($buyer) AND status = 'pending'
		LIMIT 1
	`
	vars := map[string]interface{}{"product": productID, "buyer": buyerID}
	bid, _, err := queryOne[model.Bid](ctx, r.db, query, vars, bidLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to find open bid: %w", err)
	}
	return bid, nil
}

func (r *BidRepository) list(ctx context.Context, query string, vars map[string]interface{}) ([]*model.Bid, error) {
	bids, err := queryMany[model.Bid](ctx, r.db, query, vars, bidLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

// UpdateStatus moves a bid out of one of from. It reports whether the bid changed.
func (r *BidRepository) UpdateStatus(ctx context.Context, id string, from []model.BidStatus, to model.BidStatus) (bool, error) {
	query := `
		UPDATE type::record($id) SET
			status = $to,
			responded_on = IF responded_on IS NONE THEN time::now() ELSE responded_on END,
			updated_on = time::now()
		WHERE status IN $from
		RETURN id
	`
	vars := map[string]interface{}{"id": id, "to": to, "from": statusStrings(from)}
	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return false, fmt.Errorf("failed to update bid status: %w", err)
	}
	return len(statementRows(result, 0)) > 0, nil
}

// SetEscrow links a bid to its escrow transaction
func (r *BidRepository) SetEscrow(ctx context.Context, bidID, escrowID string) error {
	query := `UPDATE type::record($id) SET escrow = type::record($escrow), updated_on = time::now()`
	if err := r.db.Execute(ctx, query, map[string]interface{}{"id": bidID, "escrow": escrowID}); err != nil {
		return fmt.Errorf("failed to link bid escrow: %w", err)
	}
	return nil
}
