package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/service"
)

// EscrowRepository handles escrow transaction data access
type EscrowRepository struct {
	db database.Database
}

// NewEscrowRepository creates a new escrow repository
func NewEscrowRepository(db database.Database) *EscrowRepository {
	return &EscrowRepository{db: db}
}

var escrowLinks = map[string]string{
	"product": "product_id",
	"bid":     "bid_id",
	"buyer":   "buyer_id",
	"seller":  "seller_id",
}

// Create creates a new escrow transaction
func (r *EscrowRepository) Create(ctx context.Context, e *model.EscrowTransaction) error {
	if e.Status == "" {
		e.Status = model.EscrowPendingPayment
	}

	query := `
		CREATE escrow_transactions SET
			product = type::record($product_id),
			bid = type::record($bid_id),
			buyer = type::record($buyer_id),
			seller = type::record($seller_id),
			amount = $amount,
			buyer_fee = $buyer_fee,
			total_charged = $total_charged,
			currency = $currency,
			payment_intent_id = $payment_intent_id,
			status = $status,
			created_on = time::now(),
			updated_on = time::now()
	`
	vars := map[string]interface{}{
		"product_id":        e.ProductID,
		"bid_id":            e.BidID,
		"buyer_id":          e.BuyerID,
		"seller_id":         e.SellerID,
		"amount":            e.Amount,
		"buyer_fee":         e.BuyerFee,
		"total_charged":     e.TotalCharged,
		"currency":          e.Currency,
		"payment_intent_id": e.PaymentIntentID,
		"status":            e.Status,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("failed to create escrow: %w", err)
	}

	id, created, err := createdID(result)
	if err != nil {
		return err
	}
	e.ID = id
	e.CreatedOn = created
	e.UpdatedOn = created
	return nil
}

// GetByID retrieves an escrow transaction by ID
func (r *EscrowRepository) GetByID(ctx context.Context, id string) (*model.EscrowTransaction, error) {
	return r.getOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
}

// GetByPaymentIntent retrieves the escrow holding a payment intent
func (r *EscrowRepository) GetByPaymentIntent(ctx context.Context, intentID string) (*model.EscrowTransaction, error) {
	query := `SELECT * FROM escrow_transactions WHERE payment_intent_id = $intent LIMIT 1`
	return r.getOne(ctx, query, map[string]interface{}{"intent": intentID})
}

// GetByBid retrieves the escrow backing a bid
func (r *EscrowRepository) GetByBid(ctx context.Context, bidID string) (*model.EscrowTransaction, error) {
	query := `SELECT * FROM escrow_transactions WHERE bid = type::record($bid) LIMIT 1`
	return r.getOne(ctx, query, map[string]interface{}{"bid": bidID})
}

func (r *EscrowRepository) getOne(ctx context.Context, query string, vars map[string]interface{}) (*model.EscrowTransaction, error) {
	e, _, err := queryOne[model.EscrowTransaction](ctx, r.db, query, vars, escrowLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	return e, nil
}

// ListByUser returns the escrows where the user is buyer or seller, newest first
func (r *EscrowRepository) ListByUser(ctx context.Context, userID string) ([]*model.EscrowTransaction, error) {
	query := `
		SELECT * FROM escrow_transactions
		WHERE buyer = type::record($user) OR seller = type::record($user)
		ORDER BY created_on DESC
	`
	escrows, err := queryMany[model.EscrowTransaction](ctx, r.db, query, map[string]interface{}{"user": userID}, escrowLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list escrows: %w", err)
	}
	return escrows, nil
}

// UpdateStatus moves an escrow from one of from to status and stamps the
// matching timestamp. It returns nil when the escrow was not in from.
func (r *EscrowRepository) UpdateStatus(ctx context.Context, id string, from []model.EscrowStatus, to model.EscrowStatus, reason *string) (*model.EscrowTransaction, error) {
	query := `
		UPDATE type::record($id) SET
			status = $to,
			funds_held_on = IF $to = 'funds_held' AND funds_held_on IS NONE THEN time::now() ELSE funds_held_on END,
			transfer_started_on = IF $to = 'transfer_in_progress' THEN time::now() ELSE transfer_started_on END,
			delivered_on = IF $to = 'awaiting_confirmation' THEN time::now() ELSE delivered_on END,
			cancelled_on = IF $to IN ['cancelled', 'refunded'] THEN time::now() ELSE cancelled_on END,
			cancel_reason = IF $reason IS NOT NULL THEN $reason ELSE cancel_reason END,
			updated_on = time::now()
		WHERE status IN $from
		RETURN AFTER
	`
	vars := map[string]interface{}{
		"id":     id,
		"to":     to,
		"from":   statusStrings(from),
		"reason": optional(reason),
	}
	e, _, err := queryOne[model.EscrowTransaction](ctx, r.db, query, vars, escrowLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to update escrow status: %w", err)
	}
	return e, nil
}

// AcceptDeal records a seller accepting a funded bid: the escrow starts the
// asset transfer, the bid is accepted and the others rejected, and the
// listing goes under offer. All or nothing.
func (r *EscrowRepository) AcceptDeal(ctx context.Context, escrowID, bidID, productID string, rejectBidIDs []string) error {
	vars := map[string]interface{}{"escrow": escrowID, "bid": bidID, "product": productID}
	batch := database.NewAtomicBatch().
		Add(`IF (SELECT VALUE status FROM ONLY type::record($escrow)) != 'funds_held' { THROW 'deal state changed: escrow not funded' }`, vars).
		Add(`IF (SELECT VALUE status FROM ONLY type::record($product)) != 'approved' { THROW 'deal state changed: listing not available' }`, vars).
		Add(`UPDATE type::record($escrow) SET status = 'transfer_in_progress', transfer_started_on = time::now(), updated_on = time::now()`, vars).
		Add(`UPDATE type::record($bid) SET status = 'accepted', responded_on = time::now(), updated_on = time::now()`, vars).
		Add(`UPDATE type::record($product) SET status = 'under_offer', winning_bid = type::record($bid), updated_on = time::now()`, vars)
	for _, id := range rejectBidIDs {
		batch.Add(`UPDATE type::record($id) SET status = 'rejected', responded_on = time::now(), updated_on = time::now() WHERE status = 'pending'`,
			map[string]interface{}{"id": id})
	}
	return r.runDeal(ctx, batch, "accept deal")
}

// CompleteDeal records the buyer confirming receipt after capture: the escrow
// completes, the bid completes and the listing is sold. All or nothing.
func (r *EscrowRepository) CompleteDeal(ctx context.Context, escrowID, bidID, productID string) error {
	vars := map[string]interface{}{"escrow": escrowID, "bid": bidID, "product": productID}
	batch := database.NewAtomicBatch().
		Add(`IF (SELECT VALUE status FROM ONLY type::record($escrow)) NOT IN ['transfer_in_progress', 'awaiting_confirmation'] { THROW 'deal state changed: escrow not in transfer' }`, vars).
		Add(`UPDATE type::record($escrow) SET status = 'completed', completed_on = time::now(), updated_on = time::now()`, vars).
		Add(`UPDATE type::record($bid) SET status = 'completed', updated_on = time::now()`, vars).
		Add(`UPDATE type::record($product) SET status = 'sold', updated_on = time::now()`, vars)
	return r.runDeal(ctx, batch, "complete deal")
}

// CancelDeal releases a hold: the escrow is cancelled, the bid moves to
// bidStatus and, when the bid had won the listing, the listing is offered
// again. All or nothing.
func (r *EscrowRepository) CancelDeal(ctx context.Context, escrowID, bidID, productID string, bidStatus model.BidStatus, reason *string) error {
	vars := map[string]interface{}{
		"escrow":     escrowID,
		"bid":        bidID,
		"product":    productID,
		"bid_status": bidStatus,
		"reason":     optional(reason),
	}
	batch := database.NewAtomicBatch().
		Add(`IF (SELECT VALUE status FROM ONLY type::record($escrow)) IN ['completed', 'cancelled', 'refunded', 'payment_failed'] { THROW 'deal state changed: escrow closed' }`, vars).
		Add(`UPDATE type::record($escrow) SET status = 'cancelled', cancelled_on = time::now(), cancel_reason = IF $reason IS NOT NULL THEN $reason ELSE cancel_reason END, updated_on = time::now()`, vars).
		Add(`UPDATE type::record($bid) SET status = $bid_status, responded_on = time::now(), updated_on = time::now() WHERE status IN ['pending', 'accepted']`, vars).
		Add(`UPDATE type::record($product) SET status = 'approved', winning_bid = NONE, result_notified_on = NONE, updated_on = time::now() WHERE status = 'under_offer' AND winning_bid = type::record($bid)`, vars)
	return r.runDeal(ctx, batch, "cancel deal")
}

func (r *EscrowRepository) runDeal(ctx context.Context, batch *database.AtomicBatch, op string) error {
	if err := batch.Execute(ctx, r.db); err != nil {
		if isDealConflict(err) {
			return service.ErrDealStateChanged
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

func isDealConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "deal state changed")
}

// CountByStatus counts escrows grouped by status
func (r *EscrowRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	result, err := r.db.Query(ctx, `SELECT status, count() AS count FROM escrow_transactions GROUP BY status`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count escrows: %w", err)
	}
	return groupCounts(result, "status"), nil
}

// CompletedVolume sums the seller amounts of completed escrows
func (r *EscrowRepository) CompletedVolume(ctx context.Context) (int64, error) {
	query := `SELECT math::sum(amount) AS total FROM escrow_transactions WHERE status = 'completed' GROUP ALL`
	result, err := r.db.QueryOne(ctx, query, nil)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to sum completed volume: %w", err)
	}
	m, _ := result.(map[string]interface{})
	return extractInt64(m["total"]), nil
}
