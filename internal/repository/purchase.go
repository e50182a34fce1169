package repository

import (
	"context"
	"fmt"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// PurchaseRepository handles listing package purchases
type PurchaseRepository struct {
	db database.Database
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(db database.Database) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

var purchaseLinks = map[string]string{"product": "product_id", "seller": "seller_id"}

// Create creates a new package purchase
func (r *PurchaseRepository) Create(ctx context.Context, p *model.PackagePurchase) error {
	if p.Status == "" {
		p.Status = model.PurchasePending
	}

	query := `
		CREATE package_purchases SET
			product = type::record($product_id),
			seller = type::record($seller_id),
			package = $package,
			amount = $amount,
			currency = $currency,
			status = $status,
			paid_on = IF $status IN ['paid', 'free'] THEN time::now() ELSE NONE END,
			created_on = time::now()
	`
	vars := map[string]interface{}{
		"product_id": p.ProductID,
		"seller_id":  p.SellerID,
		"package":    p.Package,
		"amount":     p.Amount,
		"currency":   p.Currency,
		"status":     p.Status,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}

	id, created, err := createdID(result)
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedOn = created
	return nil
}

// GetByID retrieves a purchase by ID
func (r *PurchaseRepository) GetByID(ctx context.Context, id string) (*model.PackagePurchase, error) {
	return r.getOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
}

// GetBySession retrieves the purchase paid through a checkout session
func (r *PurchaseRepository) GetBySession(ctx context.Context, sessionID string) (*model.PackagePurchase, error) {
	query := `SELECT * FROM package_purchases WHERE checkout_session_id = $session LIMIT 1`
	return r.getOne(ctx, query, map[string]interface{}{"session": sessionID})
}

func (r *PurchaseRepository) getOne(ctx context.Context, query string, vars map[string]interface{}) (*model.PackagePurchase, error) {
	p, _, err := queryOne[model.PackagePurchase](ctx, r.db, query, vars, purchaseLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return p, nil
}

// SetSession stores the checkout session opened for a purchase
func (r *PurchaseRepository) SetSession(ctx context.Context, id, sessionID string) error {
	query := `UPDATE type::record($id) SET checkout_session_id = $session`
	if err := r.db.Execute(ctx, query, map[string]interface{}{"id": id, "session": sessionID}); err != nil {
		return fmt.Errorf("failed to set purchase session: %w", err)
	}
	return nil
}

// MarkPaid moves a pending purchase to paid. It reports whether the purchase
// changed, so a verify call and a webhook apply the package only once.
func (r *PurchaseRepository) MarkPaid(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, model.PurchasePaid)
}

// MarkCancelled moves a pending purchase to cancelled
func (r *PurchaseRepository) MarkCancelled(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, model.PurchaseCancelled)
}

func (r *PurchaseRepository) transition(ctx context.Context, id string, to model.PurchaseStatus) (bool, error) {
	query := `
		UPDATE type::record($id) SET
			status = $to,
			paid_on = IF $to = 'paid' THEN time::now() ELSE paid_on END
		WHERE status = 'pending'
		RETURN id
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"id": id, "to": to})
	if err != nil {
		return false, fmt.Errorf("failed to update purchase: %w", err)
	}
	return len(statementRows(result, 0)) > 0, nil
}
