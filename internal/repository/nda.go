package repository

import (
	"context"
	"fmt"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// NDARepository handles listing NDA signatures
type NDARepository struct {
	db database.Database
}

// NewNDARepository creates a new NDA repository
func NewNDARepository(db database.Database) *NDARepository {
	return &NDARepository{db: db}
}

var ndaLinks = map[string]string{"product": "product_id", "user": "user_id"}

// Sign records a signature. Signing again returns the existing signature.
func (r *NDARepository) Sign(ctx context.Context, sig *model.NDASignature) (*model.NDASignature, error) {
	existing, err := r.Get(ctx, sig.ProductID, sig.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	query := `
		CREATE nda_signatures SET
			product = type::record($product_id),
			user = type::record($user_id),
			full_name = $full_name,
			signed_on = time::now()
	`
	vars := map[string]interface{}{
		"product_id": sig.ProductID,
		"user_id":    sig.UserID,
		"full_name":  sig.FullName,
	}
	created, _, err := queryOne[model.NDASignature](ctx, r.db, query, vars, ndaLinks)
	if err != nil {
		if isUniqueConstraintError(err) {
			// lost a race with a concurrent signing
			return r.Get(ctx, sig.ProductID, sig.UserID)
		}
		return nil, fmt.Errorf("failed to sign NDA: %w", err)
	}
	return created, nil
}

// Get returns the user's signature for a listing, if any
func (r *NDARepository) Get(ctx context.Context, productID, userID string) (*model.NDASignature, error) {
	query := `SELECT * FROM nda_signatures WHERE product = type::record($product) AND user = type::record($user) LIMIT 1`
	sig, _, err := queryOne[model.NDASignature](ctx, r.db, query, map[string]interface{}{"product": productID, "user": userID}, ndaLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to get NDA signature: %w", err)
	}
	return sig, nil
}

// Has reports whether the user signed the listing's NDA
func (r *NDARepository) Has(ctx context.Context, productID, userID string) (bool, error) {
	sig, err := r.Get(ctx, productID, userID)
	if err != nil {
		return false, err
	}
	return sig != nil, nil
}

// ListForProduct returns the signatures on a listing, newest first
func (r *NDARepository) ListForProduct(ctx context.Context, productID string) ([]*model.NDASignature, error) {
	query := `SELECT * FROM nda_signatures WHERE product = type::record($product) ORDER BY signed_on DESC`
	sigs, err := queryMany[model.NDASignature](ctx, r.db, query, map[string]interface{}{"product": productID}, ndaLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list NDA signatures: %w", err)
	}
	return sigs, nil
}
