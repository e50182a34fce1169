package handler

import (
	"context"
	"net/http"

	"github.com/forgo/exitlane/api/internal/catalog"
	"github.com/forgo/exitlane/api/internal/model"
)

// CheckoutService is the payment surface the checkout endpoints need
type CheckoutService interface {
	Catalog() *catalog.Catalog
	CreatePackagePayment(ctx context.Context, sellerID string, req *model.CreatePackagePaymentRequest) (*model.CheckoutResponse, error)
	VerifyPackagePayment(ctx context.Context, sellerID, sessionID string) (*model.PackagePurchase, error)
	CreateSubscriptionCheckout(ctx context.Context, userID string, req *model.CreateSubscriptionRequest) (*model.CheckoutResponse, error)
	VerifySubscription(ctx context.Context, userID, sessionID string) (*model.SubscriptionState, error)
	GetSubscriptionStatus(ctx context.Context, userID string) (*model.SubscriptionState, error)
}

// CheckoutHandler handles listing package and subscription checkout
type CheckoutHandler struct {
	checkoutService CheckoutService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// VerifySessionRequest carries the checkout session to confirm
type VerifySessionRequest struct {
	SessionID string `json:"session_id"`
}

// Validate validates the verify request
func (r *VerifySessionRequest) Validate() []model.FieldError {
	if r.SessionID == "" {
		return []model.FieldError{{Field: "session_id", Message: "session_id is required"}}
	}
	return nil
}

// PaymentReturnResponse is the outcome of a checkout redirect
type PaymentReturnResponse struct {
	Return   *model.PaymentReturn   `json:"return"`
	Purchase *model.PackagePurchase `json:"purchase,omitempty"`
}

// ListPackages handles GET /v1/packages
func (h *CheckoutHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	c := h.checkoutService.Catalog()
	WriteCollection(w, http.StatusOK, c.Packages, nil, map[string]string{
		"self":     "/v1/packages",
		"checkout": "/v1/packages/checkout",
	})
}

// CreatePackageCheckout handles POST /v1/packages/checkout
func (h *CheckoutHandler) CreatePackageCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CreatePackagePaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.checkoutService.CreatePackagePayment(r.Context(), userID, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "create package checkout"))
		return
	}

	WriteData(w, http.StatusCreated, resp, map[string]string{
		"verify":  "/v1/packages/verify",
		"listing": "/v1/listings/" + req.ProductID,
	})
}

// VerifyPackage handles POST /v1/packages/verify
func (h *CheckoutHandler) VerifyPackage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req VerifySessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	purchase, err := h.checkoutService.VerifyPackagePayment(r.Context(), userID, req.SessionID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "verify package payment"))
		return
	}

	WriteData(w, http.StatusOK, purchase, map[string]string{
		"listing": "/v1/listings/" + purchase.ProductID,
	})
}

// PaymentReturn handles GET /v1/payments/return. It reads the flags the
// checkout redirect appends and confirms the session when payment succeeded.
func (h *CheckoutHandler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ret, errs := model.ParsePaymentReturn(r.URL.Query())
	if len(errs) > 0 {
		WriteError(w, model.NewValidationError(errs))
		return
	}

	resp := PaymentReturnResponse{Return: ret}
	if ret.Status == model.PaymentReturnSuccess && ret.SessionID != "" {
		purchase, err := h.checkoutService.VerifyPackagePayment(r.Context(), userID, ret.SessionID)
		if err != nil {
			WriteError(w, MapServiceErrorWithContext(err, "verify package payment"))
			return
		}
		resp.Purchase = purchase
	}

	WriteData(w, http.StatusOK, resp, map[string]string{
		"listing": "/v1/listings/" + ret.ProductID,
	})
}

// ListPlans handles GET /v1/subscriptions/plans
func (h *CheckoutHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	c := h.checkoutService.Catalog()
	WriteCollection(w, http.StatusOK, c.Plans, nil, map[string]string{
		"self":     "/v1/subscriptions/plans",
		"checkout": "/v1/subscriptions/checkout",
	})
}

// CreateSubscriptionCheckout handles POST /v1/subscriptions/checkout
func (h *CheckoutHandler) CreateSubscriptionCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CreateSubscriptionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.checkoutService.CreateSubscriptionCheckout(r.Context(), userID, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "create subscription checkout"))
		return
	}

	WriteData(w, http.StatusCreated, resp, map[string]string{
		"verify": "/v1/subscriptions/verify",
	})
}

// VerifySubscription handles POST /v1/subscriptions/verify
func (h *CheckoutHandler) VerifySubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req VerifySessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	state, err := h.checkoutService.VerifySubscription(r.Context(), userID, req.SessionID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "verify subscription"))
		return
	}

	WriteData(w, http.StatusOK, state, map[string]string{
		"self": "/v1/subscriptions/status",
	})
}

// SubscriptionStatus handles GET /v1/subscriptions/status
func (h *CheckoutHandler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	state, err := h.checkoutService.GetSubscriptionStatus(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get subscription status"))
		return
	}

	WriteData(w, http.StatusOK, state, map[string]string{
		"self":  "/v1/subscriptions/status",
		"plans": "/v1/subscriptions/plans",
	})
}
