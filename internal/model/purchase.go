package model

import (
	"net/url"
	"time"
)

// PackageType is a paid listing package
type PackageType string

const (
	PackageBasic    PackageType = "basic"
	PackageFeatured PackageType = "featured"
	PackagePremium  PackageType = "premium"
)

// PurchaseStatus is the state of a package purchase
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchasePaid      PurchaseStatus = "paid"
	PurchaseFree      PurchaseStatus = "free"
	PurchaseCancelled PurchaseStatus = "cancelled"
)

// PackagePurchase records a seller buying a listing package
type PackagePurchase struct {
	ID                string         `json:"id"`
	ProductID         string         `json:"product_id"`
	SellerID          string         `json:"seller_id"`
	Package           PackageType    `json:"package"`
	Amount            int64          `json:"amount"`
	Currency          string         `json:"currency"`
	Status            PurchaseStatus `json:"status"`
	CheckoutSessionID *string        `json:"checkout_session_id,omitempty"`
	PaidOn            *time.Time     `json:"paid_on,omitempty"`
	CreatedOn         time.Time      `json:"created_on"`
}

// CreatePackagePaymentRequest starts checkout for a listing package
type CreatePackagePaymentRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Package   string `json:"package" validate:"required,oneof=basic featured premium"`
}

// Validate validates the package payment request
func (r *CreatePackagePaymentRequest) Validate() []FieldError {
	return validateStruct(r)
}

// CheckoutResponse points the client at a hosted checkout page.
// Free purchases complete immediately and carry no URL.
type CheckoutResponse struct {
	URL        string `json:"url,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	PurchaseID string `json:"purchase_id,omitempty"`
	Free       bool   `json:"free"`
}

// CreateSubscriptionRequest starts checkout for a marketplace subscription
type CreateSubscriptionRequest struct {
	Plan string `json:"plan" validate:"required,oneof=buyer_monthly buyer_annual"`
}

// Validate validates the subscription request
func (r *CreateSubscriptionRequest) Validate() []FieldError {
	return validateStruct(r)
}

// SubscriptionState is the caller's paywall status
type SubscriptionState struct {
	Status SubscriptionStatus `json:"status"`
	Plan   *string            `json:"plan,omitempty"`
	EndsOn *time.Time         `json:"ends_on,omitempty"`
	Active bool               `json:"active"`
}

// PaymentReturnStatus is the payment_status flag on checkout return URLs
type PaymentReturnStatus string

const (
	PaymentReturnSuccess   PaymentReturnStatus = "success"
	PaymentReturnCancelled PaymentReturnStatus = "cancelled"
)

// PaymentReturn is the parsed query of a checkout return URL such as
// /listing-thank-you?payment_status=success&product_id=...
type PaymentReturn struct {
	Status    PaymentReturnStatus `json:"payment_status"`
	ProductID string              `json:"product_id"`
	Package   PackageType         `json:"package,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
}

// ParsePaymentReturn reads the return flags appended to checkout redirects
func ParsePaymentReturn(q url.Values) (*PaymentReturn, []FieldError) {
	var errors []FieldError
	pr := &PaymentReturn{
		Status:    PaymentReturnStatus(q.Get("payment_status")),
		ProductID: q.Get("product_id"),
		Package:   PackageType(q.Get("package")),
		SessionID: q.Get("session_id"),
	}

	switch pr.Status {
	case PaymentReturnSuccess, PaymentReturnCancelled:
	case "":
		errors = append(errors, FieldError{Field: "payment_status", Message: "payment_status is required"})
	default:
		errors = append(errors, FieldError{Field: "payment_status", Message: "payment_status must be one of: success, cancelled"})
	}
	if pr.ProductID == "" {
		errors = append(errors, FieldError{Field: "product_id", Message: "product_id is required"})
	}
	switch pr.Package {
	case "", PackageBasic, PackageFeatured, PackagePremium:
	default:
		errors = append(errors, FieldError{Field: "package", Message: "package must be one of: basic, featured, premium"})
	}
	if pr.Status == PaymentReturnSuccess && pr.Package != PackageBasic && pr.Package != "" && pr.SessionID == "" {
		errors = append(errors, FieldError{Field: "session_id", Message: "session_id is required for paid packages"})
	}
	return pr, errors
}
