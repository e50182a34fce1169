package model

import "time"

// EscrowStatus is the state of an escrow-backed deal
type EscrowStatus string

const (
	EscrowPendingPayment       EscrowStatus = "pending_payment"
	EscrowRequiresAction       EscrowStatus = "requires_action" // card needs 3DS
	EscrowFundsHeld            EscrowStatus = "funds_held"
	EscrowTransferInProgress   EscrowStatus = "transfer_in_progress"
	EscrowAwaitingConfirmation EscrowStatus = "awaiting_confirmation"
	EscrowCompleted            EscrowStatus = "completed"
	EscrowCancelled            EscrowStatus = "cancelled"
	EscrowRefunded             EscrowStatus = "refunded"
	EscrowPaymentFailed        EscrowStatus = "payment_failed"
	EscrowDisputed             EscrowStatus = "disputed"
)

// IsTerminal reports whether no further transitions are possible
func (s EscrowStatus) IsTerminal() bool {
	switch s {
	case EscrowCompleted, EscrowCancelled, EscrowRefunded, EscrowPaymentFailed:
		return true
	}
	return false
}

// IsCancellable reports whether the hold can still be released
func (s EscrowStatus) IsCancellable() bool {
	switch s {
	case EscrowPendingPayment, EscrowRequiresAction, EscrowFundsHeld, EscrowTransferInProgress, EscrowAwaitingConfirmation, EscrowDisputed:
		return true
	}
	return false
}

// EscrowTransaction holds a buyer's funds until the asset transfer is confirmed.
// Amount goes to the seller; BuyerFee is the marketplace fee on top.
type EscrowTransaction struct {
	ID                string       `json:"id"`
	ProductID         string       `json:"product_id"`
	BidID             string       `json:"bid_id"`
	BuyerID           string       `json:"buyer_id"`
	SellerID          string       `json:"seller_id"`
	Amount            int64        `json:"amount"`
	BuyerFee          int64        `json:"buyer_fee"`
	TotalCharged      int64        `json:"total_charged"`
	Currency          string       `json:"currency"`
	PaymentIntentID   string       `json:"payment_intent_id"`
	Status            EscrowStatus `json:"status"`
	FundsHeldOn       *time.Time   `json:"funds_held_on,omitempty"`
	TransferStartedOn *time.Time   `json:"transfer_started_on,omitempty"`
	DeliveredOn       *time.Time   `json:"delivered_on,omitempty"`
	CompletedOn       *time.Time   `json:"completed_on,omitempty"`
	CancelledOn       *time.Time   `json:"cancelled_on,omitempty"`
	CancelReason      *string      `json:"cancel_reason,omitempty"`
	CreatedOn         time.Time    `json:"created_on"`
	UpdatedOn         time.Time    `json:"updated_on"`
}

// IsParty reports whether userID is the buyer or seller
func (e *EscrowTransaction) IsParty(userID string) bool {
	return e.BuyerID == userID || e.SellerID == userID
}

// StageState is how a pipeline stage renders
type StageState string

const (
	StageComplete StageState = "complete"
	StageCurrent  StageState = "current"
	StageUpcoming StageState = "upcoming"
)

// PipelineStage is one step of the deal progress bar
type PipelineStage struct {
	Index int        `json:"index"`
	Key   string     `json:"key"`
	Label string     `json:"label"`
	State StageState `json:"state"`
}

// Pipeline is the deal progress for one escrow status.
// CurrentIndex is -1 when the deal has halted.
type Pipeline struct {
	Status       EscrowStatus    `json:"status"`
	CurrentIndex int             `json:"current_index"`
	Halted       bool            `json:"halted"`
	Stages       []PipelineStage `json:"stages"`
}

// EscrowDetail is an escrow with its deal pipeline
type EscrowDetail struct {
	Escrow   *EscrowTransaction `json:"escrow"`
	Pipeline *Pipeline          `json:"pipeline"`
}

// CancelEscrowRequest releases an escrow hold
type CancelEscrowRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Validate validates the cancel escrow request
func (r *CancelEscrowRequest) Validate() []FieldError {
	return validateStruct(r)
}

// PaymentVerification is the result of checking an escrow payment with the processor
type PaymentVerification struct {
	Escrow         *EscrowTransaction `json:"escrow"`
	ProcessorState string             `json:"processor_status"`
	RequiresAction bool               `json:"requires_action"`
	ClientSecret   string             `json:"client_secret,omitempty"`
}
