package handler

import (
	"context"
	"net/http"

	"github.com/forgo/exitlane/api/internal/middleware"
	"github.com/forgo/exitlane/api/internal/model"
)

// EscrowService is the deal surface the escrow endpoints need
type EscrowService interface {
	GetEscrow(ctx context.Context, userID string, isAdmin bool, id string) (*model.EscrowDetail, error)
	ListMyEscrows(ctx context.Context, userID string) ([]*model.EscrowDetail, error)
	VerifyPayment(ctx context.Context, userID string, isAdmin bool, id string) (*model.PaymentVerification, error)
	MarkDelivered(ctx context.Context, userID, id string) (*model.EscrowDetail, error)
	ConfirmReceipt(ctx context.Context, userID, id string) (*model.EscrowDetail, error)
	CancelEscrow(ctx context.Context, userID string, isAdmin bool, id, reason string) (*model.EscrowDetail, error)
}

// EscrowHandler handles escrow deal endpoints
type EscrowHandler struct {
	escrowService EscrowService
}

// NewEscrowHandler creates a new escrow handler
func NewEscrowHandler(escrowService EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService}
}

func escrowLinks(id string) map[string]string {
	return map[string]string{
		"self":     "/v1/escrow/" + id,
		"verify":   "/v1/escrow/" + id + "/verify",
		"feedback": "/v1/escrow/" + id + "/feedback",
	}
}

// ListMine handles GET /v1/escrow
func (h *EscrowHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	deals, err := h.escrowService.ListMyEscrows(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list escrow"))
		return
	}

	WriteCollection(w, http.StatusOK, deals, nil, map[string]string{
		"self": "/v1/escrow",
	})
}

// Get handles GET /v1/escrow/{escrowId}
func (h *EscrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("escrowId")

	detail, err := h.escrowService.GetEscrow(r.Context(), userID, middleware.IsAdmin(r.Context()), id)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get escrow"))
		return
	}

	WriteData(w, http.StatusOK, detail, escrowLinks(id))
}

// Verify handles POST /v1/escrow/{escrowId}/verify. The client calls it after
// confirming the card; requires_action means a 3-D Secure step is pending.
func (h *EscrowHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("escrowId")

	result, err := h.escrowService.VerifyPayment(r.Context(), userID, middleware.IsAdmin(r.Context()), id)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "verify payment"))
		return
	}

	WriteData(w, http.StatusOK, result, escrowLinks(id))
}

// Delivered handles POST /v1/escrow/{escrowId}/delivered (seller)
func (h *EscrowHandler) Delivered(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, "mark delivered", h.escrowService.MarkDelivered)
}

// Confirm handles POST /v1/escrow/{escrowId}/confirm (buyer)
func (h *EscrowHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, "confirm receipt", h.escrowService.ConfirmReceipt)
}

func (h *EscrowHandler) step(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, userID, id string) (*model.EscrowDetail, error)) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("escrowId")

	detail, err := fn(r.Context(), userID, id)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, op))
		return
	}

	WriteData(w, http.StatusOK, detail, escrowLinks(id))
}

// Cancel handles POST /v1/escrow/{escrowId}/cancel (either party or admin)
func (h *EscrowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("escrowId")

	var req model.CancelEscrowRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	detail, err := h.escrowService.CancelEscrow(r.Context(), userID, middleware.IsAdmin(r.Context()), id, req.Reason)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "cancel escrow"))
		return
	}

	WriteData(w, http.StatusOK, detail, escrowLinks(id))
}
