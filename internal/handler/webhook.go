package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/payments"
	"github.com/forgo/exitlane/api/internal/service"
)

// maxWebhookBody caps the processor payload; real events are a few KiB
const maxWebhookBody = 1 << 16

// WebhookService processes signed processor notifications
type WebhookService interface {
	HandleStripe(ctx context.Context, payload []byte, signature string) error
}

// WebhookHandler receives Stripe webhooks
type WebhookHandler struct {
	webhookService WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookService WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// Stripe handles POST /v1/webhooks/stripe
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		WriteError(w, model.NewBadRequestError("webhook body too large or unreadable"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		WriteError(w, model.NewBadRequestError("missing Stripe-Signature header"))
		return
	}

	if err := h.webhookService.HandleStripe(r.Context(), payload, signature); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidWebhook):
			slog.Warn("rejected webhook", "error", err)
		case errors.Is(err, payments.ErrNotConfigured):
			slog.Warn("webhook received while payments are disabled")
		default:
			// A 5xx makes the processor redeliver
			slog.Error("webhook processing failed", "error", err)
		}
		WriteError(w, MapServiceError(err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
