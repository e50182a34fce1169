package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/forgo/exitlane/api/internal/middleware"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/service"
)

// ConversationService is the messaging surface the conversation endpoints need
type ConversationService interface {
	StartConversation(ctx context.Context, userID string, isAdmin bool, req *model.StartConversationRequest) (*model.Conversation, *model.Message, error)
	SendMessage(ctx context.Context, userID, conversationID string, req *model.SendMessageRequest) (*model.Message, error)
	ListConversations(ctx context.Context, userID string) ([]*model.ConversationSummary, error)
	ListMessages(ctx context.Context, userID, conversationID string, before *time.Time, limit int) ([]*model.Message, error)
	MarkRead(ctx context.Context, userID, conversationID string) error
}

// ConversationHandler handles buyer/seller messaging endpoints
type ConversationHandler struct {
	conversationService ConversationService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversationService ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// StartConversationResponse is the opened conversation with its first message
type StartConversationResponse struct {
	Conversation *model.Conversation `json:"conversation"`
	Message      *model.Message      `json:"message"`
}

func conversationLinks(id string) map[string]string {
	return map[string]string{
		"self":     "/v1/conversations/" + id + "/messages",
		"messages": "/v1/conversations/" + id + "/messages",
		"read":     "/v1/conversations/" + id + "/read",
	}
}

// List handles GET /v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	convs, err := h.conversationService.ListConversations(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list conversations"))
		return
	}

	WriteCollection(w, http.StatusOK, convs, nil, map[string]string{
		"self": "/v1/conversations",
	})
}

// Start handles POST /v1/conversations
func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.StartConversationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	conv, msg, err := h.conversationService.StartConversation(r.Context(), userID, middleware.IsAdmin(r.Context()), &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "start conversation"))
		return
	}

	WriteData(w, http.StatusCreated, StartConversationResponse{
		Conversation: conv,
		Message:      msg,
	}, conversationLinks(conv.ID))
}

// ListMessages handles GET /v1/conversations/{conversationId}/messages.
// Pages backwards with ?before=<RFC3339>&limit=.
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("conversationId")

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteError(w, model.NewValidationError([]model.FieldError{
				{Field: "before", Message: "before must be an RFC 3339 timestamp"},
			}))
			return
		}
		before = &t
	}
	limit := parseLimit(r, service.DefaultMessageLimit, service.MaxMessageLimit)

	msgs, err := h.conversationService.ListMessages(r.Context(), userID, id, before, limit)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list messages"))
		return
	}

	// Messages come oldest first; the next page is everything before the first
	var page *PaginationInfo
	if len(msgs) == limit {
		page = &PaginationInfo{
			Cursor:  msgs[0].CreatedOn.Format(time.RFC3339Nano),
			HasMore: true,
		}
	}

	WriteCollection(w, http.StatusOK, msgs, page, conversationLinks(id))
}

// Send handles POST /v1/conversations/{conversationId}/messages
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("conversationId")

	var req model.SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.conversationService.SendMessage(r.Context(), userID, id, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "send message"))
		return
	}

	WriteData(w, http.StatusCreated, msg, conversationLinks(id))
}

// MarkRead handles POST /v1/conversations/{conversationId}/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, model.NewMethodNotAllowedError("POST"))
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.conversationService.MarkRead(r.Context(), userID, r.PathValue("conversationId")); err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "mark read"))
		return
	}

	WriteNoContent(w)
}
