package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/service"
)

// reconnectDelay is the retry hint sent to EventSource clients
const reconnectDelay = 5 * time.Second

// EventsHandler streams deal activity over server-sent events
type EventsHandler struct {
	eventHub *service.EventHub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(eventHub *service.EventHub) *EventsHandler {
	return &EventsHandler{
		eventHub: eventHub,
	}
}

// eventFilter selects event types from a comma separated list. An entry is
// either a full type ("bid.accepted") or its family ("escrow"). The empty
// filter passes everything. Heartbeats always pass.
type eventFilter map[string]bool

func parseEventFilter(raw string) eventFilter {
	f := eventFilter{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			f[part] = true
		}
	}
	return f
}

func (f eventFilter) allows(t service.EventType) bool {
	if len(f) == 0 || t == service.EventHeartbeat || f[string(t)] {
		return true
	}
	family, _, _ := strings.Cut(string(t), ".")
	return f[family]
}

// Stream handles GET /v1/events/stream?types=bid,escrow
// Bids, escrow changes, messages and moderation results for the caller
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, model.NewInternalError("streaming not supported"))
		return
	}
	filter := parseEventFilter(r.URL.Query().Get("types"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// The server's WriteTimeout would otherwise cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	subscriberID := uuid.New().String()
	sub := h.eventHub.Subscribe(userID, subscriberID)
	defer h.eventHub.Unsubscribe(userID, subscriberID)

	fmt.Fprintf(w, "retry: %d\nevent: connected\ndata: {\"subscriber_id\":%q}\n\n",
		reconnectDelay.Milliseconds(), subscriberID)
	flusher.Flush()

	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if !filter.allows(event.Type) {
				continue
			}
			if _, err := fmt.Fprint(w, event.Format()); err != nil {
				return
			}
			flusher.Flush()

		case <-sub.Done:
			return

		case <-r.Context().Done():
			return
		}
	}
}
