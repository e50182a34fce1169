package handler

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/forgo/exitlane/api/internal/service"
)

func readSSEEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()

	var event, data string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStream_DeliversUserEvents(t *testing.T) {
	hub := service.NewEventHub()
	defer hub.Close()

	h := NewEventsHandler(hub)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Stream(w, withUserContext(r, "user:buyer"))
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	event, data := readSSEEvent(t, reader)
	if event != "connected" || !strings.Contains(data, "subscriber_id") {
		t.Fatalf("expected connected event, got %q %q", event, data)
	}
	if n := hub.SubscriberCount("user:buyer"); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}

	hub.SendToUser("user:seller", service.Event{Type: service.EventBidNew, Data: map[string]string{"bid_id": "bids:other"}})
	hub.SendToUser("user:buyer", service.Event{Type: service.EventBidAccepted, Data: map[string]string{"bid_id": "bids:1"}})

	event, data = readSSEEvent(t, reader)
	if event != string(service.EventBidAccepted) {
		t.Fatalf("expected %s, got %q", service.EventBidAccepted, event)
	}
	if data != `{"bid_id":"bids:1"}` {
		t.Errorf("unexpected data %q", data)
	}
}

func TestStream_RequiresUser(t *testing.T) {
	hub := service.NewEventHub()
	defer hub.Close()

	h := NewEventsHandler(hub)
	rr := httptest.NewRecorder()
	h.Stream(rr, httptest.NewRequest(http.MethodGet, "/v1/events/stream", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestEventFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		typ  service.EventType
		want bool
	}{
		{"", service.EventBidNew, true},
		{"bid", service.EventBidAccepted, true},
		{"bid", service.EventEscrowUpdated, false},
		{"escrow.status_changed", service.EventEscrowUpdated, true},
		{"bid.accepted", service.EventBidRejected, false},
		{" message , listing ", service.EventListingReviewed, true},
		{"escrow", service.EventHeartbeat, true},
		{",,", service.EventMessageNew, true},
	}

	for _, tt := range tests {
		if got := parseEventFilter(tt.raw).allows(tt.typ); got != tt.want {
			t.Errorf("filter %q allows(%s) = %v, want %v", tt.raw, tt.typ, got, tt.want)
		}
	}
}

func TestStream_TypesFilterSkipsOtherEvents(t *testing.T) {
	hub := service.NewEventHub()
	defer hub.Close()

	h := NewEventsHandler(hub)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Stream(w, withUserContext(r, "user:seller"))
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/v1/events/stream?types=escrow")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	if event, _ := readSSEEvent(t, reader); event != "connected" {
		t.Fatalf("expected connected event, got %q", event)
	}

	hub.SendToUser("user:seller", service.Event{Type: service.EventBidNew, Data: map[string]string{"bid_id": "bids:1"}})
	hub.SendToUser("user:seller", service.Event{Type: service.EventEscrowUpdated, Data: map[string]string{"status": "funded"}})

	event, data := readSSEEvent(t, reader)
	if event != string(service.EventEscrowUpdated) {
		t.Fatalf("expected %s, got %q", service.EventEscrowUpdated, event)
	}
	if data != `{"status":"funded"}` {
		t.Errorf("unexpected data %q", data)
	}
}
