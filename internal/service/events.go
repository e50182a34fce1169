package service

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// Conversation events
	EventMessageNew EventType = "message.new"

	// Deal events
	EventBidNew        EventType = "bid.new"
	EventBidAccepted   EventType = "bid.accepted"
	EventBidRejected   EventType = "bid.rejected"
	EventEscrowUpdated EventType = "escrow.status_changed"

	// Listing events
	EventListingReviewed EventType = "listing.reviewed"

	// System events
	EventHeartbeat EventType = "heartbeat"
)

// Event represents a server-sent event
type Event struct {
	Type   EventType   `json:"type"`
	Data   interface{} `json:"data"`
	UserID string      `json:"-"` // Used for routing, not sent to client
}

// Format returns the SSE formatted string
func (e *Event) Format() string {
	data, _ := json.Marshal(e.Data)
	return "event: " + string(e.Type) + "\ndata: " + string(data) + "\n\n"
}

// Subscriber represents a connected SSE client
type Subscriber struct {
	ID     string
	UserID string
	Events chan *Event
	Done   chan struct{}
}

// Publisher delivers events to a user's open streams
type Publisher interface {
	SendToUser(userID string, event Event)
}

// EventHub manages SSE subscriptions and event delivery. A user may have
// several streams open (one per tab or device).
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscriber // userID -> subscriberID -> subscriber
	heartbeat   *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

// NewEventHub creates a new event hub with a 30s heartbeat
func NewEventHub() *EventHub {
	return newEventHub(30 * time.Second)
}

func newEventHub(interval time.Duration) *EventHub {
	hub := &EventHub{
		subscribers: make(map[string]map[string]*Subscriber),
		done:        make(chan struct{}),
	}
	hub.heartbeat = time.NewTicker(interval)
	go hub.sendHeartbeats()
	return hub
}

// Subscribe adds a new stream for a user
func (h *EventHub) Subscribe(userID, subscriberID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:     subscriberID,
		UserID: userID,
		Events: make(chan *Event, 100), // Buffer to prevent blocking
		Done:   make(chan struct{}),
	}

	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[string]*Subscriber)
	}
	h.subscribers[userID][subscriberID] = sub

	return sub
}

// Unsubscribe removes a stream
func (h *EventHub) Unsubscribe(userID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if userSubs, ok := h.subscribers[userID]; ok {
		if sub, ok := userSubs[subscriberID]; ok {
			close(sub.Done)
			close(sub.Events)
			delete(userSubs, subscriberID)
		}
		if len(userSubs) == 0 {
			delete(h.subscribers, userID)
		}
	}
}

// SendToUser sends an event to every open stream of a user
func (h *EventHub) SendToUser(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	event.UserID = userID
	for _, sub := range h.subscribers[userID] {
		select {
		case sub.Events <- &event:
		default:
			// Buffer full, skip this subscriber
		}
	}
}

// sendHeartbeats sends periodic heartbeats to all subscribers
func (h *EventHub) sendHeartbeats() {
	for {
		select {
		case <-h.heartbeat.C:
			h.mu.RLock()
			event := &Event{
				Type: EventHeartbeat,
				Data: map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				},
			}
			for _, userSubs := range h.subscribers {
				for _, sub := range userSubs {
					select {
					case sub.Events <- event:
					default:
					}
				}
			}
			h.mu.RUnlock()
		case <-h.done:
			return
		}
	}
}

// Close stops the event hub and ends every stream
func (h *EventHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.heartbeat.Stop()

		h.mu.Lock()
		defer h.mu.Unlock()

		for userID, userSubs := range h.subscribers {
			for _, sub := range userSubs {
				close(sub.Done)
				close(sub.Events)
			}
			delete(h.subscribers, userID)
		}
	})
}

// SubscriberCount returns the number of open streams for a user
func (h *EventHub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

// publish is a nil-safe send used by the services
func publish(p Publisher, userID string, eventType EventType, data interface{}) {
	if p == nil || userID == "" {
		return
	}
	p.SendToUser(userID, Event{Type: eventType, Data: data})
}
