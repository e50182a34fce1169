package model

import "time"

// Conversation is a listing-scoped thread between a buyer and the seller
type Conversation struct {
	ID                 string     `json:"id"`
	ProductID          string     `json:"product_id"`
	BuyerID            string     `json:"buyer_id"`
	SellerID           string     `json:"seller_id"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview *string    `json:"last_message_preview,omitempty"`
	BuyerUnread        int        `json:"-"`
	SellerUnread       int        `json:"-"`
	CreatedOn          time.Time  `json:"created_on"`
}

// IsParticipant reports whether userID is in the conversation
func (c *Conversation) IsParticipant(userID string) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// OtherParty returns the participant that is not userID
func (c *Conversation) OtherParty(userID string) string {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}

// UnreadFor returns the unread count for userID
func (c *Conversation) UnreadFor(userID string) int {
	if c.BuyerID == userID {
		return c.BuyerUnread
	}
	if c.SellerID == userID {
		return c.SellerUnread
	}
	return 0
}

// ConversationSummary is a conversation as listed to one participant
type ConversationSummary struct {
	*Conversation
	ProductTitle string `json:"product_title"`
	UnreadCount  int    `json:"unread_count"`
}

// Message is one message in a conversation
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Body           string     `json:"body"`
	CreatedOn      time.Time  `json:"created_on"`
	ReadOn         *time.Time `json:"read_on,omitempty"`
}

// Constraints
const (
	MaxMessageLength   = 5000
	MessagePreviewSize = 140
)

// StartConversationRequest opens a conversation about a listing
type StartConversationRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Message   string `json:"message" validate:"required,max=5000"`
}

// Validate validates the start conversation request
func (r *StartConversationRequest) Validate() []FieldError {
	return validateStruct(r)
}

// SendMessageRequest posts a message
type SendMessageRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

// Validate validates the send message request
func (r *SendMessageRequest) Validate() []FieldError {
	return validateStruct(r)
}
