package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// ConversationRepository handles conversation and message data access
type ConversationRepository struct {
	db database.Database
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db database.Database) *ConversationRepository {
	return &ConversationRepository{db: db}
}

var (
	conversationLinks = map[string]string{"product": "product_id", "buyer": "buyer_id", "seller": "seller_id"}
	messageLinks      = map[string]string{"conversation": "conversation_id", "sender": "sender_id"}
)

// Create creates a new conversation
func (r *ConversationRepository) Create(ctx context.Context, c *model.Conversation) error {
	query := `
		CREATE conversations SET
			product = type::record($product_id),
			buyer = type::record($buyer_id),
			seller = type::record($seller_id),
			buyer_unread = 0,
			seller_unread = 0,
			created_on = time::now()
	`
	vars := map[string]interface{}{
		"product_id": c.ProductID,
		"buyer_id":   c.BuyerID,
		"seller_id":  c.SellerID,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: conversation already exists", database.ErrDuplicate)
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	id, created, err := createdID(result)
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedOn = created
	return nil
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	return r.getOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
}

// GetByProductBuyer retrieves the conversation a buyer has about a listing
func (r *ConversationRepository) GetByProductBuyer(ctx context.Context, productID, buyerID string) (*model.Conversation, error) {
	query := `SELECT * FROM conversations WHERE product = type::record($product) AND buyer = type::record($buyer) LIMIT 1`
	return r.getOne(ctx, query, map[string]interface{}{"product": productID, "buyer": buyerID})
}

func (r *ConversationRepository) getOne(ctx context.Context, query string, vars map[string]interface{}) (*model.Conversation, error) {
	c, data, err := queryOne[model.Conversation](ctx, r.db, query, vars, conversationLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if c == nil {
		return nil, nil
	}
	c.BuyerUnread = extractCountValue(data["buyer_unread"])
	c.SellerUnread = extractCountValue(data["seller_unread"])
	return c, nil
}

// ListForUser returns the user's conversations with the listing title, latest activity first
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]*model.ConversationSummary, error) {
	query := `
		SELECT *, product.title AS product_title, last_message_at ?? created_on AS activity
		FROM conversations
		WHERE buyer = type::record($user) OR seller = type::record($user)
		ORDER BY activity DESC
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	rows := statementRows(result, 0)
	out := make([]*model.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		c, data, err := decodeRow[model.Conversation](row, conversationLinks)
		if err != nil {
			return nil, err
		}
		c.BuyerUnread = extractCountValue(data["buyer_unread"])
		c.SellerUnread = extractCountValue(data["seller_unread"])
		out = append(out, &model.ConversationSummary{
			Conversation: c,
			ProductTitle: getString(data, "product_title"),
			UnreadCount:  c.UnreadFor(userID),
		})
	}
	return out, nil
}

// AddMessage stores a message and bumps the conversation preview and the
// recipient's unread count in one transaction.
func (r *ConversationRepository) AddMessage(ctx context.Context, c *model.Conversation, msg *model.Message) error {
	key := "m" + strings.ReplaceAll(uuid.NewString(), "-", "")
	unreadField := "seller_unread"
	if msg.SenderID == c.SellerID {
		unreadField = "buyer_unread"
	}

	vars := map[string]interface{}{
		"key":          key,
		"conversation": c.ID,
		"sender":       msg.SenderID,
		"body":         msg.Body,
		"preview":      previewText(msg.Body),
	}
	batch := database.NewAtomicBatch().
		Add(`CREATE type::record('messages', $key) SET
			conversation = type::record($conversation),
			sender = type::record($sender),
			body = $body,
			created_on = time::now()`, vars).
		Add(fmt.Sprintf(`UPDATE type::record($conversation) SET
			last_message_at = time::now(),
			last_message_preview = $preview,
			%s += 1`, unreadField), vars)

	if err := batch.Execute(ctx, r.db); err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}

	msg.ID = "messages:" + key
	msg.ConversationID = c.ID
	msg.CreatedOn = time.Now().UTC()
	return nil
}

// ListMessages returns messages oldest first. When before is set only older messages are returned.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]*model.Message, error) {
	vars := map[string]interface{}{"conversation": conversationID, "limit": limit}
	cond := ""
	if before != nil {
		cond = " AND created_on < <datetime>$before"
		vars["before"] = formatTime(*before)
	}
	query := fmt.Sprintf(`
		SELECT * FROM (
			SELECT * FROM messages
			WHERE conversation = type::record($conversation)%s
			ORDER BY created_on DESC
			LIMIT $limit
		) ORDER BY created_on ASC
	`, cond)
	messages, err := queryMany[model.Message](ctx, r.db, query, vars, messageLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// MarkRead marks the messages the user received as read and clears their unread count
func (r *ConversationRepository) MarkRead(ctx context.Context, c *model.Conversation, userID string) error {
	unreadField := "buyer_unread"
	if userID == c.SellerID {
		unreadField = "seller_unread"
	}

	vars := map[string]interface{}{"conversation": c.ID, "user": userID}
	batch := database.NewAtomicBatch().
		Add(`UPDATE messages SET read_on = time::now()
			WHERE conversation = type::record($conversation)
				AND sender != type::record($user)
				AND read_on IS NONE`, vars).
		Add(fmt.Sprintf(`UPDATE type::record($conversation) SET %s = 0`, unreadField), vars)

	if err := batch.Execute(ctx, r.db); err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return nil
}

func previewText(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	runes := []rune(body)
	if len(runes) <= model.MessagePreviewSize {
		return body
	}
	return string(runes[:model.MessagePreviewSize-1]) + "…"
}
