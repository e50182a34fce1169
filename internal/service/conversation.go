package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// Message paging
const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
)

// ConversationRepository defines the interface for conversation storage
type ConversationRepository interface {
	Create(ctx context.Context, c *model.Conversation) error
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	GetByProductBuyer(ctx context.Context, productID, buyerID string) (*model.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*model.ConversationSummary, error)
	AddMessage(ctx context.Context, c *model.Conversation, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]*model.Message, error)
	MarkRead(ctx context.Context, c *model.Conversation, userID string) error
}

// ConversationService handles buyer and seller messaging about a listing
type ConversationService struct {
	convRepo    ConversationRepository
	productRepo ProductRepository
	profileRepo ProfileRepository
	events      Publisher
	now         func() time.Time
}

// ConversationServiceConfig holds configuration for the conversation service
type ConversationServiceConfig struct {
	ConversationRepo ConversationRepository
	ProductRepo      ProductRepository
	ProfileRepo      ProfileRepository
	Events           Publisher
}

// NewConversationService creates a new conversation service
func NewConversationService(cfg ConversationServiceConfig) *ConversationService {
	return &ConversationService{
		convRepo:    cfg.ConversationRepo,
		productRepo: cfg.ProductRepo,
		profileRepo: cfg.ProfileRepo,
		events:      cfg.Events,
		now:         time.Now,
	}
}

// StartConversation opens (or reuses) the caller's thread with a listing's
// seller and posts the first message. Contacting a seller is behind the
// subscription paywall.
func (s *ConversationService) StartConversation(ctx context.Context, userID string, isAdmin bool, req *model.StartConversationRequest) (*model.Conversation, *model.Message, error) {
	p, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil || !p.Status.IsPubliclyVisible() {
		return nil, nil, ErrListingNotFound
	}
	if p.SellerID == userID {
		return nil, nil, ErrCannotMessageSelf
	}
	if !isAdmin {
		profile, err := s.profileRepo.GetByUserID(ctx, userID)
		if err != nil {
			return nil, nil, err
		}
		if !profile.HasActiveSubscription(s.now()) {
			return nil, nil, ErrSubscriptionRequired
		}
	}

	c, err := s.convRepo.GetByProductBuyer(ctx, p.ID, userID)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		c = &model.Conversation{ProductID: p.ID, BuyerID: userID, SellerID: p.SellerID}
		if err := s.convRepo.Create(ctx, c); err != nil {
			if !errors.Is(err, database.ErrDuplicate) {
				return nil, nil, err
			}
			// Lost a race with a parallel first message
			if c, err = s.convRepo.GetByProductBuyer(ctx, p.ID, userID); err != nil {
				return nil, nil, err
			}
			if c == nil {
				return nil, nil, ErrConversationNotFound
			}
		}
	}

	msg, err := s.post(ctx, c, userID, req.Message)
	if err != nil {
		return nil, nil, err
	}
	return c, msg, nil
}

// SendMessage posts to a conversation the caller is part of
func (s *ConversationService) SendMessage(ctx context.Context, userID, conversationID string, req *model.SendMessageRequest) (*model.Message, error) {
	c, err := s.getForParticipant(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	return s.post(ctx, c, userID, req.Body)
}

func (s *ConversationService) post(ctx context.Context, c *model.Conversation, senderID, body string) (*model.Message, error) {
	msg := &model.Message{SenderID: senderID, Body: strings.TrimSpace(body)}
	if err := s.convRepo.AddMessage(ctx, c, msg); err != nil {
		return nil, err
	}
	publish(s.events, c.OtherParty(senderID), EventMessageNew, msg)
	return msg, nil
}

// ListConversations returns the caller's threads with unread counts
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]*model.ConversationSummary, error) {
	return s.convRepo.ListForUser(ctx, userID)
}

// ListMessages returns a page of messages, oldest first. before pages back
// from a point in the thread.
func (s *ConversationService) ListMessages(ctx context.Context, userID, conversationID string, before *time.Time, limit int) ([]*model.Message, error) {
	if _, err := s.getForParticipant(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	return s.convRepo.ListMessages(ctx, conversationID, before, min(limit, MaxMessageLimit))
}

// MarkRead clears the caller's unread messages in a conversation
func (s *ConversationService) MarkRead(ctx context.Context, userID, conversationID string) error {
	c, err := s.getForParticipant(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	return s.convRepo.MarkRead(ctx, c, userID)
}

func (s *ConversationService) getForParticipant(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	c, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrConversationNotFound
	}
	if !c.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return c, nil
}
