package service

import (
	"context"
	"errors"
	"math"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
)

// recentFeedbackLimit is how many ratings a public summary shows
const recentFeedbackLimit = 10

// FeedbackRepository defines the interface for transaction feedback storage
type FeedbackRepository interface {
	Create(ctx context.Context, fb *model.TransactionFeedback) error
	GetByEscrowAuthor(ctx context.Context, escrowID, authorID string) (*model.TransactionFeedback, error)
	ListForSubject(ctx context.Context, subjectID string, limit int) ([]*model.TransactionFeedback, error)
	SummaryForSubject(ctx context.Context, subjectID string) (count int, average float64, recommend int, err error)
	ListPrompts(ctx context.Context, userID string) ([]*model.FeedbackPrompt, error)
}

// FeedbackService handles ratings left after completed deals
type FeedbackService struct {
	feedbackRepo FeedbackRepository
	escrowRepo   EscrowRepository
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(feedbackRepo FeedbackRepository, escrowRepo EscrowRepository) *FeedbackService {
	return &FeedbackService{feedbackRepo: feedbackRepo, escrowRepo: escrowRepo}
}

// ListFeedbackPrompts returns the completed deals the caller still has to rate
func (s *FeedbackService) ListFeedbackPrompts(ctx context.Context, userID string) ([]*model.FeedbackPrompt, error) {
	return s.feedbackRepo.ListPrompts(ctx, userID)
}

// SubmitFeedback rates the counterparty of a completed deal, once per party
func (s *FeedbackService) SubmitFeedback(ctx context.Context, userID, escrowID string, req *model.SubmitFeedbackRequest) (*model.TransactionFeedback, error) {
	e, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrEscrowNotFound
	}
	if !e.IsParty(userID) {
		return nil, ErrNotEscrowParty
	}
	if e.Status != model.EscrowCompleted {
		return nil, ErrFeedbackNotAllowed
	}

	fb := &model.TransactionFeedback{
		EscrowID:       e.ID,
		ProductID:      e.ProductID,
		AuthorID:       userID,
		Rating:         req.Rating,
		Comment:        req.Comment,
		WouldRecommend: req.WouldRecommend,
	}
	if userID == e.BuyerID {
		fb.Role = model.FeedbackFromBuyer
		fb.SubjectID = e.SellerID
	} else {
		fb.Role = model.FeedbackFromSeller
		fb.SubjectID = e.BuyerID
	}

	if err := s.feedbackRepo.Create(ctx, fb); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrFeedbackSubmitted
		}
		return nil, err
	}
	return fb, nil
}

// ListFeedbackForUser returns the public rating summary of a user
func (s *FeedbackService) ListFeedbackForUser(ctx context.Context, userID string) (*model.FeedbackSummary, error) {
	count, average, recommend, err := s.feedbackRepo.SummaryForSubject(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.feedbackRepo.ListForSubject(ctx, userID, recentFeedbackLimit)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []*model.TransactionFeedback{}
	}
	return &model.FeedbackSummary{
		UserID:         userID,
		Count:          count,
		Average:        math.Round(average*100) / 100,
		RecommendCount: recommend,
		Recent:         recent,
	}, nil
}
