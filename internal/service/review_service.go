package service

import (
	"context"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/query"
	"github.com/peakscape/tours-api/internal/repository"
	"github.com/peakscape/tours-api/pkg/events"
	"github.com/peakscape/tours-api/pkg/logger"
)

// ReviewService fronts the review repository so every write is followed by a
// recompute of the owning tour's rating aggregates. It exposes the same
// resource surface as the repository, so the generic handlers can sit
// directly on top of it.
type ReviewService interface {
	Create(ctx context.Context, req *domain.CreateReviewRequest) (*domain.Review, error)
	Get(ctx context.Context, id int64, expand []string) (*domain.Review, error)
	Update(ctx context.Context, id int64, patch *domain.ReviewPatch) (*domain.Review, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q query.Query) ([]domain.Review, error)
}

type reviewService struct {
	reviews  repository.ReviewRepository
	eventBus events.Publisher
}

func NewReviewService(reviews repository.ReviewRepository, eventBus events.Publisher) ReviewService {
	return &reviewService{reviews: reviews, eventBus: eventBus}
}

func (s *reviewService) Create(ctx context.Context, req *domain.CreateReviewRequest) (*domain.Review, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	review, err := s.reviews.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.recalc(ctx, review.TourID)

	if err := s.eventBus.Publish(ctx, events.ReviewWritten, events.ReviewWrittenEvent{
		ReviewID: review.ID,
		TourID:   review.TourID,
		UserID:   review.UserID,
		Rating:   review.Rating,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish review event", "error", err, "review_id", review.ID)
	}

	return review, nil
}

func (s *reviewService) Get(ctx context.Context, id int64, expand []string) (*domain.Review, error) {
	return s.reviews.Get(ctx, id, expand)
}

func (s *reviewService) Update(ctx context.Context, id int64, patch *domain.ReviewPatch) (*domain.Review, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	review, err := s.reviews.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, nil
	}

	s.recalc(ctx, review.TourID)
	return review, nil
}

func (s *reviewService) Delete(ctx context.Context, id int64) error {
	// The row is gone after the delete, so resolve the owning tour first.
	review, err := s.reviews.Get(ctx, id, nil)
	if err != nil {
		return err
	}
	if review == nil {
		return apperr.NewNotFound("no record found with that ID")
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}

	s.recalc(ctx, review.TourID)
	return nil
}

func (s *reviewService) List(ctx context.Context, q query.Query) ([]domain.Review, error) {
	return s.reviews.List(ctx, q)
}

// recalc failures leave the stored aggregates one write behind; the next
// successful write corrects them. Not worth failing the request over.
func (s *reviewService) recalc(ctx context.Context, tourID int64) {
	if err := s.reviews.RecalcTourRatings(ctx, tourID); err != nil {
		logger.ErrorContext(ctx, "Failed to recompute tour ratings", "error", err, "tour_id", tourID)
	}
}
