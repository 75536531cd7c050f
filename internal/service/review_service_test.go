package service

import (
	"context"
	"testing"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/query"
	"github.com/peakscape/tours-api/pkg/events"
)

type mockReviewRepo struct {
	nextID  int64
	reviews map[int64]*domain.Review

	recalcCalls []int64
}

func newMockReviewRepo() *mockReviewRepo {
	return &mockReviewRepo{nextID: 1, reviews: make(map[int64]*domain.Review)}
}

func (m *mockReviewRepo) Create(_ context.Context, req *domain.CreateReviewRequest) (*domain.Review, error) {
	for _, rv := range m.reviews {
		if rv.TourID == req.TourID && rv.UserID == req.UserID {
			return nil, apperr.NewConflict("you have already reviewed this tour")
		}
	}
	rv := &domain.Review{
		ID:     m.nextID,
		Review: req.Review,
		Rating: req.Rating,
		TourID: req.TourID,
		UserID: req.UserID,
	}
	m.nextID++
	m.reviews[rv.ID] = rv
	return rv, nil
}

func (m *mockReviewRepo) Get(_ context.Context, id int64, _ []string) (*domain.Review, error) {
	rv, ok := m.reviews[id]
	if !ok {
		return nil, nil
	}
	clone := *rv
	return &clone, nil
}

func (m *mockReviewRepo) Update(_ context.Context, id int64, patch *domain.ReviewPatch) (*domain.Review, error) {
	rv, ok := m.reviews[id]
	if !ok {
		return nil, nil
	}
	if patch.Rating != nil {
		rv.Rating = *patch.Rating
	}
	if patch.Review != nil {
		rv.Review = *patch.Review
	}
	clone := *rv
	return &clone, nil
}

func (m *mockReviewRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.reviews[id]; !ok {
		return apperr.NewNotFound("no record found with that ID")
	}
	delete(m.reviews, id)
	return nil
}

func (m *mockReviewRepo) List(context.Context, query.Query) ([]domain.Review, error) { return nil, nil }

func (m *mockReviewRepo) ListByTour(context.Context, int64) ([]domain.Review, error) {
	return nil, nil
}

func (m *mockReviewRepo) RecalcTourRatings(_ context.Context, tourID int64) error {
	m.recalcCalls = append(m.recalcCalls, tourID)
	return nil
}

func validCreate(tourID, userID int64) *domain.CreateReviewRequest {
	return &domain.CreateReviewRequest{
		Review: "Loved every minute of it",
		Rating: 5,
		TourID: tourID,
		UserID: userID,
	}
}

func TestReviewService_CreateTriggersRecalc(t *testing.T) {
	repo := newMockReviewRepo()
	svc := NewReviewService(repo, events.NoopPublisher{})

	rv, err := svc.Create(context.Background(), validCreate(42, 7))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rv.ID == 0 {
		t.Fatal("Expected a persisted review")
	}
	if len(repo.recalcCalls) != 1 || repo.recalcCalls[0] != 42 {
		t.Fatalf("Expected one recompute for tour 42, got %v", repo.recalcCalls)
	}
}

func TestReviewService_DuplicateReviewIsConflict(t *testing.T) {
	repo := newMockReviewRepo()
	svc := NewReviewService(repo, events.NoopPublisher{})

	if _, err := svc.Create(context.Background(), validCreate(42, 7)); err != nil {
		t.Fatalf("First create failed: %v", err)
	}
	_, err := svc.Create(context.Background(), validCreate(42, 7))
	if !apperr.IsKind(err, apperr.Conflict) {
		t.Fatalf("Expected conflict, got %v", err)
	}
	// The failed insert must not trigger another recompute.
	if len(repo.recalcCalls) != 1 {
		t.Fatalf("Expected one recompute, got %v", repo.recalcCalls)
	}
}

func TestReviewService_CreateValidation(t *testing.T) {
	repo := newMockReviewRepo()
	svc := NewReviewService(repo, events.NoopPublisher{})

	req := validCreate(42, 7)
	req.Rating = 6
	if _, err := svc.Create(context.Background(), req); !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("Expected validation error for rating 6, got %v", err)
	}
	if len(repo.recalcCalls) != 0 {
		t.Fatal("Validation failure must not reach the store")
	}
}

func TestReviewService_UpdateTriggersRecalc(t *testing.T) {
	repo := newMockReviewRepo()
	svc := NewReviewService(repo, events.NoopPublisher{})

	rv, err := svc.Create(context.Background(), validCreate(42, 7))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rating := 2.0
	if _, err := svc.Update(context.Background(), rv.ID, &domain.ReviewPatch{Rating: &rating}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(repo.recalcCalls) != 2 || repo.recalcCalls[1] != 42 {
		t.Fatalf("Expected recompute after update, got %v", repo.recalcCalls)
	}
}

func TestReviewService_DeleteUsesPriorTourID(t *testing.T) {
	repo := newMockReviewRepo()
	svc := NewReviewService(repo, events.NoopPublisher{})

	rv, err := svc.Create(context.Background(), validCreate(42, 7))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Delete(context.Background(), rv.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// The recompute still knows the tour even though the row is gone.
	if len(repo.recalcCalls) != 2 || repo.recalcCalls[1] != 42 {
		t.Fatalf("Expected recompute for tour 42 after delete, got %v", repo.recalcCalls)
	}

	if err := svc.Delete(context.Background(), rv.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("Expected not found on second delete, got %v", err)
	}
}
