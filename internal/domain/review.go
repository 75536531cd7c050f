package domain

import (
	"strings"
	"time"

	"github.com/peakscape/tours-api/internal/apperr"
)

// ReviewAuthor is the slice of the account a review exposes alongside its
// text.
type ReviewAuthor struct {
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
}

type Review struct {
	ID        int64         `json:"id"`
	Review    string        `json:"review"`
	Rating    float64       `json:"rating"`
	TourID    int64         `json:"tour"`
	UserID    int64         `json:"user"`
	Author    *ReviewAuthor `json:"author,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"-"`
}

type CreateReviewRequest struct {
	Review string  `json:"review"`
	Rating float64 `json:"rating"`
	TourID int64   `json:"tour,omitempty"`
	UserID int64   `json:"user,omitempty"`
}

func (r *CreateReviewRequest) Normalize() {
	r.Review = strings.TrimSpace(r.Review)
}

func (r *CreateReviewRequest) Validate() error {
	if r.Review == "" {
		return apperr.NewValidation("review cannot be empty")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return apperr.NewValidation("rating must be between 1 and 5")
	}
	if r.TourID == 0 {
		return apperr.NewValidation("review must belong to a tour")
	}
	if r.UserID == 0 {
		return apperr.NewValidation("review must belong to a user")
	}
	return nil
}

type ReviewPatch struct {
	Review *string  `json:"review,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

func (p *ReviewPatch) Validate() error {
	if p.Review != nil && strings.TrimSpace(*p.Review) == "" {
		return apperr.NewValidation("review cannot be empty")
	}
	if p.Rating != nil && (*p.Rating < 1 || *p.Rating > 5) {
		return apperr.NewValidation("rating must be between 1 and 5")
	}
	return nil
}
