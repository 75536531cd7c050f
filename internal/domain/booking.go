package domain

import (
	"time"

	"github.com/peakscape/tours-api/internal/apperr"
)

type Booking struct {
	ID        int64     `json:"id"`
	TourID    int64     `json:"tour"`
	UserID    int64     `json:"user"`
	Price     float64   `json:"price"`
	Paid      bool      `json:"paid"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

type CreateBookingRequest struct {
	TourID int64   `json:"tour"`
	UserID int64   `json:"user"`
	Price  float64 `json:"price"`
	Paid   *bool   `json:"paid,omitempty"`
}

func (r *CreateBookingRequest) Validate() error {
	if r.TourID == 0 {
		return apperr.NewValidation("booking must belong to a tour")
	}
	if r.UserID == 0 {
		return apperr.NewValidation("booking must belong to a user")
	}
	if r.Price <= 0 {
		return apperr.NewValidation("booking must have a price")
	}
	return nil
}

// CheckoutSession is the client-facing handle for a started payment.
type CheckoutSession struct {
	SessionID string `json:"id"`
	URL       string `json:"url"`
}

type BookingPatch struct {
	Price *float64 `json:"price,omitempty"`
	Paid  *bool    `json:"paid,omitempty"`
}

func (p *BookingPatch) Validate() error {
	if p.Price != nil && *p.Price <= 0 {
		return apperr.NewValidation("booking must have a price")
	}
	return nil
}
