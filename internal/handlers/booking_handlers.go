package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/service"
)

// Stripe caps webhook payloads well below this; anything larger is junk.
const maxWebhookBodyBytes = 65536

type BookingHandlers struct {
	bookings service.BookingService
}

func NewBookingHandlers(bookings service.BookingService) *BookingHandlers {
	return &BookingHandlers{bookings: bookings}
}

func (h *BookingHandlers) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	tourID, err := strconv.ParseInt(chi.URLParam(r, "tourID"), 10, 64)
	if err != nil || tourID <= 0 {
		writeError(w, r, apperr.NewValidation("invalid tour ID"))
		return
	}

	session, err := h.bookings.CreateCheckoutSession(r.Context(), tourID, CurrentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, session)
}

// StripeWebhook takes checkout completion events from Stripe. Authentication
// is the payload signature, not a session token.
func (h *BookingHandlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(w, r, apperr.NewValidation("could not read webhook payload"))
		return
	}

	if err := h.bookings.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
