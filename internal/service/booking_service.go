package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/repository"
	"github.com/peakscape/tours-api/pkg/config"
	"github.com/peakscape/tours-api/pkg/events"
	"github.com/peakscape/tours-api/pkg/logger"
)

// CheckoutClient is the slice of the Stripe API the booking flow needs.
type CheckoutClient interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string) CheckoutClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &stripeClient{api: api}
}

func (c *stripeClient) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return c.api.CheckoutSessions.New(params)
}

type BookingService interface {
	// CreateCheckoutSession starts a Stripe Checkout payment for a tour on
	// behalf of the authenticated user.
	CreateCheckoutSession(ctx context.Context, tourID int64, user *domain.User) (*domain.CheckoutSession, error)

	// HandleWebhook verifies a Stripe webhook payload and records a paid
	// booking when a checkout completes.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type bookingService struct {
	bookings repository.BookingRepository
	tours    repository.TourRepository
	stripe   CheckoutClient
	eventBus events.Publisher
	config   *config.Config
}

func NewBookingService(
	bookings repository.BookingRepository,
	tours repository.TourRepository,
	stripeClient CheckoutClient,
	eventBus events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		bookings: bookings,
		tours:    tours,
		stripe:   stripeClient,
		eventBus: eventBus,
		config:   cfg,
	}
}

func (s *bookingService) CreateCheckoutSession(ctx context.Context, tourID int64, user *domain.User) (*domain.CheckoutSession, error) {
	tour, err := s.tours.Get(ctx, tourID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load tour: %w", err)
	}
	if tour == nil {
		return nil, apperr.NewNotFound("no record found with that ID")
	}

	frontend := s.config.Stripe.FrontendURL
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(frontend + "/?alert=booking"),
		CancelURL:         stripe.String(fmt.Sprintf("%s/tour/%s", frontend, tour.Slug)),
		CustomerEmail:     stripe.String(user.Email),
		ClientReferenceID: stripe.String(strconv.FormatInt(tour.ID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(int64(tour.Price * 100)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("%s Tour", tour.Name)),
						Description: stripe.String(tour.Summary),
					},
				},
			},
		},
	}
	params.AddMetadata("tour_id", strconv.FormatInt(tour.ID, 10))
	params.AddMetadata("user_id", strconv.FormatInt(user.ID, 10))

	session, err := s.stripe.NewCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &domain.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

func (s *bookingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.config.Stripe.WebhookSecret)
	if err != nil {
		return apperr.NewValidation("invalid webhook signature")
	}

	if event.Type != "checkout.session.completed" {
		logger.DebugContext(ctx, "Ignoring webhook event", "type", event.Type)
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return apperr.NewValidation("malformed checkout session payload")
	}

	tourID, err := strconv.ParseInt(session.Metadata["tour_id"], 10, 64)
	if err != nil {
		return apperr.NewValidation("checkout session is missing a tour reference")
	}
	userID, err := strconv.ParseInt(session.Metadata["user_id"], 10, 64)
	if err != nil {
		return apperr.NewValidation("checkout session is missing a user reference")
	}
	price := float64(session.AmountTotal) / 100

	booking, err := s.bookings.CreateFromCheckout(ctx, tourID, userID, price)
	if err != nil {
		return fmt.Errorf("failed to record booking: %w", err)
	}

	if err := s.eventBus.Publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID: booking.ID,
		TourID:    booking.TourID,
		UserID:    booking.UserID,
		Price:     booking.Price,
		CreatedAt: booking.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish booking event", "error", err, "booking_id", booking.ID)
	}

	return nil
}
